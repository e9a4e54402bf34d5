package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestExtractTenantID(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		header string
		claim  string
		want   string
	}{
		{"session claim wins", "/?tenant_id=west", "east", "north", "north"},
		{"header over query", "/?tenant_id=west", "east", "", "east"},
		{"query", "/?tenant_id=west", "", "", "west"},
		{"empty claim falls through", "/", "east", "", "east"},
		{"default", "/", "", "", "main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("X-Tenant-ID", tt.header)
			}
			c := echo.New().NewContext(req, httptest.NewRecorder())
			c.Set("jwt_tenant_id", tt.claim)

			if got := extractTenantID(c, "main"); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTenantIDPattern(t *testing.T) {
	for id, valid := range map[string]bool{
		"north":          true,
		"St_Marys_2":     true,
		"w":              true,
		"north-wing":     false,
		"ward.3":         false,
		"ward 3":         false,
		"a/b":            false,
		"":               false,
		"'; DROP SCHEMA": false,
	} {
		if got := tenantIDPattern.MatchString(id); got != valid {
			t.Errorf("tenantIDPattern(%q) = %v, want %v", id, got, valid)
		}
	}
}

func TestContextAccessors_Empty(t *testing.T) {
	ctx := context.Background()
	if ConnFromContext(ctx) != nil || TxFromContext(ctx) != nil || TenantFromContext(ctx) != "" {
		t.Error("expected zero values from an empty context")
	}

	wrong := context.WithValue(ctx, DBConnKey, "conn")
	wrong = context.WithValue(wrong, DBTxKey, "tx")
	wrong = context.WithValue(wrong, TenantIDKey, 42)
	if ConnFromContext(wrong) != nil || TxFromContext(wrong) != nil || TenantFromContext(wrong) != "" {
		t.Error("expected values of the wrong type to be ignored")
	}

	if got := TenantFromContext(context.WithValue(ctx, TenantIDKey, "north")); got != "north" {
		t.Errorf("expected north, got %q", got)
	}
}

func TestWithTx_NoConnection(t *testing.T) {
	if _, _, err := WithTx(context.Background()); err == nil {
		t.Error("expected an error without a tenant connection")
	}
}

func TestTenantSchemaHelpers_RejectInvalidIDs(t *testing.T) {
	for _, id := range []string{"north-wing", "ward.3", "drop;table"} {
		if err := CreateTenantSchema(context.Background(), nil, id, ""); err == nil {
			t.Errorf("CreateTenantSchema(%q): expected error", id)
		}
		_, conn, err := AcquireTenant(context.Background(), nil, id)
		if err == nil || conn != nil {
			t.Errorf("AcquireTenant(%q): expected error and no connection", id)
		}
	}
}

func TestTenantMiddleware_RejectsInvalidTenant(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req.Header.Set("X-Tenant-ID", "north-wing")
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	err := TenantMiddleware(nil, "default")(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
	if called {
		t.Error("handler must not run for an invalid tenant")
	}
}
