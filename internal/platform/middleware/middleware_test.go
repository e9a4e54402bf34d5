package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/wardsys/ward/internal/platform/auth"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequestID(t *testing.T) {
	long := strings.Repeat("x", 200)
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated", "", false},
		{"kept", "ward-req-1", true},
		{"too long is replaced", long, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/departments", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(req, rec)

			var seen string
			RequestID()(func(c echo.Context) error {
				seen, _ = c.Get("request_id").(string)
				return nil
			})(c)

			if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
				t.Fatalf("expected matching context and header ids, got %q / %q", seen, rec.Header().Get(RequestIDHeader))
			}
			if (seen == tt.incoming) != tt.keep {
				t.Errorf("incoming %q, got %q", tt.incoming, seen)
			}
		})
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req = req.WithContext(auth.WithSession(req.Context(), auth.Session{AccountID: 9, Role: auth.RoleRegistrar}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-77")
	c.Set("tenant_id", "north")

	h := Logger(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	checks := map[string]interface{}{
		"level":      "info",
		"request_id": "req-77",
		"tenant":     "north",
		"user_id":    "9",
		"method":     "GET",
		"path":       "/api/v1/patients",
		"status":     float64(200),
	}
	for k, want := range checks {
		if line[k] != want {
			t.Errorf("log field %s = %v, want %v", k, line[k], want)
		}
	}
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		err   error
		level string
	}{
		{echo.NewHTTPError(http.StatusNotFound, "patient not found"), "warn"},
		{echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable"), "error"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients/1", nil), httptest.NewRecorder())

		Logger(zerolog.New(&buf))(func(c echo.Context) error { return tt.err })(c)

		var line map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("bad log line %q: %v", buf.String(), err)
		}
		if line["level"] != tt.level {
			t.Errorf("expected level %s, got %v", tt.level, line["level"])
		}
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/patients/3/assign", nil), httptest.NewRecorder())
	c.Set("request_id", "req-panic")

	err := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("chamber map corrupted")
	})(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
	if !strings.Contains(buf.String(), "chamber map corrupted") || !strings.Contains(buf.String(), "req-panic") {
		t.Errorf("expected the panic to be logged with the request id, got %s", buf.String())
	}

	err = Recovery(zerolog.Nop())(func(c echo.Context) error { return nil })(c)
	if err != nil {
		t.Errorf("unexpected error without a panic: %v", err)
	}
}
