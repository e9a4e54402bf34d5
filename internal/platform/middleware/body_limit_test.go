package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	for in, want := range map[string]int64{
		"1M":      1 << 20,
		"1mb":     1 << 20,
		"64K":     64 << 10,
		"1G":      1 << 30,
		"1024":    1024,
		"":        1 << 20,
		"invalid": 1 << 20,
		"-5":      1 << 20,
	} {
		if got := parseLimit(in); got != want {
			t.Errorf("parseLimit(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestBodyLimit(t *testing.T) {
	tests := []struct {
		name          string
		method        string
		body          []byte
		unknownLength bool
		limit         string
		wantCode      int
		wantHandler   bool
	}{
		{"small admission form", http.MethodPost, []byte(`{"first_name":"Ann","second_name":"Lee"}`), false, "1M", 0, true},
		{"declared length over limit", http.MethodPost, bytes.Repeat([]byte("a"), 2048), false, "1K", http.StatusRequestEntityTooLarge, false},
		{"unknown length over limit", http.MethodPost, bytes.Repeat([]byte("a"), 1024), true, "512", http.StatusRequestEntityTooLarge, true},
		{"no body", http.MethodGet, nil, false, "1", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != nil {
				body = bytes.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, "/api/v1/patients", body)
			if tt.unknownLength {
				req.ContentLength = -1
			}
			c := echo.New().NewContext(req, httptest.NewRecorder())

			called := false
			err := BodyLimit(tt.limit)(func(c echo.Context) error {
				called = true
				_, err := io.ReadAll(c.Request().Body)
				return err
			})(c)

			if called != tt.wantHandler {
				t.Errorf("handler called = %v, want %v", called, tt.wantHandler)
			}
			if tt.wantCode == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != tt.wantCode {
				t.Errorf("expected %d, got %v", tt.wantCode, err)
			}
		})
	}
}
