package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

// hit sends one request as tenant (empty for none) and returns the recorder
// and the handler error.
func hit(h echo.HandlerFunc, tenant string) (*httptest.ResponseRecorder, error) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), rec)
	if tenant != "" {
		c.Set("jwt_tenant_id", tenant)
	}
	return rec, h(c)
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 3})(okHandler)

	for i := 0; i < 3; i++ {
		rec, err := hit(h, "")
		if err != nil || rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d %v", i+1, rec.Code, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "1" {
			t.Errorf("request %d: expected X-RateLimit-Limit 1, got %q", i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	rec, err := hit(h, "")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	retry, convErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if convErr != nil || retry < 1 {
		t.Errorf("expected a positive Retry-After, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_TenantsHaveSeparateBuckets(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(okHandler)

	if _, err := hit(h, "north"); err != nil {
		t.Fatalf("north first request: %v", err)
	}
	if _, err := hit(h, "north"); err == nil {
		t.Fatal("north second request: expected 429")
	}
	if _, err := hit(h, "south"); err != nil {
		t.Fatalf("south must not share north's bucket: %v", err)
	}
}

func TestRateLimit_ZeroRate(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0, BurstSize: 1})(okHandler)
	hit(h, "")
	rec, err := hit(h, "")
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 50 || cfg.BurstSize != 100 || cfg.IdleTTL != 3*time.Minute {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLimiterStore(t *testing.T) {
	store := newLimiterStore(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5, IdleTTL: time.Minute})
	now := time.Now()

	a := store.get("north:10.0.0.1", now)
	if store.get("north:10.0.0.1", now) != a {
		t.Error("expected the same limiter for the same key")
	}
	if store.get("south:10.0.0.1", now) == a {
		t.Error("expected a different limiter for another tenant")
	}

	store.get("stale", now.Add(-5*time.Minute))
	store.sweep(now)
	if store.size() != 2 {
		t.Errorf("expected 2 limiters after sweep, got %d", store.size())
	}
}
