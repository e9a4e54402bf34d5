package db

import (
	"errors"
	"net/http"
	"testing"
)

func TestHealthBody_Healthy(t *testing.T) {
	stats := &PoolStats{TotalConns: 3, IdleConns: 2, AcquiredConns: 1, MaxConns: 20, Healthy: true}
	code, body := healthBody(nil, stats)
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	if body["pool"].(*PoolStats).MaxConns != 20 {
		t.Error("expected pool stats in body")
	}
}

func TestHealthBody_PingFailed(t *testing.T) {
	stats := &PoolStats{TotalConns: 4, Healthy: true}
	code, body := healthBody(errors.New("dial tcp 10.0.0.5:5432: connection refused"), stats)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	if body["status"] != "unhealthy" {
		t.Errorf("expected unhealthy, got %v", body["status"])
	}
	if _, ok := body["error"]; ok {
		t.Error("driver error must not be exposed")
	}
	if stats.Healthy {
		t.Error("expected stats to be marked unhealthy")
	}
}
