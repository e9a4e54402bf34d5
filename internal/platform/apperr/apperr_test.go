package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindAndStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   error
		status int
	}{
		{"validation", Validation("first_name must be alphabetic"), ErrValidation, http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("doctor 7: %w", ErrNotFound), ErrNotFound, http.StatusNotFound},
		{"conflict", fmt.Errorf("%w: already discharged", ErrConflict), ErrConflict, http.StatusConflict},
		{"store", Store("select patient", errors.New("conn refused")), ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"plain", errors.New("boom"), nil, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.kind {
				t.Errorf("Kind() = %v, want %v", got, tt.kind)
			}
			if got := Status(tt.err); got != tt.status {
				t.Errorf("Status() = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestStore_NilAndIdempotent(t *testing.T) {
	if Store("noop", nil) != nil {
		t.Error("expected nil for nil error")
	}
	once := Store("first", errors.New("timeout"))
	twice := Store("second", once)
	if twice != once {
		t.Error("expected already-wrapped store error to pass through")
	}
}

func TestHTTP_HidesDriverDetails(t *testing.T) {
	he := HTTP(Store("select", errors.New("password authentication failed for user x")))
	if he.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", he.Code)
	}
	if he.Message != "database unavailable" {
		t.Errorf("expected generic message, got %v", he.Message)
	}

	he = HTTP(Validation("bad date"))
	if he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", he.Code)
	}
	if he.Message != "validation failed: bad date" {
		t.Errorf("unexpected message %v", he.Message)
	}
}

func TestConflictfAndNotFoundf(t *testing.T) {
	if Status(Conflictf("appointment %d is done", 7)) != http.StatusConflict {
		t.Error("expected 409 for Conflictf")
	}
	err := NotFoundf("department %d", 5)
	if Status(err) != http.StatusNotFound {
		t.Error("expected 404 for NotFoundf")
	}
	if HTTP(err).Message != "not found: department 5" {
		t.Errorf("unexpected message %v", HTTP(err).Message)
	}
}
