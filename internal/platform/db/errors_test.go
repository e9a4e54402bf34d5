package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wardsys/ward/internal/platform/apperr"
)

func TestMapError(t *testing.T) {
	errPatientNotFound := fmt.Errorf("patient: %w", apperr.ErrNotFound)

	tests := []struct {
		name     string
		err      error
		notFound error
		kind     error
		exact    error
	}{
		{"nil", nil, nil, nil, nil},
		{"no rows with sentinel", pgx.ErrNoRows, errPatientNotFound, apperr.ErrNotFound, errPatientNotFound},
		{"no rows default", pgx.ErrNoRows, nil, apperr.ErrNotFound, nil},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "appointment_patient_id_fkey"}, nil, apperr.ErrNotFound, nil},
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "staff_account_login_key"}, nil, apperr.ErrConflict, nil},
		{"check", &pgconn.PgError{Code: "23514", ConstraintName: "chamber_occupied_check"}, nil, apperr.ErrConflict, nil},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, nil, apperr.ErrStoreUnavailable, nil},
		{"driver error", errors.New("conn closed"), nil, apperr.ErrStoreUnavailable, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError("op", tt.err, tt.notFound)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if apperr.Kind(got) != tt.kind {
				t.Errorf("kind = %v, want %v (err %v)", apperr.Kind(got), tt.kind, got)
			}
			if tt.exact != nil && got != tt.exact {
				t.Errorf("expected sentinel to be returned as-is, got %v", got)
			}
		})
	}
}
