package db

import (
	"context"
	"errors"
	"testing"

	"github.com/wardsys/ward/internal/platform/apperr"
)

func TestPoolTransactor_NoConnection(t *testing.T) {
	called := false
	err := NewTransactor(nil).InTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Error("fn must not run without a connection")
	}
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Errorf("expected store unavailable, got %v", err)
	}
}
