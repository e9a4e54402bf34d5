package staff

import (
	"context"
	"errors"
	"fmt"

	"github.com/wardsys/ward/internal/platform/apperr"
)

var (
	ErrNotFound = fmt.Errorf("staff account %w", apperr.ErrNotFound)
	// ErrInvalidCredentials is returned for an unknown login and for a wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid login or password")
)

type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByLogin(ctx context.Context, login string) (*Account, error)
}
