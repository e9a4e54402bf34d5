package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/wardsys/ward/internal/platform/apperr"
)

var ErrNotFound = fmt.Errorf("patient %w", apperr.ErrNotFound)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	GetForUpdate(ctx context.Context, id int64) (*Patient, error)
	FindRow(ctx context.Context, id int64) (*Row, error)
	SetAssignment(ctx context.Context, id, doctorID, chamberID int64) error
	SetOutcome(ctx context.Context, id int64, diagnosis string) error
	// Discharge sets the discharge date. A nil outcome keeps the stored one.
	Discharge(ctx context.Context, id int64, date time.Time, outcome *string) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Row, error)
}

// ResourceReleaser gives a doctor and chamber slot back to the pool.
type ResourceReleaser interface {
	Release(ctx context.Context, doctorID, chamberID int64) error
}
