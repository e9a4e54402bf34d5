package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/wardsys/ward/internal/platform/apperr"
)

var ErrNotFound = fmt.Errorf("appointment %w", apperr.ErrNotFound)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Appointment, error)
	SetStatus(ctx context.Context, id int64, s Status) error
	Reschedule(ctx context.Context, id int64, about string, at time.Time) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Row, error)
}

// OutcomeWriter records a patient's final diagnosis.
type OutcomeWriter interface {
	SetOutcome(ctx context.Context, patientID int64, diagnosis string) error
}
