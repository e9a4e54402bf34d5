package hospital

import (
	"context"
	"fmt"

	"github.com/wardsys/ward/internal/domain/appointment"
	"github.com/wardsys/ward/internal/domain/patient"
	"github.com/wardsys/ward/internal/platform/apperr"
)

var (
	ErrDepartmentNotFound = fmt.Errorf("department %w", apperr.ErrNotFound)
	// ErrNoCapacity means the department has no doctor or no chamber with a
	// free bed. It is an expected outcome, not a failure of the store.
	ErrNoCapacity = fmt.Errorf("%w: department has no free doctor or chamber", apperr.ErrNotFound)
)

type Repository interface {
	ListDepartments(ctx context.Context) ([]Department, error)
	GetDepartment(ctx context.Context, id int64) (*Department, error)
	DepartmentReport(ctx context.Context, id int64) (*DepartmentReport, error)
	ListDoctors(ctx context.Context, departmentID int64) ([]Doctor, error)
	// MostFreeChamber returns the non-full chamber with the most free beds
	// across all departments.
	MostFreeChamber(ctx context.Context) (*Chamber, error)

	// LockDoctors and LockChambers hold row locks on the department's
	// doctors and chambers until the surrounding transaction ends.
	LockDoctors(ctx context.Context, departmentID int64) ([]Doctor, error)
	LockChambers(ctx context.Context, departmentID int64) ([]Chamber, error)

	IncrementLoad(ctx context.Context, doctorID int64) error
	IncrementOccupied(ctx context.Context, chamberID int64) error
	// DecrementLoad and DecrementOccupied never go below zero. They report
	// false when the counter was already zero.
	DecrementLoad(ctx context.Context, doctorID int64) (bool, error)
	DecrementOccupied(ctx context.Context, chamberID int64) (bool, error)
}

// PatientStore is the part of the patient repository assignment needs.
type PatientStore interface {
	GetForUpdate(ctx context.Context, id int64) (*patient.Patient, error)
	SetAssignment(ctx context.Context, id, doctorID, chamberID int64) error
}

type AppointmentStore interface {
	Create(ctx context.Context, a *appointment.Appointment) error
}
