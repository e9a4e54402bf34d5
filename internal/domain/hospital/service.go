package hospital

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/wardsys/ward/internal/domain/appointment"
	"github.com/wardsys/ward/internal/platform/apperr"
	"github.com/wardsys/ward/internal/platform/db"
	"github.com/wardsys/ward/internal/platform/metrics"
	"github.com/wardsys/ward/internal/platform/websocket"
)

const (
	// IntakeComment is the comment of the appointment booked on assignment.
	IntakeComment = "initial intake"
	IntakeDelay   = 24 * time.Hour
)

type Service struct {
	repo         Repository
	patients     PatientStore
	appointments AppointmentStore
	tx           db.Transactor
	metrics      *metrics.Collector
	events       websocket.Publisher
	log          zerolog.Logger
	now          func() time.Time
}

func NewService(repo Repository, patients PatientStore, appts AppointmentStore, tx db.Transactor, m *metrics.Collector, logger zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		patients:     patients,
		appointments: appts,
		tx:           tx,
		metrics:      m,
		events:       websocket.Discard,
		log:          logger.With().Str("component", "assignment").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetPublisher sends committed assignments to p.
func (s *Service) SetPublisher(p websocket.Publisher) {
	s.events = p
}

// Assign gives an unassigned patient the least loaded doctor and the chamber
// with the most free beds in the department, and books the intake
// appointment. Locks are taken patient first, then doctors, then chambers.
// On any error nothing is kept.
func (s *Service) Assign(ctx context.Context, patientID, departmentID int64) (*Assignment, error) {
	if patientID <= 0 || departmentID <= 0 {
		return nil, apperr.Validation("patient and department ids must be positive")
	}
	logger := s.log.With().Int64("patient_id", patientID).Int64("department_id", departmentID).Logger()

	var out *Assignment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetDepartment(ctx, departmentID); err != nil {
			return err
		}
		p, err := s.patients.GetForUpdate(ctx, patientID)
		if err != nil {
			return err
		}
		if p.Discharged() {
			return apperr.Conflictf("patient %d is discharged", patientID)
		}
		if p.DoctorID != nil || p.ChamberID != nil {
			return apperr.Conflictf("patient %d is already assigned", patientID)
		}

		doctors, err := s.repo.LockDoctors(ctx, departmentID)
		if err != nil {
			return err
		}
		chambers, err := s.repo.LockChambers(ctx, departmentID)
		if err != nil {
			return err
		}
		doctor, ok := PickDoctor(doctors)
		if !ok {
			return ErrNoCapacity
		}
		chamber, ok := PickChamber(chambers)
		if !ok {
			return ErrNoCapacity
		}

		if err := s.patients.SetAssignment(ctx, patientID, doctor.ID, chamber.ID); err != nil {
			return err
		}
		if err := s.repo.IncrementLoad(ctx, doctor.ID); err != nil {
			return err
		}
		if err := s.repo.IncrementOccupied(ctx, chamber.ID); err != nil {
			return err
		}

		at := s.now().Add(IntakeDelay)
		about := IntakeComment
		appt := &appointment.Appointment{
			DoctorID:    doctor.ID,
			PatientID:   patientID,
			ScheduledAt: &at,
			About:       &about,
			Status:      appointment.StatusPending,
		}
		if err := s.appointments.Create(ctx, appt); err != nil {
			return err
		}

		out = &Assignment{
			PatientID:     patientID,
			DepartmentID:  departmentID,
			DoctorID:      doctor.ID,
			DoctorName:    doctor.Name,
			ChamberID:     chamber.ID,
			AppointmentID: appt.ID,
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNoCapacity):
			logger.Info().Msg("department at capacity")
			s.metrics.Assignment(metrics.OutcomeNoCapacity)
		case errors.Is(err, apperr.ErrStoreUnavailable):
			logger.Error().Err(err).Msg("assignment failed")
			s.metrics.Assignment(metrics.OutcomeError)
		default:
			logger.Warn().Err(err).Msg("assignment refused")
			s.metrics.Assignment(metrics.OutcomeRejected)
		}
		return nil, err
	}

	s.metrics.Assignment(metrics.OutcomeAssigned)
	logger.Info().Int64("doctor_id", out.DoctorID).Int64("chamber_id", out.ChamberID).
		Int64("appointment_id", out.AppointmentID).Msg("patient assigned")
	s.events.Publish(ctx, websocket.Event{
		Type:          websocket.PatientAssigned,
		PatientID:     out.PatientID,
		DoctorID:      out.DoctorID,
		ChamberID:     out.ChamberID,
		DepartmentID:  out.DepartmentID,
		AppointmentID: out.AppointmentID,
	})
	return out, nil
}

// Release gives one patient slot back to a doctor and a chamber. A counter
// that is already zero is left alone and reported as an invariant violation.
func (s *Service) Release(ctx context.Context, doctorID, chamberID int64) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.repo.DecrementLoad(ctx, doctorID)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Warn().Int64("doctor_id", doctorID).Msg("invariant violation: doctor load already zero on release")
			s.metrics.ReleaseViolation("doctor")
		}
		ok, err = s.repo.DecrementOccupied(ctx, chamberID)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Warn().Int64("chamber_id", chamberID).Msg("invariant violation: chamber occupancy already zero on release")
			s.metrics.ReleaseViolation("chamber")
		}
		return nil
	})
}

func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	items, err := s.repo.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Department{}
	}
	return items, nil
}

func (s *Service) DepartmentReport(ctx context.Context, id int64) (*DepartmentReport, error) {
	if id <= 0 {
		return nil, apperr.Validation("department id must be positive")
	}
	return s.repo.DepartmentReport(ctx, id)
}

// ListDoctors lists doctors with their current load. departmentID 0 lists
// every department.
func (s *Service) ListDoctors(ctx context.Context, departmentID int64) ([]Doctor, error) {
	if departmentID < 0 {
		return nil, apperr.Validation("department id must not be negative")
	}
	items, err := s.repo.ListDoctors(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Doctor{}
	}
	return items, nil
}

// MostFreeChamber returns ErrNoCapacity when every chamber is full.
func (s *Service) MostFreeChamber(ctx context.Context) (*Chamber, error) {
	return s.repo.MostFreeChamber(ctx)
}
