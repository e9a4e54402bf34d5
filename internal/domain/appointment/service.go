package appointment

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/wardsys/ward/internal/platform/apperr"
	"github.com/wardsys/ward/internal/platform/db"
	"github.com/wardsys/ward/internal/platform/metrics"
	"github.com/wardsys/ward/internal/platform/websocket"
)

// DefaultFollowUp is how far ahead a non-final schedule request books the
// next appointment when no time is given.
const DefaultFollowUp = 7 * 24 * time.Hour

type Service struct {
	repo     Repository
	patients OutcomeWriter
	tx       db.Transactor
	metrics  *metrics.Collector
	events   websocket.Publisher
	log      zerolog.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewService(repo Repository, patients OutcomeWriter, tx db.Transactor, m *metrics.Collector, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		tx:       tx,
		metrics:  m,
		events:   websocket.Discard,
		log:      logger.With().Str("component", "appointments").Logger(),
		validate: apperr.NewValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetPublisher sends committed appointment changes to p.
func (s *Service) SetPublisher(p websocket.Publisher) {
	s.events = p
}

func (s *Service) publish(ctx context.Context, typ string, a *Appointment) {
	s.events.Publish(ctx, websocket.Event{
		Type:          typ,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		AppointmentID: a.ID,
		Status:        a.Status.String(),
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Create books an appointment on behalf of staff. It always starts Pending.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	if err := s.validate.Struct(req); err != nil {
		s.log.Warn().Err(err).Msg("appointment create rejected")
		return nil, apperr.Invalid(err)
	}

	a := &Appointment{DoctorID: req.DoctorID, PatientID: req.PatientID, Status: StatusPending}
	if req.ScheduledAt != nil {
		at, err := s.parseTime(*req.ScheduledAt)
		if err != nil {
			return nil, err
		}
		if at.Before(startOfDay(s.now())) {
			return nil, apperr.Validation("scheduled_at %s is in the past", *req.ScheduledAt)
		}
		a.ScheduledAt = &at
	}
	if req.About != nil && *req.About != "" {
		a.About = req.About
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.metrics.AppointmentCreated()
	s.log.Info().Int64("appointment_id", a.ID).Int64("doctor_id", a.DoctorID).
		Int64("patient_id", a.PatientID).Msg("appointment created")
	s.publish(ctx, websocket.AppointmentCreated, a)
	return a, nil
}

// UpdateStatus applies one of the named actions. Unknown actions and
// transitions outside the table are refused without touching the row.
func (s *Service) UpdateStatus(ctx context.Context, action string, id int64) (*Appointment, error) {
	act, err := ParseAction(action)
	if err != nil {
		s.log.Warn().Str("action", action).Int64("appointment_id", id).Msg("unknown appointment action")
		s.metrics.Transition("unknown", "invalid")
		return nil, err
	}

	var out *Appointment
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, a, act); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, websocket.AppointmentUpdated, out)
	return out, nil
}

// transition moves a locked appointment along the table and persists it.
func (s *Service) transition(ctx context.Context, a *Appointment, act Action) error {
	next, ok := a.Status.Apply(act)
	if !ok {
		s.log.Warn().Int64("appointment_id", a.ID).Str("action", act.String()).
			Str("status", a.Status.String()).Msg("appointment transition refused")
		s.metrics.Transition(act.String(), "refused")
		return apperr.Conflictf("cannot %s an appointment that is %s", act, a.Status)
	}
	if err := s.repo.SetStatus(ctx, a.ID, next); err != nil {
		return err
	}
	s.log.Info().Int64("appointment_id", a.ID).Str("from", a.Status.String()).
		Str("to", next.String()).Msg("appointment status changed")
	s.metrics.Transition(act.String(), "applied")
	a.Status = next
	return nil
}

// Schedule either finalizes the patient's diagnosis and completes the
// appointment, or books the appointment again with a new comment.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (*Appointment, error) {
	// an empty schedule_to from a form means no time was picked
	if req.ScheduleTo != nil && strings.TrimSpace(*req.ScheduleTo) == "" {
		req.ScheduleTo = nil
	}
	if err := s.validate.Struct(req); err != nil {
		s.log.Warn().Err(err).Int64("appointment_id", req.AppointmentID).Msg("schedule request rejected")
		return nil, apperr.Invalid(err)
	}

	at := s.now().Add(DefaultFollowUp)
	if req.ScheduleTo != nil {
		parsed, err := s.parseTime(*req.ScheduleTo)
		if err != nil {
			return nil, err
		}
		at = parsed
	}

	var out *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, req.AppointmentID)
		if err != nil {
			return err
		}
		if a.PatientID != req.PatientID {
			return apperr.Validation("appointment %d does not belong to patient %d", a.ID, req.PatientID)
		}

		if *req.IsFinal {
			if err := s.patients.SetOutcome(ctx, req.PatientID, *req.About); err != nil {
				return err
			}
			if err := s.transition(ctx, a, ActionComplete); err != nil {
				return err
			}
		} else {
			if err := s.repo.Reschedule(ctx, a.ID, *req.About, at); err != nil {
				return err
			}
			a.About = req.About
			a.ScheduledAt = &at
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("appointment_id", out.ID).Bool("final", *req.IsFinal).Msg("appointment scheduled")
	s.publish(ctx, websocket.AppointmentScheduled, out)
	return out, nil
}

// ListByFilter lists appointments on one dimension: doctor or patient id, or
// status name/code. An empty result is an empty slice.
func (s *Service) ListByFilter(ctx context.Context, by, value string, limit, offset int) ([]View, error) {
	f := Filter{By: by}
	switch by {
	case ByDoctor, ByPatient:
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id <= 0 {
			return nil, apperr.Validation("%s filter needs a positive id, got %q", by, value)
		}
		f.ID = id
	case ByStatus:
		st, err := ParseStatus(value)
		if err != nil {
			return nil, err
		}
		f.Status = st
	default:
		return nil, apperr.Validation("unknown filter %q, expected doctor, patient or status", by)
	}

	rows, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(rows))
	for _, r := range rows {
		views = append(views, r.ToView())
	}
	return views, nil
}

func (s *Service) parseTime(v string) (time.Time, error) {
	t, err := time.ParseInLocation(ScheduleLayout, v, s.now().Location())
	if err != nil {
		return time.Time{}, apperr.Validation("invalid time %q, expected %s", v, ScheduleLayout)
	}
	return t, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
