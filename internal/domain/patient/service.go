package patient

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/wardsys/ward/internal/platform/apperr"
	"github.com/wardsys/ward/internal/platform/db"
	"github.com/wardsys/ward/internal/platform/metrics"
	"github.com/wardsys/ward/internal/platform/websocket"
)

var cityPattern = regexp.MustCompile(`^\p{L}+(?:[ \-]\p{L}+)*$`)

type Service struct {
	repo     Repository
	releaser ResourceReleaser
	tx       db.Transactor
	metrics  *metrics.Collector
	events   websocket.Publisher
	log      zerolog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService wires the lifecycle. The releaser is usually set afterwards
// with SetReleaser, since the assignment service depends on this one.
func NewService(repo Repository, tx db.Transactor, m *metrics.Collector, logger zerolog.Logger) *Service {
	v := apperr.NewValidator()
	v.RegisterValidation("city", func(fl validator.FieldLevel) bool {
		return cityPattern.MatchString(fl.Field().String())
	})
	return &Service{
		repo:     repo,
		tx:       tx,
		metrics:  m,
		events:   websocket.Discard,
		log:      logger.With().Str("component", "patients").Logger(),
		validate: v,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetReleaser(r ResourceReleaser) {
	s.releaser = r
}

func (s *Service) SetPublisher(p websocket.Publisher) {
	s.events = p
}

// Admit creates an unassigned patient with today's intake date.
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (*Patient, error) {
	if err := s.validate.Struct(req); err != nil {
		s.log.Warn().Err(err).Msg("admission rejected")
		return nil, apperr.Invalid(err)
	}
	today := dateOf(s.now())
	birth, err := time.Parse(DateLayout, req.DateBirth)
	if err != nil {
		return nil, apperr.Validation("date_birth %q is not a date", req.DateBirth)
	}
	if !birth.Before(today) {
		s.log.Warn().Str("date_birth", req.DateBirth).Msg("admission rejected: birth date not in the past")
		return nil, apperr.Validation("date_birth %s must be in the past", req.DateBirth)
	}

	p := &Patient{
		FirstName:  req.FirstName,
		SecondName: req.SecondName,
		DateBirth:  birth,
		City:       strings.TrimSpace(req.City),
		IntakeDate: today,
	}
	if req.Passport != "" {
		p.Passport = &req.Passport
	}
	if d := strings.TrimSpace(req.InitialDiagnosis); d != "" {
		p.IncomeDiagnosis = &d
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.metrics.Admitted()
	s.log.Info().Int64("patient_id", p.ID).Msg("patient admitted")
	s.events.Publish(ctx, websocket.Event{Type: websocket.PatientAdmitted, PatientID: p.ID})
	return p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// Find returns the display view of one patient.
func (s *Service) Find(ctx context.Context, id int64) (View, error) {
	if id <= 0 {
		return View{}, apperr.Validation("patient id must be positive")
	}
	row, err := s.repo.FindRow(ctx, id)
	if err != nil {
		return View{}, err
	}
	return row.ToView(s.now()), nil
}

func (s *Service) ListUnassigned(ctx context.Context, limit, offset int) ([]View, error) {
	return s.list(ctx, ListFilter{State: StateUnassigned}, limit, offset)
}

func (s *Service) ListAssigned(ctx context.Context, limit, offset int) ([]View, error) {
	return s.list(ctx, ListFilter{State: StateAssigned}, limit, offset)
}

// ListDischargeable lists assigned patients that already have a final
// diagnosis.
func (s *Service) ListDischargeable(ctx context.Context, limit, offset int) ([]View, error) {
	return s.list(ctx, ListFilter{State: StateDischargeable}, limit, offset)
}

func (s *Service) ListAssignedToDoctor(ctx context.Context, doctorID int64, limit, offset int) ([]View, error) {
	if doctorID <= 0 {
		return nil, apperr.Validation("doctor id must be positive")
	}
	return s.list(ctx, ListFilter{State: StateAssigned, DoctorID: doctorID}, limit, offset)
}

// ListByState dispatches on the state name used by the HTTP layer.
func (s *Service) ListByState(ctx context.Context, state string, limit, offset int) ([]View, error) {
	st := ListState(state)
	if state == "" {
		st = StateUnassigned
	}
	if !st.Valid() {
		return nil, apperr.Validation("unknown patient state %q", state)
	}
	return s.list(ctx, ListFilter{State: st}, limit, offset)
}

func (s *Service) list(ctx context.Context, f ListFilter, limit, offset int) ([]View, error) {
	rows, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, err
	}
	today := s.now()
	views := make([]View, 0, len(rows))
	for _, r := range rows {
		views = append(views, r.ToView(today))
	}
	return views, nil
}

// SetOutcome records the final diagnosis of an active patient.
func (s *Service) SetOutcome(ctx context.Context, id int64, diagnosis string) error {
	p, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return err
	}
	if p.Discharged() {
		return apperr.Conflictf("patient %d is already discharged", id)
	}
	return s.repo.SetOutcome(ctx, id, diagnosis)
}

// Discharge closes the patient's stay and gives the doctor and chamber slot
// back. The doctor and chamber ids stay on the record as history.
func (s *Service) Discharge(ctx context.Context, id int64, req DischargeRequest) (*Patient, error) {
	if id <= 0 {
		return nil, apperr.Validation("patient id must be positive")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Invalid(err)
	}

	var out *Patient
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Discharged() {
			return apperr.Conflictf("patient %d is already discharged", id)
		}
		if !p.Assigned() {
			return apperr.Conflictf("patient %d has no doctor or chamber to release", id)
		}
		doctorID, chamberID := *p.DoctorID, *p.ChamberID
		if (req.DoctorID != 0 && req.DoctorID != doctorID) || (req.ChamberID != 0 && req.ChamberID != chamberID) {
			s.log.Warn().Int64("patient_id", id).
				Int64("doctor_id", req.DoctorID).Int64("record_doctor_id", doctorID).
				Int64("chamber_id", req.ChamberID).Int64("record_chamber_id", chamberID).
				Msg("discharge ids do not match the patient record")
			return apperr.Validation("patient %d is assigned to doctor %d and chamber %d", id, doctorID, chamberID)
		}

		var outcome *string
		if d := strings.TrimSpace(req.OutcomeDiagnosis); d != "" {
			outcome = &d
		} else if p.OutcomeDiagnosis == nil {
			return apperr.Validation("outcome_diagnosis is required")
		}

		today := dateOf(s.now())
		if err := s.repo.Discharge(ctx, id, today, outcome); err != nil {
			return err
		}
		if err := s.releaser.Release(ctx, doctorID, chamberID); err != nil {
			return err
		}
		p.DischargeDate = &today
		if outcome != nil {
			p.OutcomeDiagnosis = outcome
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Discharged()
	s.log.Info().Int64("patient_id", id).Int64("doctor_id", *out.DoctorID).
		Int64("chamber_id", *out.ChamberID).Msg("patient discharged")
	s.events.Publish(ctx, websocket.Event{
		Type:      websocket.PatientDischarged,
		PatientID: id,
		DoctorID:  *out.DoctorID,
		ChamberID: *out.ChamberID,
	})
	return out, nil
}
