package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wardsys/ward/internal/platform/apperr"
)

// NotAvailable is shown in list views in place of values that are null or
// no longer resolve.
const NotAvailable = "N/A"

// ScheduleLayout is the wire format of schedule_to and scheduled_at.
const ScheduleLayout = "2006-01-02T15:04"

type Status int16

const (
	StatusPending  Status = 0
	StatusAccepted Status = 1
	StatusRejected Status = 2
	StatusDone     Status = 3
)

var statusNames = map[Status]string{
	StatusPending:  "pending",
	StatusAccepted: "accepted",
	StatusRejected: "rejected",
	StatusDone:     "done",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int16(s))
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal reports whether no action can move s any further.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// ParseStatus accepts either the status name or its numeric code.
func ParseStatus(v string) (Status, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for s, name := range statusNames {
		if v == name {
			return s, nil
		}
	}
	if n, err := strconv.Atoi(v); err == nil && Status(n).Valid() {
		return Status(n), nil
	}
	return 0, apperr.Validation("unknown appointment status %q", v)
}

type Action int

const (
	ActionAccept   Action = 1
	ActionReject   Action = 2
	ActionComplete Action = 3
)

var actionNames = map[string]Action{
	"accept":   ActionAccept,
	"reject":   ActionReject,
	"complete": ActionComplete,
}

func (a Action) String() string {
	for name, act := range actionNames {
		if act == a {
			return name
		}
	}
	return fmt.Sprintf("action(%d)", int(a))
}

func ParseAction(v string) (Action, error) {
	if a, ok := actionNames[strings.ToLower(strings.TrimSpace(v))]; ok {
		return a, nil
	}
	return 0, apperr.Validation("unknown appointment action %q", v)
}

// transitions is the complete set of allowed status changes. Rejected and
// Done have no outgoing edges.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionAccept:   StatusAccepted,
		ActionReject:   StatusRejected,
		ActionComplete: StatusDone,
	},
	StatusAccepted: {
		ActionComplete: StatusDone,
	},
}

// Apply returns the status a takes s to, or false if the change is not allowed.
func (s Status) Apply(a Action) (Status, bool) {
	next, ok := transitions[s][a]
	return next, ok
}

type Appointment struct {
	ID          int64      `json:"id"`
	DoctorID    int64      `json:"doctor_id"`
	PatientID   int64      `json:"patient_id"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	About       *string    `json:"about,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Row is an appointment joined with the names list views display. The
// names are nil when the referenced patient or doctor no longer resolves.
type Row struct {
	Appointment
	PatientFirstName  *string
	PatientSecondName *string
	DoctorName        *string
}

type View struct {
	ID              int64  `json:"id"`
	DoctorID        int64  `json:"doctor_id"`
	DoctorName      string `json:"doctor_name"`
	PatientID       int64  `json:"patient_id"`
	PatientInitials string `json:"patient_initials"`
	ScheduledAt     string `json:"scheduled_at"`
	About           string `json:"about"`
	Status          Status `json:"status"`
	StatusName      string `json:"status_name"`
}

// ToView flattens r, substituting NotAvailable for anything missing.
func (r *Row) ToView() View {
	v := View{
		ID:              r.ID,
		DoctorID:        r.DoctorID,
		DoctorName:      NotAvailable,
		PatientID:       r.PatientID,
		PatientInitials: initials(r.PatientFirstName, r.PatientSecondName),
		ScheduledAt:     NotAvailable,
		About:           NotAvailable,
		Status:          r.Status,
		StatusName:      r.Status.String(),
	}
	if r.DoctorName != nil && *r.DoctorName != "" {
		v.DoctorName = *r.DoctorName
	}
	if r.ScheduledAt != nil {
		v.ScheduledAt = r.ScheduledAt.Format(ScheduleLayout)
	}
	if r.About != nil && *r.About != "" {
		v.About = *r.About
	}
	return v
}

func initials(first, second *string) string {
	if first == nil || second == nil || *first == "" || *second == "" {
		return NotAvailable
	}
	f, s := []rune(*first), []rune(*second)
	return strings.ToUpper(string(f[0])) + ". " + strings.ToUpper(string(s[0])) + "."
}

// Filter dimensions accepted by ListByFilter.
const (
	ByDoctor  = "doctor"
	ByPatient = "patient"
	ByStatus  = "status"
)

// Filter selects appointments on exactly one dimension.
type Filter struct {
	By     string
	ID     int64
	Status Status
}

type ScheduleRequest struct {
	IsFinal       *bool   `json:"is_final" validate:"required"`
	About         *string `json:"about" validate:"required,min=1,max=2000"`
	ScheduleTo    *string `json:"schedule_to" validate:"omitempty,datetime=2006-01-02T15:04"`
	AppointmentID int64   `json:"appointment_id" validate:"required,gt=0"`
	PatientID     int64   `json:"patient_id" validate:"required,gt=0"`
}

type CreateRequest struct {
	DoctorID    int64   `json:"doctor_id" validate:"required,gt=0"`
	PatientID   int64   `json:"patient_id" validate:"required,gt=0"`
	ScheduledAt *string `json:"scheduled_at" validate:"omitempty,datetime=2006-01-02T15:04"`
	About       *string `json:"about" validate:"omitempty,max=2000"`
}
