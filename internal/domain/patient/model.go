package patient

import (
	"strconv"
	"time"
)

// NotAvailable stands in for null or unresolvable fields in views.
const NotAvailable = "N/A"

const DateLayout = "2006-01-02"

type Patient struct {
	ID               int64      `json:"id"`
	Passport         *string    `json:"passport,omitempty"`
	FirstName        string     `json:"first_name"`
	SecondName       string     `json:"second_name"`
	DateBirth        time.Time  `json:"date_birth"`
	City             string     `json:"city"`
	IntakeDate       time.Time  `json:"intake_date"`
	IncomeDiagnosis  *string    `json:"income_diagnosis,omitempty"`
	OutcomeDiagnosis *string    `json:"outcome_diagnosis,omitempty"`
	DischargeDate    *time.Time `json:"discharge_date,omitempty"`
	DoctorID         *int64     `json:"doctor_id,omitempty"`
	ChamberID        *int64     `json:"chamber_id,omitempty"`
}

// Assigned reports whether the patient holds (or, once discharged, held) a
// doctor and a chamber.
func (p *Patient) Assigned() bool {
	return p.DoctorID != nil && p.ChamberID != nil
}

func (p *Patient) Discharged() bool {
	return p.DischargeDate != nil
}

// Row is a patient joined with the name of the assigned doctor.
type Row struct {
	Patient
	DoctorName *string
}

type View struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Passport         string `json:"passport"`
	DateBirth        string `json:"date_birth"`
	City             string `json:"city"`
	IntakeDate       string `json:"intake_date"`
	DaysAwaiting     int    `json:"days_awaiting"`
	IncomeDiagnosis  string `json:"income_diagnosis"`
	OutcomeDiagnosis string `json:"outcome_diagnosis"`
	DischargeDate    string `json:"discharge_date"`
	Doctor           string `json:"doctor"`
	Chamber          string `json:"chamber"`
}

// ToView renders r as of today. Null fields become NotAvailable.
func (r *Row) ToView(today time.Time) View {
	v := View{
		ID:               r.ID,
		Name:             r.FirstName + " " + r.SecondName,
		Passport:         orNA(r.Passport),
		DateBirth:        r.DateBirth.Format(DateLayout),
		City:             r.City,
		IntakeDate:       r.IntakeDate.Format(DateLayout),
		DaysAwaiting:     daysBetween(r.IntakeDate, today),
		IncomeDiagnosis:  orNA(r.IncomeDiagnosis),
		OutcomeDiagnosis: orNA(r.OutcomeDiagnosis),
		DischargeDate:    NotAvailable,
		Doctor:           orNA(r.DoctorName),
		Chamber:          NotAvailable,
	}
	if r.DischargeDate != nil {
		v.DischargeDate = r.DischargeDate.Format(DateLayout)
	}
	if r.ChamberID != nil {
		v.Chamber = strconv.FormatInt(*r.ChamberID, 10)
	}
	return v
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return NotAvailable
	}
	return *s
}

// dateOf truncates t to its calendar day in UTC.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(dateOf(to).Sub(dateOf(from)).Hours() / 24)
}

// ListState names the patient projections.
type ListState string

const (
	StateUnassigned    ListState = "unassigned"
	StateAssigned      ListState = "assigned"
	StateDischargeable ListState = "dischargeable"
)

func (s ListState) Valid() bool {
	switch s {
	case StateUnassigned, StateAssigned, StateDischargeable:
		return true
	}
	return false
}

// ListFilter selects active patients by state, optionally narrowed to one
// doctor.
type ListFilter struct {
	State    ListState
	DoctorID int64
}

type AdmitRequest struct {
	FirstName        string `json:"first_name" validate:"required,alphaunicode,max=100"`
	SecondName       string `json:"second_name" validate:"required,alphaunicode,max=100"`
	Passport         string `json:"passport" validate:"omitempty,number,max=32"`
	DateBirth        string `json:"date_birth" validate:"required,datetime=2006-01-02"`
	City             string `json:"city" validate:"required,city,max=100"`
	InitialDiagnosis string `json:"initial_diagnosis" validate:"max=2000"`
}

// DischargeRequest carries the ids the caller believes the patient holds.
// Zero ids are taken from the patient record.
type DischargeRequest struct {
	DoctorID         int64  `json:"doctor_id" validate:"gte=0"`
	ChamberID        int64  `json:"chamber_id" validate:"gte=0"`
	OutcomeDiagnosis string `json:"outcome_diagnosis" validate:"max=2000"`
}
