package staff

import (
	"time"

	"github.com/wardsys/ward/internal/platform/auth"
)

// Account is a staff login. DoctorID links doctor accounts to their doctor
// record; it scopes the "my patients" and "my appointments" views.
type Account struct {
	ID           int64     `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	DoctorID     *int64    `json:"doctor_id,omitempty"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *Account) Session(tenantID string) auth.Session {
	s := auth.Session{AccountID: a.ID, Name: a.DisplayName, Role: a.Role, TenantID: tenantID}
	if a.DoctorID != nil {
		s.DoctorID = *a.DoctorID
	}
	return s
}

type LoginRequest struct {
	Login    string `json:"login" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AccountID int64     `json:"account_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	DoctorID  int64     `json:"doctor_id,omitempty"`
}

type CreateRequest struct {
	Login       string `json:"login" validate:"required,alphanum,min=3,max=64"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,max=200"`
	Role        string `json:"role" validate:"required,oneof=admin doctor registrar"`
	DoctorID    int64  `json:"doctor_id" validate:"gte=0"`
}
