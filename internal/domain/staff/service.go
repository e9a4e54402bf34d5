package staff

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/wardsys/ward/internal/platform/apperr"
	"github.com/wardsys/ward/internal/platform/auth"
	"github.com/wardsys/ward/internal/platform/db"
)

const defaultTenant = "default"

type Service struct {
	repo     Repository
	jwt      auth.JWTConfig
	log      zerolog.Logger
	validate *validator.Validate
	cost     int
	now      func() time.Time
}

func NewService(repo Repository, jwtCfg auth.JWTConfig, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		jwt:      jwtCfg,
		log:      logger.With().Str("component", "staff").Logger(),
		validate: apperr.NewValidator(),
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// Create stores a new account with a bcrypt hash of the password. Doctor
// accounts must be linked to a doctor.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Account, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Invalid(err)
	}
	if req.Role == auth.RoleDoctor && req.DoctorID == 0 {
		return nil, apperr.Validation("doctor accounts need a doctor_id")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, err
	}
	a := &Account{
		Login:        strings.ToLower(req.Login),
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
		Role:         req.Role,
	}
	if req.DoctorID != 0 {
		id := req.DoctorID
		a.DoctorID = &id
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info().Int64("account_id", a.ID).Str("role", a.Role).Msg("staff account created")
	return a, nil
}

// Login checks the credentials and issues a session token for the tenant
// the request was resolved to.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Invalid(err)
	}
	a, err := s.repo.GetByLogin(ctx, strings.ToLower(req.Login))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.log.Warn().Str("login", req.Login).Msg("login failed: unknown account")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)); err != nil {
		s.log.Warn().Int64("account_id", a.ID).Msg("login failed: wrong password")
		return nil, ErrInvalidCredentials
	}

	tenant := db.TenantFromContext(ctx)
	if tenant == "" {
		tenant = defaultTenant
	}
	token, sess, err := auth.IssueToken(s.jwt, a.Session(tenant), s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("account_id", a.ID).Str("tenant", tenant).Msg("login")
	return &LoginResponse{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		AccountID: a.ID,
		Name:      a.DisplayName,
		Role:      a.Role,
		DoctorID:  sess.DoctorID,
	}, nil
}

// Logout revokes the token of the current session until it would have
// expired anyway.
func (s *Service) Logout(ctx context.Context) error {
	sess, ok := auth.SessionFromContext(ctx)
	if !ok || sess.TokenID == "" {
		return apperr.Validation("no session token to revoke")
	}
	if s.jwt.Revoked != nil {
		s.jwt.Revoked.Revoke(sess.TokenID, sess.ExpiresAt)
	}
	s.log.Info().Int64("account_id", sess.AccountID).Msg("logout")
	return nil
}
