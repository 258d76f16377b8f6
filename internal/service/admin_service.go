package service

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"edupro/internal/util"

	"github.com/rs/zerolog"
)

// AdminCredentials is the configured admin email/PIN pair.
type AdminCredentials struct {
	Email string
	PIN   string
}

// AdminSession is a signed admin token and its expiry.
type AdminSession struct {
	Token     string
	ExpiresAt time.Time
}

// AdminService gates course management behind the admin credentials.
type AdminService interface {
	Login(ctx context.Context, email, pin string) (*AdminSession, error)
}

type adminService struct {
	creds     AdminCredentials
	jwtSecret string
	ttl       time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

func NewAdminService(creds AdminCredentials, jwtSecret string, ttl time.Duration, logger zerolog.Logger) AdminService {
	return &adminService{
		creds:     creds,
		jwtSecret: jwtSecret,
		ttl:       ttl,
		logger:    logger.With().Str("service", "AdminService").Logger(),
		now:       time.Now,
	}
}

func (s *adminService) Login(ctx context.Context, email, pin string) (*AdminSession, error) {
	if !s.matches(email, pin) {
		s.logger.Warn().Str("email", email).Msg("Rejected admin login")
		return nil, ErrInvalidCredentials
	}
	token, expiresAt, err := util.IssueJWT(s.creds.Email, util.RoleAdmin, s.jwtSecret, s.ttl, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("email", s.creds.Email).Msg("Admin logged in")
	return &AdminSession{Token: token, ExpiresAt: expiresAt}, nil
}

// matches compares both values in constant time and never short-circuits.
func (s *adminService) matches(email, pin string) bool {
	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))),
		[]byte(strings.ToLower(strings.TrimSpace(s.creds.Email))),
	)
	pinOK := subtle.ConstantTimeCompare([]byte(pin), []byte(s.creds.PIN))
	return emailOK&pinOK == 1 && s.creds.PIN != ""
}
