package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/lessonbook/payments-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any failed back-office login
var ErrInvalidCredentials = errors.New("invalid email or password")

// AdminLoginResponse is returned by POST /admin/login
type AdminLoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AdminAuthService authenticates the single configured back-office user
type AdminAuthService struct {
	email        string
	passwordHash string
	jwtService   *jwt.Service
	logger       *logrus.Logger
}

// NewAdminAuthService creates a new admin auth service
func NewAdminAuthService(email, passwordHash string, jwtService *jwt.Service, logger *logrus.Logger) *AdminAuthService {
	return &AdminAuthService{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: passwordHash,
		jwtService:   jwtService,
		logger:       logger,
	}
}

// Login checks the credentials and issues an admin access token
func (s *AdminAuthService) Login(email, password string) (*AdminLoginResponse, error) {
	if s.email == "" || s.passwordHash == "" {
		return nil, ErrInvalidCredentials
	}

	email = strings.ToLower(strings.TrimSpace(email))
	emailMatches := subtle.ConstantTimeCompare([]byte(email), []byte(s.email)) == 1

	// Always run bcrypt so a wrong email costs the same as a wrong password
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil || !emailMatches {
		s.logger.WithField("email", email).Warn("Admin login failed")
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtService.GenerateAccessToken(s.email, []string{jwt.RoleAdmin})
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.logger.WithField("email", s.email).Info("Admin logged in")

	return &AdminLoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtService.Expiry().Seconds()),
	}, nil
}
