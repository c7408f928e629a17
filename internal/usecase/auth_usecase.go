package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"deenice_finds/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	Username     string
	PasswordHash string
	Secret       []byte
	TokenTTL     time.Duration
	IdleTimeout  time.Duration
}

// HashPassword derives the bcrypt hash used when only a plain admin password is configured.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash admin password: %w", err)
	}
	return string(hash), nil
}

// sessionRegistry records the last authenticated request per admin.
type sessionRegistry struct {
	mu       sync.Mutex
	activity map[string]time.Time
}

func (s *sessionRegistry) touch(username string, at time.Time) {
	s.mu.Lock()
	s.activity[username] = at
	s.mu.Unlock()
}

func (s *sessionRegistry) remove(username string) {
	s.mu.Lock()
	delete(s.activity, username)
	s.mu.Unlock()
}

// check refreshes the session or removes it when idle for longer than timeout.
func (s *sessionRegistry) check(username string, at time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.activity[username]
	if !ok {
		return false
	}
	if at.Sub(last) > timeout {
		delete(s.activity, username)
		return false
	}
	s.activity[username] = at
	return true
}

type authUseCase struct {
	cfg      AuthConfig
	sessions *sessionRegistry
	now      func() time.Time
	log      *logrus.Logger
}

func NewAuthUseCase(cfg AuthConfig, logger *logrus.Logger) domain.AuthUseCase {
	return &authUseCase{
		cfg:      cfg,
		sessions: &sessionRegistry{activity: make(map[string]time.Time)},
		now:      time.Now,
		log:      logger,
	}
}

func (uc *authUseCase) Login(ctx context.Context, username, password string) (*domain.AuthResponse, error) {
	uc.log.Infof("Use Case: Admin login attempt for %q", username)

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(uc.cfg.Username)) == 1
	err := bcrypt.CompareHashAndPassword([]byte(uc.cfg.PasswordHash), []byte(password))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		uc.log.Errorf("Use Case: Error comparing admin password hash: %v", err)
		return nil, fmt.Errorf("internal error during authentication: %w", err)
	}
	if !userOK || err != nil {
		uc.log.Warnf("Use Case: Admin login failed for %q", username)
		return nil, &domain.AuthError{Code: domain.AuthInvalidCredentials, Message: "Invalid credentials"}
	}

	now := uc.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(uc.cfg.TokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(uc.cfg.Secret)
	if err != nil {
		uc.log.Errorf("Use Case: Failed to sign admin token: %v", err)
		return nil, fmt.Errorf("sign token: %w", err)
	}
	uc.sessions.touch(username, now)

	uc.log.Infof("Use Case: Admin %s logged in", username)
	return &domain.AuthResponse{Token: token, ExpiresIn: uc.cfg.TokenTTL, Username: username}, nil
}

func (uc *authUseCase) Logout(ctx context.Context, username string) {
	uc.sessions.remove(username)
	uc.log.Infof("Use Case: Admin %s logged out", username)
}

// Authenticate verifies the bearer token, then the idle session. Enforcement happens
// only here, on request; there is no background sweep.
func (uc *authUseCase) Authenticate(ctx context.Context, rawToken string) (*domain.AdminClaims, error) {
	if rawToken == "" {
		return nil, &domain.AuthError{Code: domain.AuthMissing, Message: "Access token required"}
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		return uc.cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(uc.now))
	if err != nil {
		uc.log.Warnf("Use Case: Rejected admin token: %v", err)
		return nil, &domain.AuthError{Code: domain.AuthInvalidToken, Message: "Invalid or expired token"}
	}

	now := uc.now()
	if !uc.sessions.check(claims.Subject, now, uc.cfg.IdleTimeout) {
		uc.log.Infof("Use Case: Admin session for %s expired", claims.Subject)
		return nil, &domain.AuthError{Code: domain.AuthSessionExpired, Message: "Session expired. Please login again."}
	}

	out := &domain.AdminClaims{Username: claims.Subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
