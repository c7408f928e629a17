package domain

import (
	"context"
	"time"
)

type AuthResponse struct {
	Token     string
	ExpiresIn time.Duration
	Username  string
}

type AdminClaims struct {
	Username  string
	ExpiresAt time.Time
}

type AuthUseCase interface {
	Login(ctx context.Context, username, password string) (*AuthResponse, error)
	Logout(ctx context.Context, username string)
	Authenticate(ctx context.Context, rawToken string) (*AdminClaims, error)
}
