package service

import "time"

// Claims is the validated content of a session token.
type Claims struct {
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService defines the interface for generating and validating session tokens.
type TokenService interface {
	// GenerateSessionToken creates a signed token for subject.
	GenerateSessionToken(subject string, roles []string) (token string, expiresAt time.Time, err error)

	// ValidateToken checks signature and expiry and returns the claims.
	ValidateToken(token string) (*Claims, error)
}
