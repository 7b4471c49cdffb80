package domain

import (
	"errors"
	"time"
)

var (
	// ErrNoAuthToken is returned when an authentication token is required but not provided.
	ErrNoAuthToken = errors.New("no auth token")
	// ErrMalformedToken is returned when a token cannot be parsed.
	ErrMalformedToken = errors.New("malformed auth token")
	// ErrInvalidSignature is returned when a token's signature does not verify.
	ErrInvalidSignature = errors.New("invalid auth token signature")
	// ErrTokenExpired is returned when a token is presented at or after its expiry.
	ErrTokenExpired = errors.New("auth token expired")
	// ErrForbidden is returned when the authenticated user lacks a role or does not own a resource.
	ErrForbidden = errors.New("forbidden")
)

// Identity is the authenticated principal resolved from a token.
type Identity struct {
	Username string
	Roles    RoleSet
}

// AuthTokenResponse represents a response containing an authentication token.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginRequest is the body of a login request.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
