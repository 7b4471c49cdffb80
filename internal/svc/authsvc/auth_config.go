package authsvc

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MinSigningSecretLength is the shortest accepted HS256 secret in bytes.
	MinSigningSecretLength = 32

	// MinTokenTTL is the shortest accepted token lifetime. Token expiry has
	// one second resolution.
	MinTokenTTL = time.Second
)

var (
	// ErrNoSigningSecret is returned when no token signing secret is configured.
	ErrNoSigningSecret = errors.New("no signing secret configured")
	// ErrWeakSigningSecret is returned when the signing secret is shorter than MinSigningSecretLength.
	ErrWeakSigningSecret = errors.New("signing secret too short")
	// ErrTokenTTLTooShort is returned when the token lifetime is below MinTokenTTL.
	ErrTokenTTLTooShort = errors.New("token ttl too short")
)

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// SigningSecret is the HS256 key; use SIGNING_SECRET_FILE to read it from a file
	SigningSecret string `env:"SIGNING_SECRET" default:""`

	// TokenTTL is the validity duration of auth tokens
	TokenTTL time.Duration `env:"TOKEN_TTL" default:"24h"`

	// Issuer is written to and required in the iss claim
	Issuer string `env:"ISSUER" default:"filevault"`

	Argon2 Argon2Config `envPrefix:"ARGON2_"`
}

// Validate reports configuration that must abort startup.
func (cfg AuthConfig) Validate() error {
	switch {
	case cfg.SigningSecret == "":
		return ErrNoSigningSecret
	case len(cfg.SigningSecret) < MinSigningSecretLength:
		return fmt.Errorf("%w: need at least %d bytes, got %d",
			ErrWeakSigningSecret, MinSigningSecretLength, len(cfg.SigningSecret))
	case cfg.TokenTTL < MinTokenTTL:
		return fmt.Errorf("%w: need at least %s, got %s", ErrTokenTTLTooShort, MinTokenTTL, cfg.TokenTTL)
	}

	return cfg.Argon2.Validate()
}
