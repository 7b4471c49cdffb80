package authsvc

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkrupp/filevault/internal/domain"
)

// AuthClaims are the claims carried by an access token.
type AuthClaims struct {
	jwt.RegisteredClaims

	Roles []string `json:"roles"`
}

// TokenService issues and verifies stateless HS256 access tokens.
// It holds no mutable state and is safe for concurrent use.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenService creates a TokenService from a validated configuration.
func NewTokenService(cfg AuthConfig) (*TokenService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &TokenService{
		secret: []byte(cfg.SigningSecret),
		ttl:    cfg.TokenTTL,
		issuer: cfg.Issuer,
	}, nil
}

// Issue signs a token for identity that expires TTL after now.
// The returned expiry is the instant encoded in the token, truncated to seconds.
func (s *TokenService) Issue(identity domain.Identity, now time.Time) (string, time.Time, error) {
	if identity.Username == "" || identity.Roles.IsEmpty() {
		return "", time.Time{}, fmt.Errorf("%w: identity needs a username and roles", domain.ErrInvalidInput)
	}

	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{ //nolint:exhaustruct
			Issuer:    s.issuer,
			Subject:   identity.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Roles: identity.Roles.Strings(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return token, claims.ExpiresAt.Time, nil
}

// Verify checks the token's algorithm, signature and expiry at now and
// returns the identity it carries. A token is expired from its exp instant on.
func (s *TokenService) Verify(token string, now time.Time) (domain.Identity, error) {
	var claims AuthClaims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, mapJWTError(err)
	}

	if claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing subject", domain.ErrMalformedToken)
	}

	roles, err := domain.ParseRoleSet(claims.Roles)
	if err != nil {
		return domain.Identity{}, errors.Join(domain.ErrMalformedToken, err)
	}

	if roles.IsEmpty() {
		return domain.Identity{}, fmt.Errorf("%w: missing roles", domain.ErrMalformedToken)
	}

	return domain.Identity{Username: claims.Subject, Roles: roles}, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return errors.Join(domain.ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return errors.Join(domain.ErrTokenExpired, err)
	default:
		return errors.Join(domain.ErrMalformedToken, err)
	}
}
