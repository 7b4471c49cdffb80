package authsvc_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/svc/authsvc"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokenService(t *testing.T) *authsvc.TokenService {
	t.Helper()

	tokens, err := authsvc.NewTokenService(authsvc.AuthConfig{
		SigningSecret: testSecret,
		TokenTTL:      time.Hour,
		Issuer:        "filevault",
		Argon2:        testArgon2,
	})
	require.NoError(t, err)

	return tokens
}

func TestNewTokenServiceRejectsWeakSecrets(t *testing.T) {
	t.Parallel()

	_, err := authsvc.NewTokenService(authsvc.AuthConfig{TokenTTL: time.Hour})
	require.ErrorIs(t, err, authsvc.ErrNoSigningSecret)

	_, err = authsvc.NewTokenService(authsvc.AuthConfig{SigningSecret: "short", TokenTTL: time.Hour})
	require.ErrorIs(t, err, authsvc.ErrWeakSigningSecret)
}

func TestAuthConfigValidate(t *testing.T) {
	t.Parallel()

	valid := authsvc.AuthConfig{SigningSecret: testSecret, TokenTTL: time.Hour, Argon2: testArgon2}

	tests := []struct {
		name    string
		mutate  func(cfg *authsvc.AuthConfig)
		wantErr error
	}{
		{name: "valid", mutate: func(*authsvc.AuthConfig) {}},
		{name: "one second ttl", mutate: func(cfg *authsvc.AuthConfig) { cfg.TokenTTL = time.Second }},
		{
			name:    "sub-second ttl",
			mutate:  func(cfg *authsvc.AuthConfig) { cfg.TokenTTL = 500 * time.Millisecond },
			wantErr: authsvc.ErrTokenTTLTooShort,
		},
		{name: "zero ttl", mutate: func(cfg *authsvc.AuthConfig) { cfg.TokenTTL = 0 }, wantErr: authsvc.ErrTokenTTLTooShort},
		{
			name:    "zero argon2 threads",
			mutate:  func(cfg *authsvc.AuthConfig) { cfg.Argon2.Threads = 0 },
			wantErr: authsvc.ErrInvalidArgon2Config,
		},
		{
			name:    "zero argon2 time",
			mutate:  func(cfg *authsvc.AuthConfig) { cfg.Argon2.Time = 0 },
			wantErr: authsvc.ErrInvalidArgon2Config,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestTokenServiceRoundTrip(t *testing.T) {
	t.Parallel()

	tokens := newTestTokenService(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	identity := domain.Identity{Username: "test", Roles: domain.NewRoleSet(domain.RoleAdmin, domain.RoleUser)}

	token, expiresAt, err := tokens.Issue(identity, now)
	require.NoError(t, err)
	assert.True(t, now.Add(time.Hour).Equal(expiresAt))

	got, err := tokens.Verify(token, now)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}

func TestTokenServiceExpiry(t *testing.T) {
	t.Parallel()

	tokens := newTestTokenService(t)
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	token, expiresAt, err := tokens.Issue(domain.Identity{Username: "test2", Roles: domain.NewRoleSet(domain.RoleUser)}, issued)
	require.NoError(t, err)

	tests := []struct {
		name    string
		at      time.Time
		wantErr error
	}{
		{name: "at issue", at: issued},
		{name: "one second before expiry", at: expiresAt.Add(-time.Second)},
		{name: "at expiry", at: expiresAt, wantErr: domain.ErrTokenExpired},
		{name: "after expiry", at: expiresAt.Add(time.Minute), wantErr: domain.ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tokens.Verify(token, tt.at)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestTokenServiceExpiryIsMonotonic(t *testing.T) {
	t.Parallel()

	tokens := newTestTokenService(t)
	identity := domain.Identity{Username: "test", Roles: domain.NewRoleSet(domain.RoleUser)}
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	var last time.Time

	for i := range 5 {
		_, expiresAt, err := tokens.Issue(identity, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.False(t, expiresAt.Before(last))

		last = expiresAt
	}
}

func TestTokenServiceRejectsTamperedTokens(t *testing.T) {
	t.Parallel()

	tokens := newTestTokenService(t)
	now := time.Now()
	identity := domain.Identity{Username: "test2", Roles: domain.NewRoleSet(domain.RoleUser)}

	token, _, err := tokens.Issue(identity, now)
	require.NoError(t, err)

	otherService, err := authsvc.NewTokenService(authsvc.AuthConfig{
		SigningSecret: strings.Repeat("x", 32),
		TokenTTL:      time.Hour,
		Issuer:        "filevault",
		Argon2:        testArgon2,
	})
	require.NoError(t, err)

	foreign, _, err := otherService.Issue(identity, now)
	require.NoError(t, err)

	escalated := jwt.NewWithClaims(jwt.SigningMethodHS256, authsvc.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "filevault",
			Subject:   "test2",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Roles: []string{"admin", "user"},
	})
	escalatedToken, err := escalated.SignedString([]byte(strings.Repeat("y", 32)))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, authsvc.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "filevault",
			Subject:   "test2",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Roles: []string{"admin"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	flipped := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, authsvc.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "filevault", Subject: "test2"},
		Roles:            []string{"user"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	unknownRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, authsvc.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "filevault",
			Subject:   "test2",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Roles: []string{"root"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "foreign secret", token: foreign, wantErr: domain.ErrInvalidSignature},
		{name: "forged roles", token: escalatedToken, wantErr: domain.ErrInvalidSignature},
		{name: "alg none", token: none, wantErr: domain.ErrInvalidSignature},
		{name: "flipped signature", token: flipped, wantErr: domain.ErrInvalidSignature},
		{name: "garbage", token: "not-a-token", wantErr: domain.ErrMalformedToken},
		{name: "no expiry", token: noExpiry, wantErr: domain.ErrMalformedToken},
		{name: "unknown role", token: unknownRole, wantErr: domain.ErrMalformedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tokens.Verify(tt.token, now)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
