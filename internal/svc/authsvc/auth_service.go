package authsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/infra/logging"
	"github.com/mkrupp/filevault/internal/repo/user"
)

// AuthService authenticates users and resolves their tokens.
type AuthService struct {
	Config   AuthConfig
	UserRepo user.Repository
	Tokens   *TokenService
	Hasher   PasswordHasher
	Log      logging.Logger
	Now      func() time.Time

	// dummyHash is compared against for unknown usernames so that they take
	// about as long as a wrong password
	dummyHash string
}

// NewAuthService creates a new AuthService with the given user repository factory and configuration.
// Returns an error if the configuration is invalid or the user repository cannot be created.
func NewAuthService(repoFactory user.RepositoryFactory, cfg AuthConfig) (*AuthService, error) {
	tokens, err := NewTokenService(cfg)
	if err != nil {
		return nil, fmt.Errorf("new token service: %w", err)
	}

	userRepo, err := repoFactory()
	if err != nil {
		return nil, fmt.Errorf("new user repo: %w", err)
	}

	hasher := NewArgon2Hasher(cfg.Argon2)

	dummyHash, err := hasher.Hash("dummy password")
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}

	return &AuthService{
		Config:    cfg,
		UserRepo:  userRepo,
		Tokens:    tokens,
		Hasher:    hasher,
		Log:       logging.GetLogger("svc.authsvc.auth_service"),
		Now:       time.Now,
		dummyHash: dummyHash,
	}, nil
}

// VerifyCredential checks a username and password against the credential store.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) VerifyCredential(ctx context.Context, username, password string) (_ domain.User, err error) {
	log := s.Log.With(logging.Group("user", "name", username))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "verify credential failed", "error", err)
		} else {
			log.DebugContext(ctx, "credential verified")
		}
	}()

	u, err := s.UserRepo.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, fmt.Errorf("find user: %w", err)
		}

		_, _ = s.Hasher.Verify(password, s.dummyHash)

		return domain.User{}, domain.ErrInvalidCredentials
	}

	ok, err := s.Hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return domain.User{}, fmt.Errorf("verify password: %w", err)
	}

	if !ok {
		return domain.User{}, domain.ErrInvalidCredentials
	}

	return u, nil
}

// Login authenticates a user and issues a signed token.
// Returns the token and the instant it expires.
func (s *AuthService) Login(ctx context.Context, username, password string) (_ string, _ time.Time, err error) {
	log := s.Log.With(logging.Group("user", "name", username))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful")
		}
	}()

	if username == "" || password == "" {
		return "", time.Time{}, fmt.Errorf("%w: username and password are required", domain.ErrInvalidCredentials)
	}

	u, err := s.VerifyCredential(ctx, username, password)
	if err != nil {
		return "", time.Time{}, err
	}

	token, expiresAt, err := s.Tokens.Issue(u.Identity(), s.Now())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue token: %w", err)
	}

	log = log.With(logging.Group("token",
		"exp", expiresAt.UTC().Format(time.RFC3339),
		"roles", u.Roles.String(),
	))

	return token, expiresAt, nil
}

// VerifyToken resolves a bearer token into an identity at the current time.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (domain.Identity, error) {
	identity, err := s.Tokens.Verify(token, s.Now())
	if err != nil {
		return domain.Identity{}, fmt.Errorf("verify token: %w", err)
	}

	return identity, nil
}
