// Package usersvc manages user accounts: admin CRUD and the bootstrap seeding
// run at startup.
package usersvc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/infra/database"
	"github.com/mkrupp/filevault/internal/infra/logging"
	"github.com/mkrupp/filevault/internal/repo/user"
	"github.com/mkrupp/filevault/internal/svc/authsvc"
)

// maxUsernameLength bounds usernames accepted by Create and Update.
const maxUsernameLength = 64

// UserUpdate carries the fields to change; nil fields are left untouched.
type UserUpdate struct {
	Username *string
	Password *string
	Roles    *domain.RoleSet
}

// MigrateFunc brings the storage schema up to date.
type MigrateFunc func(ctx context.Context) error

// UserService implements user management on top of the credential store.
type UserService struct {
	userRepo user.Repository
	hasher   authsvc.PasswordHasher
	migrate  MigrateFunc
	log      logging.Logger
}

// NewUserService creates a UserService. migrate may be nil when the schema
// is managed elsewhere.
func NewUserService(
	repoFactory user.RepositoryFactory,
	hasher authsvc.PasswordHasher,
	migrate MigrateFunc,
) (*UserService, error) {
	userRepo, err := repoFactory()
	if err != nil {
		return nil, fmt.Errorf("new user repo: %w", err)
	}

	return &UserService{
		userRepo: userRepo,
		hasher:   hasher,
		migrate:  migrate,
		log:      logging.GetLogger("svc.usersvc.user_service"),
	}, nil
}

func validateUsername(username string) error {
	switch {
	case strings.TrimSpace(username) == "":
		return fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	case username != strings.TrimSpace(username):
		return fmt.Errorf("%w: username must not start or end with whitespace", domain.ErrInvalidInput)
	case len(username) > maxUsernameLength:
		return fmt.Errorf("%w: username longer than %d bytes", domain.ErrInvalidInput, maxUsernameLength)
	case strings.ContainsAny(username, "/\\"):
		return fmt.Errorf("%w: username must not contain slashes", domain.ErrInvalidInput)
	}

	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}

	return nil
}

func validateRoles(roles domain.RoleSet) error {
	if roles.IsEmpty() {
		return fmt.Errorf("%w: at least one role is required", domain.ErrInvalidInput)
	}

	return nil
}

// Create registers a new user. The password is stored as an argon2id hash.
func (s *UserService) Create(
	ctx context.Context,
	username, password string,
	roles domain.RoleSet,
) (_ domain.User, err error) {
	log := s.log.With(logging.Group("user", "name", username, "roles", roles.String()))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "create user failed", "error", err)
		} else {
			log.InfoContext(ctx, "user created")
		}
	}()

	if err := errors.Join(validateUsername(username), validatePassword(password), validateRoles(roles)); err != nil {
		return domain.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	//nolint:exhaustruct
	created, err := s.userRepo.Create(ctx, domain.User{
		Username:     username,
		PasswordHash: hash,
		Roles:        roles,
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	return created, nil
}

// Get returns a single user.
func (s *UserService) Get(ctx context.Context, username string) (domain.User, error) {
	u, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}

	return u, nil
}

// List returns all users ordered by username.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

// Update changes the given fields of a user. Renaming onto an existing
// username fails with ErrUserAlreadyExists.
func (s *UserService) Update(ctx context.Context, username string, update UserUpdate) (_ domain.User, err error) {
	log := s.log.With(logging.Group("user", "name", username))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "update user failed", "error", err)
		} else {
			log.InfoContext(ctx, "user updated")
		}
	}()

	var errs []error

	if update.Username != nil {
		errs = append(errs, validateUsername(*update.Username))
	}

	if update.Password != nil {
		errs = append(errs, validatePassword(*update.Password))
	}

	if update.Roles != nil {
		errs = append(errs, validateRoles(*update.Roles))
	}

	if err := errors.Join(errs...); err != nil {
		return domain.User{}, err
	}

	var hash string

	if update.Password != nil {
		if hash, err = s.hasher.Hash(*update.Password); err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
	}

	updated, err := s.userRepo.Update(ctx, username, func(u *domain.User) error {
		if update.Username != nil {
			u.Username = *update.Username
		}

		if update.Password != nil {
			u.PasswordHash = hash
		}

		if update.Roles != nil {
			u.Roles = *update.Roles
		}

		return nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}

	return updated, nil
}

// Delete removes a user. Files owned by the user are kept.
func (s *UserService) Delete(ctx context.Context, username string) (err error) {
	defer func() {
		if err != nil {
			s.log.WarnContext(ctx, "delete user failed", "user", username, "error", err)
		} else {
			s.log.InfoContext(ctx, "user deleted", "user", username)
		}
	}()

	if err := s.userRepo.Delete(ctx, username); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return nil
}

// Bootstrap migrates the schema, which creates the users table and its
// username_unique_index, and then makes sure every seed account exists.
// Existing accounts are left untouched and count as success. Seeds are
// independent: a failing seed does not stop the others, and all failures are
// returned together. Running it again changes nothing.
func (s *UserService) Bootstrap(ctx context.Context, seeds []Seed) error {
	if s.migrate != nil {
		if err := s.migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var errs []error

	for _, seed := range seeds {
		roles, err := domain.ParseRoleSet(seed.Roles)
		if err != nil {
			errs = append(errs, fmt.Errorf("seed %q: %w", seed.Username, err))

			continue
		}

		if _, err := s.Create(ctx, seed.Username, seed.Password, roles); err != nil {
			if errors.Is(err, domain.ErrUserAlreadyExists) {
				s.log.DebugContext(ctx, "seed user exists", "user", seed.Username)

				continue
			}

			errs = append(errs, fmt.Errorf("seed %q: %w", seed.Username, err))
		}
	}

	return errors.Join(errs...)
}

// DatabaseMigrator returns a MigrateFunc applying the schema migrations to db.
func DatabaseMigrator(db *database.DB) MigrateFunc {
	return func(ctx context.Context) error {
		return database.Migrate(ctx, db)
	}
}
