package user

import (
	"context"

	"github.com/mkrupp/filevault/internal/domain"
)

// Repository defines the interface for user data persistence.
type Repository interface {
	// FindByUsername retrieves a user by their username.
	// Returns ErrUserNotFound if no such user exists.
	FindByUsername(ctx context.Context, username string) (domain.User, error)

	// Create adds a new user to the repository.
	// Returns ErrUserAlreadyExists if the username is already taken.
	Create(ctx context.Context, user domain.User) (domain.User, error)

	// Update applies fn to the stored user and persists the result atomically.
	// Returns ErrUserNotFound if no such user exists and ErrUserAlreadyExists
	// if the user was renamed onto a taken username.
	Update(ctx context.Context, username string, fn func(*domain.User) error) (domain.User, error)

	// Delete removes a user. Returns ErrUserNotFound if no row was removed.
	Delete(ctx context.Context, username string) error

	// List returns all users ordered by username.
	List(ctx context.Context) ([]domain.User, error)
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)
