package file

import (
	"context"

	"github.com/mkrupp/filevault/internal/domain"
)

// Repository defines the interface for file persistence.
// Files are addressed by (kind, owner, filename) and are immutable once stored.
type Repository interface {
	// Insert stores a new file and assigns its ID and creation time.
	// Returns ErrFileAlreadyExists if the owner already has a file of that name and kind.
	Insert(ctx context.Context, file domain.File) (domain.FileMeta, error)

	// ListByOwner returns the metadata of all files of kind owned by owner, oldest first.
	ListByOwner(ctx context.Context, kind domain.FileKind, owner string) ([]domain.FileMeta, error)

	// FindByOwner returns a file including its content.
	// Returns ErrFileNotFound if owner has no such file.
	FindByOwner(ctx context.Context, kind domain.FileKind, owner, filename string) (domain.File, error)

	// ExistsForOtherOwner reports whether a user other than owner stores a file of that name.
	ExistsForOtherOwner(ctx context.Context, kind domain.FileKind, owner, filename string) (bool, error)
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func() (Repository, error)
