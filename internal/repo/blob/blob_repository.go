package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mkrupp/filevault/internal/domain"
)

// ErrUnknownBackend is returned for a BLOB_BACKEND other than filesystem or s3.
var ErrUnknownBackend = errors.New("unknown blob backend")

// Repository defines the interface for blob storage operations.
// Stores are idempotent: storing an existing ID replaces its content.
type Repository interface {
	// Store persists a blob in the repository.
	Store(ctx context.Context, blob *domain.Blob) error

	// Fetch retrieves a blob by its ID.
	// Returns ErrBlobNotFound if the blob does not exist.
	Fetch(ctx context.Context, id domain.BlobID) (*domain.Blob, error)
}

// RepositoryFactory is a function that creates a new Repository instance.
// Parameters:
// - name: namespace of the repository (a subdirectory or key prefix)
// - ext: file extension for stored blobs
type RepositoryFactory func(
	ctx context.Context,
	name string,
	ext string,
) (Repository, error)

// Config selects and configures the blob backend.
type Config struct {
	// Backend is "filesystem" or "s3"
	Backend string `env:"BACKEND" default:"filesystem"`

	FileSystem FileSystemBlobRepositoryConfig
	S3         S3BlobRepositoryConfig `envPrefix:"S3_"`
}

// NewRepositoryFactory returns the factory for the configured backend.
func NewRepositoryFactory(cfg Config) (RepositoryFactory, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "filesystem", "fs":
		return FileSystemBlobRepositoryFactory(cfg.FileSystem), nil
	case "s3":
		return S3BlobRepositoryFactory(cfg.S3), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
