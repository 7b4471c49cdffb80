package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/infra/logging"
)

// ErrBytesWrittenMismatch is returned when a stored blob does not have the expected size on disk.
var ErrBytesWrittenMismatch = errors.New("bytes written mismatch")

const (
	dirPrefixLength = 2 // 32^2 = 1024 directories per level
	dirPrefixDepth  = 2
	idMinLength     = dirPrefixDepth * dirPrefixLength
)

// FileSystemBlobRepositoryConfig holds configuration for the filesystem-based blob repository.
type FileSystemBlobRepositoryConfig struct {
	// Basedir is the root directory for blob storage
	Basedir string `env:"BASEDIR" default:"var/storage/blob"`
}

// FileSystemBlobRepositoryFactory creates a factory function that returns a new FileSystemRepository.
// The factory function implements the RepositoryFactory type.
func FileSystemBlobRepositoryFactory(cfg FileSystemBlobRepositoryConfig) RepositoryFactory {
	return func(
		ctx context.Context,
		subdir string,
		ext string,
	) (Repository, error) {
		return NewFileSystemBlobRepository(ctx, subdir, ext, cfg)
	}
}

// NewFileSystemBlobRepository creates a new FileSystemRepository storing blobs
// with extension ext below Basedir/subdir.
func NewFileSystemBlobRepository(
	ctx context.Context,
	subdir string,
	ext string,
	cfg FileSystemBlobRepositoryConfig,
) (*FileSystemRepository, error) {
	log := logging.GetLogger("repo.blob.filesystem_repository").With(
		logging.Group("repo",
			"basedir", cfg.Basedir,
			"subdir", subdir,
			"ext", ext,
		),
	)

	repo := &FileSystemRepository{
		subdir: subdir,
		ext:    ext,
		cfg:    cfg,
		log:    log,
	}

	if err := repo.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}

	return repo, nil
}

// FileSystemRepository implements Repository using the local filesystem.
// Blobs are spread over a shallow directory hierarchy derived from their ID.
// Writes go to a temporary file that is renamed into place, so readers
// never observe a partially written blob.
type FileSystemRepository struct {
	subdir string
	ext    string
	cfg    FileSystemBlobRepositoryConfig
	log    logging.Logger
}

var _ Repository = (*FileSystemRepository)(nil)

func (fsRepo *FileSystemRepository) Store(ctx context.Context, blob *domain.Blob) (err error) {
	filename := fsRepo.GetFilename(blob.ID)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", blob.ID, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	file, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	tmpname := file.Name()

	defer func() {
		if err != nil {
			_ = os.Remove(tmpname)
		}
	}()

	if err := writeAndSync(file, blob); err != nil {
		_ = file.Close()

		return err
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Rename(tmpname, filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

func writeAndSync(file *os.File, blob *domain.Blob) error {
	if n, err := blob.WriteTo(file); err != nil {
		return fmt.Errorf("write: %w", err)
	} else if err := file.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	} else if info, err := file.Stat(); err != nil {
		return fmt.Errorf("stat: %w", err)
	} else if n != info.Size() || n != blob.Size() {
		return fmt.Errorf("%w: expected %d, got %d", ErrBytesWrittenMismatch, blob.Size(), n)
	}

	return nil
}

func (fsRepo *FileSystemRepository) Fetch(ctx context.Context, id domain.BlobID) (blob *domain.Blob, err error) {
	filename := fsRepo.GetFilename(id)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", id, "filename", filename))
		if err != nil && !errors.Is(err, domain.ErrBlobNotFound) {
			log.ErrorContext(ctx, "blob fetch failed", "error", err)
		} else if err == nil {
			log.DebugContext(ctx, "blob fetched")
		}
	}()

	body, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = errors.Join(domain.ErrBlobNotFound, err)
		}

		return nil, fmt.Errorf("read file: %w", err)
	}

	return domain.NewBlob(id, body), nil
}

func (fsRepo *FileSystemRepository) initStorage(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			fsRepo.log.ErrorContext(ctx, "init storage failed", "error", err)
		} else {
			fsRepo.log.DebugContext(ctx, "init storage")
		}
	}()

	if err := os.MkdirAll(filepath.Join(fsRepo.cfg.Basedir, fsRepo.subdir), 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	return nil
}

func (fsRepo *FileSystemRepository) getBasename(id domain.BlobID) string {
	// Pad the id with zeros to the left to make it fit the directory structure
	basename := strings.NewReplacer("/", "", "\\", "", "..", "").Replace(string(id))
	basename = strings.ReplaceAll(fmt.Sprintf("%*s", idMinLength, basename), " ", "0")

	// Split the leading characters into dirPrefixDepth chunks of dirPrefixLength:
	//   ab/cd/abcdefgh..._320.png
	prefixes := make([]string, 0, dirPrefixDepth)
	for i := 0; i < idMinLength && i < len(basename)-dirPrefixLength; i += dirPrefixLength {
		prefixes = append(prefixes, basename[i:i+dirPrefixLength])
	}

	return filepath.Join(append(append([]string{fsRepo.cfg.Basedir, fsRepo.subdir}, prefixes...), basename)...)
}

// GetFilename returns the full filesystem path for a blob with the given ID.
func (fsRepo *FileSystemRepository) GetFilename(id domain.BlobID) string {
	return fmt.Sprintf("%s.%s", fsRepo.getBasename(id), fsRepo.ext)
}
