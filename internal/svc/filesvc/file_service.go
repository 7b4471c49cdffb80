// Package filesvc stores files on behalf of their owners. Every operation is
// scoped to the calling user.
package filesvc

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/infra/logging"
	"github.com/mkrupp/filevault/internal/repo/file"
)

// FileService implements upload, listing and download for one file kind.
type FileService struct {
	fileRepo file.Repository
	kind     domain.FileKind
	cfg      FileConfig
	log      logging.Logger
}

// NewFileService creates a FileService serving files of the given kind.
func NewFileService(repoFactory file.RepositoryFactory, kind domain.FileKind, cfg FileConfig) (*FileService, error) {
	fileRepo, err := repoFactory()
	if err != nil {
		return nil, fmt.Errorf("new file repo: %w", err)
	}

	return &FileService{
		fileRepo: fileRepo,
		kind:     kind,
		cfg:      cfg,
		log:      logging.GetLogger("svc.filesvc.file_service").With("kind", kind),
	}, nil
}

// MaxSize returns the maximum allowed file size in bytes.
func (s *FileService) MaxSize() int64 {
	return s.cfg.MaxSize
}

// Kind returns the namespace this service stores files in.
func (s *FileService) Kind() domain.FileKind {
	return s.kind
}

// Upload stores content under filename for owner. Content of exactly MaxSize
// bytes is accepted. An empty mimeType is derived from the extension or the
// content.
func (s *FileService) Upload(
	ctx context.Context,
	owner, filename string,
	content []byte,
	mimeType string,
) (_ domain.FileMeta, err error) {
	log := s.log.With(logging.Group("file", "owner", owner, "name", filename, "size", len(content)))

	defer func() {
		switch {
		case err == nil:
			log.DebugContext(ctx, "file uploaded")
		case errors.Is(err, domain.ErrFileAlreadyExists), errors.Is(err, domain.ErrFileTooLarge):
			log.InfoContext(ctx, "file upload rejected", "error", err)
		default:
			log.ErrorContext(ctx, "file upload failed", "error", err)
		}
	}()

	if owner == "" {
		return domain.FileMeta{}, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}

	if int64(len(content)) > s.cfg.MaxSize {
		return domain.FileMeta{}, fmt.Errorf("%w: %d exceeds %d", domain.ErrFileTooLarge, len(content), s.cfg.MaxSize)
	}

	filename = domain.CleanFilename(filename)

	if mimeType == "" {
		mimeType = detectMIMEType(filename, content)
	}

	meta, err := s.fileRepo.Insert(ctx, domain.NewFile(s.kind, owner, filename, content, mimeType))
	if err != nil {
		return domain.FileMeta{}, fmt.Errorf("insert file: %w", err)
	}

	return meta, nil
}

// ListByOwner returns the caller's files, oldest first.
func (s *FileService) ListByOwner(ctx context.Context, owner string) ([]domain.FileMeta, error) {
	files, err := s.fileRepo.ListByOwner(ctx, s.kind, owner)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	return files, nil
}

// Download returns the caller's file named filename. A file of that name that
// only exists for other users fails with ErrForbidden, or with ErrFileNotFound
// when ConcealForeign is set. Content of another user is never returned.
func (s *FileService) Download(ctx context.Context, owner, filename string) (_ domain.File, err error) {
	log := s.log.With(logging.Group("file", "owner", owner, "name", filename))

	defer func() {
		switch {
		case err == nil:
			log.DebugContext(ctx, "file downloaded")
		case errors.Is(err, domain.ErrFileNotFound), errors.Is(err, domain.ErrForbidden):
			log.InfoContext(ctx, "file download denied", "error", err)
		default:
			log.ErrorContext(ctx, "file download failed", "error", err)
		}
	}()

	filename = domain.CleanFilename(filename)

	f, err := s.fileRepo.FindByOwner(ctx, s.kind, owner, filename)
	if err == nil {
		return f, nil
	}

	if !errors.Is(err, domain.ErrFileNotFound) {
		return domain.File{}, fmt.Errorf("find file: %w", err)
	}

	foreign, ferr := s.fileRepo.ExistsForOtherOwner(ctx, s.kind, owner, filename)
	if ferr != nil {
		return domain.File{}, fmt.Errorf("check owner: %w", ferr)
	}

	if !foreign || s.cfg.ConcealForeign {
		return domain.File{}, fmt.Errorf("find file: %w", domain.ErrFileNotFound)
	}

	return domain.File{}, fmt.Errorf("%w: %q is not owned by %q", domain.ErrForbidden, filename, owner)
}

func detectMIMEType(filename string, content []byte) string {
	if byExt := mime.TypeByExtension(path.Ext(filename)); byExt != "" {
		return byExt
	}

	return http.DetectContentType(content)
}
