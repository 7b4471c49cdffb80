// Package imagesvc stores images in their own namespace of the file store and
// serves resized copies on demand.
package imagesvc

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/image/draw"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/infra/logging"
	"github.com/mkrupp/filevault/internal/repo/blob"
	"github.com/mkrupp/filevault/internal/svc/filesvc"
	"github.com/mkrupp/filevault/internal/util/encoding"
)

// ImageService adds type checks and resizing on top of a FileService for the
// image namespace. Resized copies are cached in a blob repository keyed by
// the content hash of the original and the target width.
type ImageService struct {
	fileSvc   *filesvc.FileService
	cacheRepo blob.Repository
	interpol  draw.Interpolator
	cfg       ImageConfig
	log       logging.Logger
}

// NewImageService creates a new ImageService. fileSvc must serve the image kind.
func NewImageService(
	ctx context.Context,
	repoFactory blob.RepositoryFactory,
	fileSvc *filesvc.FileService,
	cfg ImageConfig,
) (*ImageService, error) {
	if fileSvc.Kind() != domain.FileKindImage {
		return nil, fmt.Errorf("%w: file service serves %q", domain.ErrInvalidInput, fileSvc.Kind())
	}

	interpol, err := getInterpolatorByName(cfg.Interpolator)
	if err != nil {
		return nil, err
	}

	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}

	cacheRepo, err := repoFactory(ctx, "cache", "bin")
	if err != nil {
		return nil, fmt.Errorf("new cache repository: %w", err)
	}

	return &ImageService{
		fileSvc:   fileSvc,
		cacheRepo: cacheRepo,
		interpol:  interpol,
		cfg:       cfg,
		log:       logging.GetLogger("svc.imagesvc.image_service"),
	}, nil
}

// MaxSize returns the maximum allowed image size in bytes.
func (s *ImageService) MaxSize() int64 {
	return s.fileSvc.MaxSize()
}

// Upload checks that content is a supported image matching the extension of
// filename and stores it for owner.
func (s *ImageService) Upload(ctx context.Context, owner, filename string, content []byte) (domain.FileMeta, error) {
	if int64(len(content)) > s.MaxSize() {
		return domain.FileMeta{}, fmt.Errorf("%w: %d exceeds %d", domain.ErrFileTooLarge, len(content), s.MaxSize())
	}

	mimeType, err := CheckImageType(domain.CleanFilename(filename), content)
	if err != nil {
		return domain.FileMeta{}, fmt.Errorf("check image: %w", err)
	}

	if _, err := checkImageSize(content, mimeType, s.cfg.MaxPixels); err != nil {
		return domain.FileMeta{}, fmt.Errorf("check image: %w", err)
	}

	//nolint:wrapcheck
	return s.fileSvc.Upload(ctx, owner, filename, content, mimeType)
}

// ListByOwner returns the caller's images, oldest first.
func (s *ImageService) ListByOwner(ctx context.Context, owner string) ([]domain.FileMeta, error) {
	//nolint:wrapcheck
	return s.fileSvc.ListByOwner(ctx, owner)
}

// Download returns the caller's image named name. A positive width returns a
// copy scaled to that width; zero returns the original.
func (s *ImageService) Download(ctx context.Context, owner, name string, width int) (_ domain.File, err error) {
	log := s.log.With(logging.Group("image", "owner", owner, "name", name, "width", width))

	defer func() {
		if err != nil && !errors.Is(err, domain.ErrFileNotFound) && !errors.Is(err, domain.ErrForbidden) {
			log.ErrorContext(ctx, "image download failed", "error", err)
		}
	}()

	if width < 0 || width > s.cfg.MaxWidth {
		return domain.File{}, fmt.Errorf("%w: width must be between 0 and %d", domain.ErrInvalidInput, s.cfg.MaxWidth)
	}

	img, err := s.fileSvc.Download(ctx, owner, name)
	if err != nil {
		return domain.File{}, fmt.Errorf("download image: %w", err)
	}

	if width == 0 {
		return img, nil
	}

	resized, err := s.resized(ctx, img, width)
	if err != nil {
		return domain.File{}, err
	}

	img.Content = resized
	img.Size = int64(len(resized))
	img.Hash = encoding.ContentHash(resized)

	return img, nil
}

func (s *ImageService) resized(ctx context.Context, img domain.File, width int) (_ []byte, err error) {
	cacheID := domain.ResizedImageBlobID(img.Hash, width)
	log := s.log.With(logging.Group("image", "type", img.MIMEType, "cacheID", cacheID))

	cached, err := s.cacheRepo.Fetch(ctx, cacheID)
	switch {
	case err == nil:
		log.DebugContext(ctx, "resized image served from cache")

		return cached.Bytes(), nil
	case !errors.Is(err, domain.ErrBlobNotFound):
		log.WarnContext(ctx, "image cache fetch failed", "error", err)
	}

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "image resize failed", "error", err)
		} else {
			log.DebugContext(ctx, "image resized")
		}
	}()

	resized, err := resizeImage(img.Content, img.MIMEType, width, s.cfg.MaxPixels, s.interpol)
	if err != nil {
		return nil, fmt.Errorf("resize image: %w", err)
	}

	if err := s.cacheRepo.Store(ctx, domain.NewBlob(cacheID, resized)); err != nil {
		log.WarnContext(ctx, "image cache store failed", "error", err)
	}

	return resized, nil
}
