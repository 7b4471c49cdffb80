package imagesvc

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mkrupp/filevault/internal/domain"
	context_ "github.com/mkrupp/filevault/internal/infra/context"
	"github.com/mkrupp/filevault/internal/infra/logging"
	http_ "github.com/mkrupp/filevault/internal/infra/transport/http"
)

const (
	urlImagenameParam = "imagename"
	urlWidthParam     = "width"
)

// HTTPTransport handles HTTP requests for the image service.
type HTTPTransport struct {
	imageSvc       *ImageService
	verifier       http_.TokenVerifier
	multipartField string
	log            logging.Logger
}

var (
	_ http_.HTTPTransport = (*HTTPTransport)(nil)
	_ http_.Routes        = (*HTTPTransport)(nil)
)

// NewHTTPTransport creates a new HTTPTransport instance. Uploads are read
// from multipartField.
func NewHTTPTransport(imageSvc *ImageService, verifier http_.TokenVerifier, multipartField string) *HTTPTransport {
	return &HTTPTransport{
		imageSvc:       imageSvc,
		verifier:       verifier,
		multipartField: multipartField,
		log:            logging.GetLogger("svc.imagesvc.http_transport"),
	}
}

// RegisterRoutes sets up the routes for the image endpoints:
// - GET /images: List the caller's images
// - POST /upload_image: Upload an image
// - GET /download_image/{imagename}?width=N: Download an image, optionally resized
// Routes are protected by authentication middleware.
func (ht *HTTPTransport) RegisterRoutes(mux *http.ServeMux) {
	authed := func(h http.HandlerFunc) http.Handler {
		return http_.AuthorizingMiddleware(h, ht.verifier, domain.RoleSet(0), ht.log)
	}

	mux.Handle("GET /images", authed(ht.HandleList))
	mux.Handle("POST /upload_image", authed(ht.HandleUpload))
	mux.Handle(fmt.Sprintf("GET /download_image/{%s}", urlImagenameParam), authed(ht.HandleDownload))
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	ht.RegisterRoutes(mux)
	mux.ServeHTTP(w, r)
}

// HandleList lists the caller's images.
func (ht *HTTPTransport) HandleList(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleList(w, r)
}

func (ht *HTTPTransport) handleList(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))

	defer func(ctx context.Context) {
		if err != nil {
			http_.WriteError(w, err)
			log.ErrorContext(ctx, "image list failed", "error", err)
		}
	}(r.Context())

	owner, ok := context_.UsernameFromContext(r.Context())
	if !ok {
		return domain.ErrNoAuthToken
	}

	images, err := ht.imageSvc.ListByOwner(r.Context(), owner)
	if err != nil {
		return err
	}

	_ = http_.WriteJSON(w, http.StatusOK, images)

	return nil
}

// HandleUpload processes image upload requests.
func (ht *HTTPTransport) HandleUpload(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpload(w, r)
}

func (ht *HTTPTransport) handleUpload(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))

	defer func(ctx context.Context) {
		if err != nil {
			http_.WriteError(w, err)
			log.WarnContext(ctx, "image upload failed", "error", err)
		} else {
			log.DebugContext(ctx, "image uploaded")
		}
	}(r.Context())

	owner, ok := context_.UsernameFromContext(r.Context())
	if !ok {
		return domain.ErrNoAuthToken
	}

	part, err := http_.ReadMultipartFile(w, r, ht.multipartField, ht.imageSvc.MaxSize())
	if err != nil {
		return err
	}

	meta, err := ht.imageSvc.Upload(r.Context(), owner, part.Filename, part.Content)
	if err != nil {
		return err
	}

	_ = http_.WriteJSON(w, http.StatusCreated, domain.FileIDResponse{ID: meta.ID})

	return nil
}

// HandleDownload processes image download requests.
// An optional width query parameter selects a resized copy.
func (ht *HTTPTransport) HandleDownload(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDownload(w, r)
}

func (ht *HTTPTransport) handleDownload(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))

	written := false

	defer func(ctx context.Context) {
		if err != nil {
			if !written {
				http_.WriteError(w, err)
			}

			log.WarnContext(ctx, "image download failed", "error", err)
		}
	}(r.Context())

	owner, ok := context_.UsernameFromContext(r.Context())
	if !ok {
		return domain.ErrNoAuthToken
	}

	var width int

	if widthStr := r.URL.Query().Get(urlWidthParam); widthStr != "" {
		if width, err = strconv.Atoi(widthStr); err != nil {
			return fmt.Errorf("%w: parse width: %w", domain.ErrInvalidInput, err)
		}
	}

	img, err := ht.imageSvc.Download(r.Context(), owner, r.PathValue(urlImagenameParam), width)
	if err != nil {
		return err
	}

	written = true

	if err := http_.WriteFile(w, r, img); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}
