package filesvc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mkrupp/filevault/internal/domain"
	context_ "github.com/mkrupp/filevault/internal/infra/context"
	"github.com/mkrupp/filevault/internal/infra/logging"
	http_ "github.com/mkrupp/filevault/internal/infra/transport/http"
)

const urlFilenameParam = "filename"

// HTTPTransport exposes the file service to authenticated users.
type HTTPTransport struct {
	fileSvc  *FileService
	verifier http_.TokenVerifier
	cfg      FileConfig
	log      logging.Logger
}

var (
	_ http_.HTTPTransport = (*HTTPTransport)(nil)
	_ http_.Routes        = (*HTTPTransport)(nil)
)

// NewHTTPTransport creates a new HTTPTransport instance.
func NewHTTPTransport(fileSvc *FileService, verifier http_.TokenVerifier, cfg FileConfig) *HTTPTransport {
	return &HTTPTransport{
		fileSvc:  fileSvc,
		verifier: verifier,
		cfg:      cfg,
		log:      logging.GetLogger("svc.filesvc.http_transport"),
	}
}

// RegisterRoutes sets up the routes for the file endpoints:
// - GET /files: List the caller's files
// - POST /upload: Upload a file
// - GET /download_file/{filename}: Download one of the caller's files
// Every route requires a valid token.
func (ht *HTTPTransport) RegisterRoutes(mux *http.ServeMux) {
	authed := func(h http.HandlerFunc) http.Handler {
		return http_.AuthorizingMiddleware(h, ht.verifier, domain.RoleSet(0), ht.log)
	}

	mux.Handle("GET /files", authed(ht.HandleList))
	mux.Handle("POST /upload", authed(ht.HandleUpload))
	mux.Handle(fmt.Sprintf("GET /download_file/{%s}", urlFilenameParam), authed(ht.HandleDownload))
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	ht.RegisterRoutes(mux)
	mux.ServeHTTP(w, r)
}

// HandleList lists the caller's files.
func (ht *HTTPTransport) HandleList(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleList(w, r)
}

func (ht *HTTPTransport) handleList(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))

	defer func(ctx context.Context) {
		if err != nil {
			http_.WriteError(w, err)
			log.ErrorContext(ctx, "file list failed", "error", err)
		}
	}(r.Context())

	owner, ok := context_.UsernameFromContext(r.Context())
	if !ok {
		return domain.ErrNoAuthToken
	}

	files, err := ht.fileSvc.ListByOwner(r.Context(), owner)
	if err != nil {
		return err
	}

	_ = http_.WriteJSON(w, http.StatusOK, files)

	return nil
}

// HandleUpload stores the file sent in the configured multipart field.
func (ht *HTTPTransport) HandleUpload(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpload(w, r)
}

func (ht *HTTPTransport) handleUpload(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))

	defer func(ctx context.Context) {
		if err != nil {
			http_.WriteError(w, err)
			log.WarnContext(ctx, "file upload failed", "error", err)
		}
	}(r.Context())

	owner, ok := context_.UsernameFromContext(r.Context())
	if !ok {
		return domain.ErrNoAuthToken
	}

	part, err := http_.ReadMultipartFile(w, r, ht.cfg.MultipartField, ht.fileSvc.MaxSize())
	if err != nil {
		return err
	}

	meta, err := ht.fileSvc.Upload(r.Context(), owner, part.Filename, part.Content, part.ContentType)
	if err != nil {
		return err
	}

	_ = http_.WriteJSON(w, http.StatusCreated, domain.FileIDResponse{ID: meta.ID})

	return nil
}

// HandleDownload sends one of the caller's files as an attachment.
func (ht *HTTPTransport) HandleDownload(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDownload(w, r)
}

func (ht *HTTPTransport) handleDownload(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "file download failed", "error", err)
		}
	}(r.Context())

	owner, ok := context_.UsernameFromContext(r.Context())
	if !ok {
		http_.WriteError(w, domain.ErrNoAuthToken)

		return domain.ErrNoAuthToken
	}

	f, err := ht.fileSvc.Download(r.Context(), owner, r.PathValue(urlFilenameParam))
	if err != nil {
		http_.WriteError(w, err)

		return err
	}

	if err := http_.WriteFile(w, r, f); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}
