// Package app assembles the filevault server from its services.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/infra/database"
	"github.com/mkrupp/filevault/internal/infra/logging"
	http_ "github.com/mkrupp/filevault/internal/infra/transport/http"
	"github.com/mkrupp/filevault/internal/repo/blob"
	"github.com/mkrupp/filevault/internal/repo/file"
	"github.com/mkrupp/filevault/internal/repo/user"
	"github.com/mkrupp/filevault/internal/svc/authsvc"
	"github.com/mkrupp/filevault/internal/svc/filesvc"
	"github.com/mkrupp/filevault/internal/svc/imagesvc"
	"github.com/mkrupp/filevault/internal/svc/usersvc"
)

// App is a fully wired server. It serves every route of the API on one mux.
type App struct {
	DB     *database.DB
	Auth   *authsvc.AuthService
	Users  *usersvc.UserService
	Files  *filesvc.FileService
	Images *imagesvc.ImageService

	cfg    Config
	mux    *http.ServeMux
	ownsDB bool
	log    logging.Logger
}

var _ http_.HTTPTransport = (*App)(nil)

// New validates cfg, opens the configured database and assembles the server.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := cfg.Auth.Validate(); err != nil {
		return nil, fmt.Errorf("auth config: %w", err)
	}

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a, err := NewWithDB(ctx, cfg, db)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}

	a.ownsDB = true

	return a, nil
}

// NewWithDB assembles the server on an opened database. The schema is
// migrated and the seed accounts are created before it returns.
func NewWithDB(ctx context.Context, cfg Config, db *database.DB) (*App, error) {
	if err := cfg.Auth.Validate(); err != nil {
		return nil, fmt.Errorf("auth config: %w", err)
	}

	authSvc, err := authsvc.NewAuthService(user.SQLUserRepositoryFactory(db), cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("new auth service: %w", err)
	}

	userSvc, err := usersvc.NewUserService(user.SQLUserRepositoryFactory(db), authSvc.Hasher, usersvc.DatabaseMigrator(db))
	if err != nil {
		return nil, fmt.Errorf("new user service: %w", err)
	}

	if err := userSvc.Bootstrap(ctx, cfg.Seed.Seeds()); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	fileSvc, err := filesvc.NewFileService(file.SQLFileRepositoryFactory(db), domain.FileKindFile, cfg.Files)
	if err != nil {
		return nil, fmt.Errorf("new file service: %w", err)
	}

	imageFileSvc, err := filesvc.NewFileService(file.SQLFileRepositoryFactory(db), domain.FileKindImage, cfg.Files)
	if err != nil {
		return nil, fmt.Errorf("new image file service: %w", err)
	}

	blobFactory, err := blob.NewRepositoryFactory(cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("blob backend: %w", err)
	}

	imageSvc, err := imagesvc.NewImageService(ctx, blobFactory, imageFileSvc, cfg.Image)
	if err != nil {
		return nil, fmt.Errorf("new image service: %w", err)
	}

	a := &App{
		DB:     db,
		Auth:   authSvc,
		Users:  userSvc,
		Files:  fileSvc,
		Images: imageSvc,
		cfg:    cfg,
		mux:    http.NewServeMux(),
		log:    logging.GetLogger("app"),
	}

	routes := []http_.Routes{
		authsvc.NewHTTPTransport(authSvc),
		usersvc.NewHTTPTransport(userSvc, authSvc),
		filesvc.NewHTTPTransport(fileSvc, authSvc, cfg.Files),
		imagesvc.NewHTTPTransport(imageSvc, authSvc, cfg.Files.MultipartField),
		NewHealthTransport(db),
	}

	for _, r := range routes {
		r.RegisterRoutes(a.mux)
	}

	return a, nil
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Handler returns the server wrapped in the standard middleware chain.
func (a *App) Handler() http.Handler {
	return http_.WithMiddleware(a, a.log)
}

// Run serves on the configured address until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	//nolint:wrapcheck
	return http_.ListenAndServe(ctx, a, a.cfg.HTTP)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, sock net.Listener) error {
	//nolint:wrapcheck
	return http_.Serve(ctx, sock, a, a.cfg.HTTP)
}

// Close releases the database if New opened it.
func (a *App) Close() error {
	if !a.ownsDB {
		return nil
	}

	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	return nil
}
