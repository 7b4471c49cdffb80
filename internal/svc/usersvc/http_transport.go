package usersvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/infra/logging"
	http_ "github.com/mkrupp/filevault/internal/infra/transport/http"
)

const (
	urlUsernameParam   = "name"
	maxUserRequestSize = 64 << 10
)

// HTTPTransport exposes user management to admins.
type HTTPTransport struct {
	userSvc  *UserService
	verifier http_.TokenVerifier
	log      logging.Logger
}

var (
	_ http_.HTTPTransport = (*HTTPTransport)(nil)
	_ http_.Routes        = (*HTTPTransport)(nil)
)

// NewHTTPTransport creates a new HTTPTransport. Every route requires the admin role.
func NewHTTPTransport(userSvc *UserService, verifier http_.TokenVerifier) *HTTPTransport {
	return &HTTPTransport{
		userSvc:  userSvc,
		verifier: verifier,
		log:      logging.GetLogger("svc.usersvc.http_transport"),
	}
}

// RegisterRoutes sets up the routes for the user management endpoints:
// - POST /user/add: Create a user
// - GET /users: List users
// - GET /user/{name}: Get a user
// - PUT /user/{name}: Update a user
// - DELETE /user/{name}: Delete a user.
func (ht *HTTPTransport) RegisterRoutes(mux *http.ServeMux) {
	admin := func(h http.HandlerFunc) http.Handler {
		return http_.AuthorizingMiddleware(h, ht.verifier, domain.NewRoleSet(domain.RoleAdmin), ht.log)
	}

	mux.Handle("POST /user/add", admin(ht.HandleCreate))
	mux.Handle("GET /users", admin(ht.HandleList))
	mux.Handle(fmt.Sprintf("GET /user/{%s}", urlUsernameParam), admin(ht.HandleGet))
	mux.Handle(fmt.Sprintf("PUT /user/{%s}", urlUsernameParam), admin(ht.HandleUpdate))
	mux.Handle(fmt.Sprintf("DELETE /user/{%s}", urlUsernameParam), admin(ht.HandleDelete))
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	ht.RegisterRoutes(mux)
	mux.ServeHTTP(w, r)
}

func (ht *HTTPTransport) requestLog(r *http.Request) logging.Logger {
	return ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))
}

func decodeUserRequest(w http.ResponseWriter, r *http.Request) (domain.UserRequest, error) {
	var req domain.UserRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUserRequestSize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("%w: decode body: %w", domain.ErrInvalidInput, err)
	}

	return req, nil
}

// HandleCreate creates a user from {username, password, role}.
func (ht *HTTPTransport) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleCreate(w, r)
}

func (ht *HTTPTransport) handleCreate(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			http_.WriteError(w, err)
			log.WarnContext(ctx, "user create failed", "error", err)
		}
	}(r.Context())

	req, err := decodeUserRequest(w, r)
	if err != nil {
		return err
	}

	var (
		username, password string
		roles              domain.RoleSet
	)

	if req.Username != nil {
		username = *req.Username
	}

	if req.Password != nil {
		password = *req.Password
	}

	if req.Roles != nil {
		roles = *req.Roles
	}

	created, err := ht.userSvc.Create(r.Context(), username, password, roles)
	if err != nil {
		return err
	}

	_ = http_.WriteJSON(w, http.StatusCreated, domain.NewUserResponse(created))

	return nil
}

// HandleList lists all users.
func (ht *HTTPTransport) HandleList(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleList(w, r)
}

func (ht *HTTPTransport) handleList(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			http_.WriteError(w, err)
			log.ErrorContext(ctx, "user list failed", "error", err)
		}
	}(r.Context())

	users, err := ht.userSvc.List(r.Context())
	if err != nil {
		return err
	}

	resp := make([]domain.UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, domain.NewUserResponse(u))
	}

	_ = http_.WriteJSON(w, http.StatusOK, resp)

	return nil
}

// HandleGet returns a single user.
func (ht *HTTPTransport) HandleGet(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleGet(w, r)
}

func (ht *HTTPTransport) handleGet(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			http_.WriteError(w, err)
			log.WarnContext(ctx, "user get failed", "error", err)
		}
	}(r.Context())

	u, err := ht.userSvc.Get(r.Context(), r.PathValue(urlUsernameParam))
	if err != nil {
		return err
	}

	_ = http_.WriteJSON(w, http.StatusOK, domain.NewUserResponse(u))

	return nil
}

// HandleUpdate changes the fields present in the body.
func (ht *HTTPTransport) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpdate(w, r)
}

func (ht *HTTPTransport) handleUpdate(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			http_.WriteError(w, err)
			log.WarnContext(ctx, "user update failed", "error", err)
		}
	}(r.Context())

	req, err := decodeUserRequest(w, r)
	if err != nil {
		return err
	}

	updated, err := ht.userSvc.Update(r.Context(), r.PathValue(urlUsernameParam), UserUpdate{
		Username: req.Username,
		Password: req.Password,
		Roles:    req.Roles,
	})
	if err != nil {
		return err
	}

	_ = http_.WriteJSON(w, http.StatusOK, domain.NewUserResponse(updated))

	return nil
}

// HandleDelete removes a user.
func (ht *HTTPTransport) HandleDelete(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDelete(w, r)
}

func (ht *HTTPTransport) handleDelete(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			http_.WriteError(w, err)
			log.WarnContext(ctx, "user delete failed", "error", err)
		}
	}(r.Context())

	if err := ht.userSvc.Delete(r.Context(), r.PathValue(urlUsernameParam)); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}
