package authsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/infra/logging"
	http_ "github.com/mkrupp/filevault/internal/infra/transport/http"
)

// maxLoginBodySize bounds login request bodies.
const maxLoginBodySize = 64 << 10

// HTTPTransport handles HTTP requests for the authentication service.
type HTTPTransport struct {
	authSvc *AuthService
	log     logging.Logger
}

var (
	_ http_.HTTPTransport = (*HTTPTransport)(nil)
	_ http_.Routes        = (*HTTPTransport)(nil)
)

// NewHTTPTransport creates a new HTTPTransport instance.
// It requires an AuthService for handling authentication operations.
func NewHTTPTransport(authSvc *AuthService) *HTTPTransport {
	return &HTTPTransport{
		authSvc: authSvc,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
	}
}

// RegisterRoutes sets up the routes for the auth service endpoints:
// - POST /login: Login and get an auth token.
func (ht *HTTPTransport) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /login", ht.HandleLogin)
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	ht.RegisterRoutes(mux)
	mux.ServeHTTP(w, r)
}

// HandleLogin processes user login requests.
// Accepts a JSON body or form parameters: username, password.
// Returns an auth token and its expiry on successful login.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))

	defer func(ctx context.Context) {
		if err != nil {
			http_.WriteError(w, err)
			log.WarnContext(ctx, "user login failed", "error", err)
		} else {
			log.DebugContext(ctx, "user logged in")
		}
	}(r.Context())

	req, err := readLoginRequest(w, r)
	if err != nil {
		return err
	}

	log = log.With(logging.Group("user", "name", req.Username))

	token, expiresAt, err := ht.authSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		return fmt.Errorf("login user: %w", err)
	}

	if err := http_.WriteJSON(w, http.StatusOK, domain.AuthTokenResponse{Token: token, ExpiresAt: expiresAt}); err != nil {
		log.ErrorContext(r.Context(), "encode response failed", "error", err)
	}

	return nil
}

func readLoginRequest(w http.ResponseWriter, r *http.Request) (domain.LoginRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodySize)

	var req domain.LoginRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("%w: decode body: %w", domain.ErrInvalidInput, err)
		}

		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("%w: parse form: %w", domain.ErrInvalidInput, err)
	}

	req.Username = r.PostFormValue("username")
	req.Password = r.PostFormValue("password")

	return req, nil
}
