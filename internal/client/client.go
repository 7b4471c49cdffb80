// Package client is a Go client for the filevault HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/mkrupp/filevault/internal/domain"
	context_ "github.com/mkrupp/filevault/internal/infra/context"
	"github.com/mkrupp/filevault/internal/infra/logging"
	http_ "github.com/mkrupp/filevault/internal/infra/transport/http"
)

const (
	AuthorizationHeader = "Authorization"
	multipartField      = "file"
)

// ErrNotLoggedIn is returned by calls that need a token before Login succeeded.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx response of the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}

	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Config holds configuration for the HTTP client.
type Config struct {
	// URL is the base URL of the server
	URL string `env:"URL" default:"http://localhost:8080"`

	// Token is a previously issued bearer token
	Token string `env:"TOKEN" default:""`
}

// HTTPClient talks to a filevault server. It is safe for concurrent use.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    *url.URL
	log        logging.Logger

	mu    sync.RWMutex
	token string
}

// NewHTTPClient creates a new HTTPClient with the given configuration.
// If httpClient is nil, http.DefaultClient will be used.
func NewHTTPClient(cfg Config, httpClient *http.Client) (*HTTPClient, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported url scheme %q", domain.ErrInvalidInput, baseURL.Scheme)
	}

	return &HTTPClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		log:        logging.GetLogger("client.http_client"),
		token:      cfg.Token,
	}, nil
}

// Token returns the bearer token in use.
func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token
}

// SetToken replaces the bearer token.
func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (domain.AuthTokenResponse, error) {
	var resp domain.AuthTokenResponse

	if err := c.doJSON(ctx, http.MethodPost, "/login", false,
		domain.LoginRequest{Username: username, Password: password}, http.StatusOK, &resp); err != nil {
		return domain.AuthTokenResponse{}, err
	}

	c.SetToken(resp.Token)

	return resp, nil
}

// ListFiles returns the caller's files.
func (c *HTTPClient) ListFiles(ctx context.Context) ([]domain.FileMeta, error) {
	var files []domain.FileMeta

	return files, c.doJSON(ctx, http.MethodGet, "/files", true, nil, http.StatusOK, &files)
}

// ListImages returns the caller's images.
func (c *HTTPClient) ListImages(ctx context.Context) ([]domain.FileMeta, error) {
	var images []domain.FileMeta

	return images, c.doJSON(ctx, http.MethodGet, "/images", true, nil, http.StatusOK, &images)
}

// Upload stores the content of r as filename.
func (c *HTTPClient) Upload(ctx context.Context, filename string, r io.Reader) (domain.FileID, error) {
	return c.upload(ctx, "/upload", filename, r)
}

// UploadImage stores the image read from r as filename.
func (c *HTTPClient) UploadImage(ctx context.Context, filename string, r io.Reader) (domain.FileID, error) {
	return c.upload(ctx, "/upload_image", filename, r)
}

// Download writes the content of the caller's file filename to w.
func (c *HTTPClient) Download(ctx context.Context, filename string, w io.Writer) (int64, error) {
	return c.download(ctx, "/download_file/"+url.PathEscape(filename), w)
}

// DownloadImage writes the caller's image to w, resized to width when width > 0.
func (c *HTTPClient) DownloadImage(ctx context.Context, name string, width int, w io.Writer) (int64, error) {
	target := "/download_image/" + url.PathEscape(name)
	if width > 0 {
		target += "?width=" + strconv.Itoa(width)
	}

	return c.download(ctx, target, w)
}

// AddUser creates a user. Requires an admin token.
func (c *HTTPClient) AddUser(ctx context.Context, username, password string, roles domain.RoleSet) (domain.UserResponse, error) {
	var created domain.UserResponse

	req := domain.UserRequest{Username: &username, Password: &password, Roles: &roles}

	return created, c.doJSON(ctx, http.MethodPost, "/user/add", true, req, http.StatusCreated, &created)
}

// ListUsers returns all users. Requires an admin token.
func (c *HTTPClient) ListUsers(ctx context.Context) ([]domain.UserResponse, error) {
	var users []domain.UserResponse

	return users, c.doJSON(ctx, http.MethodGet, "/users", true, nil, http.StatusOK, &users)
}

// DeleteUser removes a user. Requires an admin token.
func (c *HTTPClient) DeleteUser(ctx context.Context, username string) error {
	return c.doJSON(ctx, http.MethodDelete, "/user/"+url.PathEscape(username), true, nil, http.StatusNoContent, nil)
}

func (c *HTTPClient) newRequest(
	ctx context.Context,
	method, target string,
	authed bool,
	body io.Reader,
) (*http.Request, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}

	u := c.baseURL.JoinPath(ref.EscapedPath())
	u.RawQuery = ref.RawQuery

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	if authed {
		token := c.Token()
		if token == "" {
			return nil, ErrNotLoggedIn
		}

		req.Header.Set(AuthorizationHeader, "Bearer "+token)
	}

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(http_.TraceIDHeader, traceID)
	}

	return req, nil
}

func (c *HTTPClient) do(req *http.Request, wantStatus int) (*http.Response, error) {
	log := c.log.With(logging.Group("http", "method", req.Method, "path", req.URL.Path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.DebugContext(req.Context(), "request failed", "error", err)

		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode == wantStatus {
		return resp, nil
	}

	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}

	var errResp http_.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&errResp); err == nil {
		apiErr.Message = errResp.Error
	}

	log.DebugContext(req.Context(), "unexpected status", "status", resp.StatusCode, "error", apiErr.Message)

	return nil, apiErr
}

func (c *HTTPClient) doJSON(
	ctx context.Context,
	method, target string,
	authed bool,
	in any,
	wantStatus int,
	out any,
) error {
	var body io.Reader

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, target, authed, body)
	if err != nil {
		return err
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(req, wantStatus)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *HTTPClient) upload(ctx context.Context, target, filename string, r io.Reader) (domain.FileID, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile(multipartField, filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}

		if err == nil {
			err = mw.Close()
		}

		_ = pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, target, true, pr)
	if err != nil {
		_ = pr.CloseWithError(err)

		return "", err
	}

	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req, http.StatusCreated)
	if err != nil {
		_ = pr.CloseWithError(err)

		return "", err
	}
	defer resp.Body.Close()

	var created domain.FileIDResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return created.ID, nil
}

func (c *HTTPClient) download(ctx context.Context, target string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, target, true, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("read body: %w", err)
	}

	return n, nil
}
