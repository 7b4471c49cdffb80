package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/filevault/internal/app"
	"github.com/mkrupp/filevault/internal/client"
	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/infra/config"
	"github.com/mkrupp/filevault/internal/infra/database"
	"github.com/mkrupp/filevault/internal/infra/database/databasetest"
	"github.com/mkrupp/filevault/internal/repo/blob"
	"github.com/mkrupp/filevault/internal/svc/authsvc"
	"github.com/mkrupp/filevault/internal/svc/filesvc"
	"github.com/mkrupp/filevault/internal/svc/imagesvc"
	"github.com/mkrupp/filevault/internal/svc/usersvc"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testConfig(t *testing.T) app.Config {
	t.Helper()

	dir := t.TempDir()

	//nolint:exhaustruct
	return app.Config{
		Auth: authsvc.AuthConfig{
			SigningSecret: testSecret,
			TokenTTL:      time.Hour,
			Issuer:        "filevault",
			Argon2:        authsvc.Argon2Config{Time: 1, Memory: 64, Threads: 1},
		},
		DB:    databasetest.SQLiteConfig(dir),
		Files: filesvc.FileConfig{MaxSize: 1 << 20, MultipartField: "file"},
		Image: imagesvc.ImageConfig{Interpolator: "catmullrom", MaxWidth: 4096},
		Blob: blob.Config{
			Backend:    "filesystem",
			FileSystem: blob.FileSystemBlobRepositoryConfig{Basedir: dir},
		},
		Seed: usersvc.SeedConfig{
			Enabled:       true,
			AdminUsername: "test",
			AdminPassword: "test",
			UserUsername:  "test2",
			UserPassword:  "test",
		},
	}
}

func startServer(t *testing.T) (*app.App, *httptest.Server) {
	t.Helper()

	a, err := app.New(context.Background(), testConfig(t))
	require.NoError(t, err)

	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	return a, srv
}

func loggedIn(t *testing.T, srv *httptest.Server, username, password string) *client.HTTPClient {
	t.Helper()

	c, err := client.NewHTTPClient(client.Config{URL: srv.URL}, srv.Client())
	require.NoError(t, err)

	_, err = c.Login(context.Background(), username, password)
	require.NoError(t, err)

	return c
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, status, apiErr.StatusCode)
}

func TestNewRejectsMissingSecret(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Auth.SigningSecret = ""

	_, err := app.New(context.Background(), cfg)
	require.ErrorIs(t, err, authsvc.ErrNoSigningSecret)
}

func TestAdminAddsUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, srv := startServer(t)

	admin := loggedIn(t, srv, "test", "test")
	user := loggedIn(t, srv, "test2", "test")

	created, err := admin.AddUser(ctx, "carol", "pw", domain.NewRoleSet(domain.RoleUser))
	require.NoError(t, err)
	assert.Equal(t, "carol", created.Username)

	_, err = user.AddUser(ctx, "dave", "pw", domain.NewRoleSet(domain.RoleUser))
	requireStatus(t, err, http.StatusForbidden)

	_, err = admin.AddUser(ctx, "carol", "pw", domain.NewRoleSet(domain.RoleUser))
	requireStatus(t, err, http.StatusConflict)

	users, err := admin.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)

	carol := loggedIn(t, srv, "carol", "pw")
	files, err := carol.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, admin.DeleteUser(ctx, "carol"))

	_, err = carol.Login(ctx, "carol", "pw")
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestForeignDownloadIsForbidden(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, srv := startServer(t)

	admin := loggedIn(t, srv, "test", "test")
	user := loggedIn(t, srv, "test2", "test")

	content := "%PDF-1.4 quarterly numbers"

	_, err := user.Upload(ctx, "report.pdf", strings.NewReader(content))
	require.NoError(t, err)

	var buf bytes.Buffer

	_, err = admin.Download(ctx, "report.pdf", &buf)
	requireStatus(t, err, http.StatusForbidden)
	assert.Empty(t, buf.String())

	_, err = user.Download(ctx, "report.pdf", &buf)
	require.NoError(t, err)
	assert.Equal(t, content, buf.String())

	files, err := admin.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = user.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "application/pdf", files[0].MIMEType)
}

func TestImagesRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, srv := startServer(t)
	user := loggedIn(t, srv, "test2", "test")

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 64, 32))))

	_, err := user.UploadImage(ctx, "cat.png", bytes.NewReader(img.Bytes()))
	require.NoError(t, err)

	_, err = user.UploadImage(ctx, "cat.txt", strings.NewReader("meow"))
	requireStatus(t, err, http.StatusUnsupportedMediaType)

	for range 2 {
		var resized bytes.Buffer

		_, err = user.DownloadImage(ctx, "cat.png", 16, &resized)
		require.NoError(t, err)

		cfg, err := png.DecodeConfig(&resized)
		require.NoError(t, err)
		assert.Equal(t, 16, cfg.Width)
		assert.Equal(t, 8, cfg.Height)
	}

	images, err := user.ListImages(ctx)
	require.NoError(t, err)
	require.Len(t, images, 1)

	files, err := user.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files, "images live in their own namespace")
}

func TestBootstrapOnRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := testConfig(t)

	db, err := database.Open(ctx, cfg.DB)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	for range 2 {
		_, err := app.NewWithDB(ctx, cfg, db)
		require.NoError(t, err)
	}

	var users, indexes int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&users))
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'username_unique_index'`,
	).Scan(&indexes))

	assert.Equal(t, 2, users)
	assert.Equal(t, 1, indexes)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	a, srv := startServer(t)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)

	var health app.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health.Status)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	require.NoError(t, a.DB.Close())

	resp, err = srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestUnauthenticatedRequests(t *testing.T) {
	t.Parallel()

	_, srv := startServer(t)

	routes := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/files"},
		{http.MethodPost, "/upload"},
		{http.MethodGet, "/download_file/x"},
		{http.MethodGet, "/images"},
		{http.MethodPost, "/upload_image"},
		{http.MethodGet, "/download_image/x"},
		{http.MethodGet, "/users"},
		{http.MethodPost, "/user/add"},
		{http.MethodGet, "/user/test"},
		{http.MethodPut, "/user/test"},
		{http.MethodDelete, "/user/test"},
	}

	for _, route := range routes {
		req, err := http.NewRequest(route.method, srv.URL+route.target, nil)
		require.NoError(t, err)

		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, route.method+" "+route.target)
		assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
	}
}

func TestPublicRoutes(t *testing.T) {
	t.Parallel()

	_, srv := startServer(t)

	tests := []struct {
		method     string
		target     string
		wantStatus int
	}{
		{method: http.MethodGet, target: "/healthz", wantStatus: http.StatusOK},
		{method: http.MethodPost, target: "/login", wantStatus: http.StatusUnauthorized},
		{method: http.MethodGet, target: "/no/such/route", wantStatus: http.StatusNotFound},
		{method: http.MethodGet, target: "/upload", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		req, err := http.NewRequest(tt.method, srv.URL+tt.target, nil)
		require.NoError(t, err)

		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Equal(t, tt.wantStatus, resp.StatusCode, tt.method+" "+tt.target)
	}
}

//nolint:paralleltest
func TestConfigDefaults(t *testing.T) {
	t.Setenv("FILEVAULT_AUTH_SIGNING_SECRET", testSecret)
	t.Setenv("FILEVAULT_FILES_CONCEAL_FOREIGN", "true")
	t.Setenv("FILEVAULT_BLOB_S3_BUCKET", "vault")
	t.Setenv("FILEVAULT_IMAGE_MAX_PIXELS", "1000000")

	var cfg app.Config
	require.NoError(t, config.Parse(context.Background(), &cfg, app.Namespace))

	assert.Equal(t, testSecret, cfg.Auth.SigningSecret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	require.NoError(t, cfg.Auth.Validate(), "defaults pass validation")
	assert.Equal(t, ":8080", cfg.HTTP.ServerAddr)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, int64(20971520), cfg.Files.MaxSize)
	assert.True(t, cfg.Files.ConcealForeign)
	assert.Equal(t, "file", cfg.Files.MultipartField)
	assert.Equal(t, "catmullrom", cfg.Image.Interpolator)
	assert.Equal(t, 4096, cfg.Image.MaxWidth)
	assert.Equal(t, int64(1000000), cfg.Image.MaxPixels)
	assert.Equal(t, "filesystem", cfg.Blob.Backend)
	assert.Equal(t, "vault", cfg.Blob.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.Blob.S3.Region)
	assert.True(t, cfg.Seed.Enabled)
	assert.Equal(t, "test2", cfg.Seed.UserUsername)
}
