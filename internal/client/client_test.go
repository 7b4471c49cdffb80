package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/filevault/internal/client"
	"github.com/mkrupp/filevault/internal/domain"
	context_ "github.com/mkrupp/filevault/internal/infra/context"
)

type fakeServer struct {
	m        sync.Mutex
	files    map[string][]byte
	traceIDs []string
}

func (s *fakeServer) handler(t *testing.T) http.Handler {
	t.Helper()

	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			s.m.Lock()
			s.traceIDs = append(s.traceIDs, r.Header.Get("X-Request-ID"))
			s.m.Unlock()

			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":"no auth token"}`)

				return
			}

			h(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var req domain.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Username != "test" || req.Password != "test" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid credentials"}`)

			return
		}

		_ = json.NewEncoder(w).Encode(domain.AuthTokenResponse{Token: "tok", ExpiresAt: time.Unix(1700000000, 0).UTC()})
	})
	mux.HandleFunc("POST /upload", authed(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}

		content, err := io.ReadAll(f)
		assert.NoError(t, err)

		s.m.Lock()
		s.files[hdr.Filename] = content
		s.m.Unlock()

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.FileIDResponse{ID: "id-1"})
	}))
	mux.HandleFunc("GET /download_file/{filename}", authed(func(w http.ResponseWriter, r *http.Request) {
		s.m.Lock()
		content, ok := s.files[r.PathValue("filename")]
		s.m.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"file not found"}`)

			return
		}

		_, _ = w.Write(content)
	}))
	mux.HandleFunc("GET /download_image/{name}", authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.PathValue("name")+"@"+r.URL.Query().Get("width"))
	}))

	return mux
}

func setupClient(t *testing.T) (*client.HTTPClient, *fakeServer) {
	t.Helper()

	fake := &fakeServer{files: make(map[string][]byte)}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	c, err := client.NewHTTPClient(client.Config{URL: srv.URL + "/"}, srv.Client())
	require.NoError(t, err)

	return c, fake
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	_, err := client.NewHTTPClient(client.Config{URL: "ftp://example.com"}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	c, err := client.NewHTTPClient(client.Config{URL: "http://localhost:8080", Token: "abc"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", c.Token())
}

func TestHTTPClient_LoginUploadDownload(t *testing.T) {
	t.Parallel()

	ctx := context_.WithTraceID(context.Background(), "trace-1")
	c, fake := setupClient(t)

	_, err := c.Upload(ctx, "a.txt", strings.NewReader("x"))
	require.ErrorIs(t, err, client.ErrNotLoggedIn)

	_, err = c.Login(ctx, "test", "wrong")

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid credentials", apiErr.Message)

	resp, err := c.Login(ctx, "test", "test")
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, "tok", c.Token())

	id, err := c.Upload(ctx, "report.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, domain.FileID("id-1"), id)

	var buf bytes.Buffer

	n, err := c.Download(ctx, "report.pdf", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Equal(t, "%PDF-1.4", buf.String())

	_, err = c.Download(ctx, "missing.pdf", io.Discard)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	buf.Reset()

	_, err = c.DownloadImage(ctx, "cat.png", 32, &buf)
	require.NoError(t, err)
	assert.Equal(t, "cat.png@32", buf.String())

	fake.m.Lock()
	defer fake.m.Unlock()

	for _, traceID := range fake.traceIDs {
		assert.Equal(t, "trace-1", traceID)
	}
}

func TestHTTPClient_UploadReaderError(t *testing.T) {
	t.Parallel()

	c, _ := setupClient(t)
	c.SetToken("tok")

	readErr := errors.New("disk gone")

	_, err := c.Upload(context.Background(), "a.txt", io.MultiReader(strings.NewReader("partial"), errReader{readErr}))
	require.Error(t, err)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}
