package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/filevault/internal/domain"
	context_ "github.com/mkrupp/filevault/internal/infra/context"
	"github.com/mkrupp/filevault/internal/infra/logging"
)

func decodeJSONLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	return entry
}

func TestRedactingHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := logging.NewRedactingHandler(slog.NewJSONHandler(&buf, nil), logging.DefaultRedactKeys...)
	log := slog.New(handler).With("Password", "hunter2")

	log.Info("login", "username", "test", slog.Group("auth", "token", "abc.def.ghi"))

	entry := decodeJSONLine(t, &buf)
	assert.Equal(t, "[REDACTED]", entry["Password"])
	assert.Equal(t, "test", entry["username"])

	auth, ok := entry["auth"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "[REDACTED]", auth["token"])
	assert.NotContains(t, buf.String(), "hunter2")
	assert.NotContains(t, buf.String(), "abc.def.ghi")
}

func TestTracingHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log := slog.New(logging.NewTracingHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := context_.WithTraceID(context.Background(), "trace-1")
	ctx = context_.WithIdentity(ctx, domain.Identity{
		Username: "test2",
		Roles:    domain.NewRoleSet(domain.RoleUser),
	})

	log.InfoContext(ctx, "request")

	entry := decodeJSONLine(t, &buf)

	trace, ok := entry["trace"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "trace-1", trace["id"])

	auth, ok := entry["auth"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "test2", auth["user"])
	assert.Equal(t, "user", auth["roles"])
}

func TestConsoleHandlerPkgLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	//nolint:exhaustruct
	handler := &logging.ConsoleHandler{
		Output: &buf,
		Level:  slog.LevelInfo,
		PkgLevels: map[string]slog.Level{
			"svc.filesvc": slog.LevelDebug,
			"repo":        slog.LevelError,
		},
	}

	slog.New(handler).With("logger", "svc.filesvc.file_service").Debug("kept")
	slog.New(handler).With("logger", "svc.usersvc").Debug("dropped by default level")
	slog.New(handler).With("logger", "repo.user").Warn("dropped by pkg level")
	slog.New(handler).With("logger", "repo.user").Error("kept too", "k", "v")

	out := buf.String()
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "kept too")
	assert.Contains(t, out, "k=v")
	assert.NotContains(t, out, "dropped")
	assert.NotContains(t, out, "\033[", "no colors when not writing to a terminal")
	assert.Equal(t, 2, strings.Count(out, "\n-> "))
}

func TestGetLoggerDiscard(t *testing.T) {
	t.Parallel()

	log := logging.NewNopLogger()
	assert.NotNil(t, log)
	log.Info("nothing", "password", "x")
}
