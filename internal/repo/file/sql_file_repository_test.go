package file_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/infra/database"
	"github.com/mkrupp/filevault/internal/infra/database/databasetest"
	"github.com/mkrupp/filevault/internal/repo/file"
)

func TestSQLFileRepositoryInsertAndFind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewSQLFileRepository(databasetest.OpenSQLite(t))

	report := domain.NewFile(domain.FileKindFile, "test2", "report.pdf", []byte("%PDF-1.7"), "application/pdf")

	meta, err := repo.Insert(ctx, report)
	require.NoError(t, err)

	id, err := uuid.Parse(meta.ID.String())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.False(t, meta.CreatedAt.IsZero())

	found, err := repo.FindByOwner(ctx, domain.FileKindFile, "test2", "report.pdf")
	require.NoError(t, err)

	if diff := cmp.Diff(meta, found.FileMeta); diff != "" {
		t.Errorf("FindByOwner() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, report.Content, found.Content)

	t.Run("other owner cannot see it", func(t *testing.T) {
		_, err := repo.FindByOwner(ctx, domain.FileKindFile, "test", "report.pdf")
		require.ErrorIs(t, err, domain.ErrFileNotFound)
	})

	t.Run("other kind cannot see it", func(t *testing.T) {
		_, err := repo.FindByOwner(ctx, domain.FileKindImage, "test2", "report.pdf")
		require.ErrorIs(t, err, domain.ErrFileNotFound)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		_, err := repo.Insert(ctx, report)
		require.ErrorIs(t, err, domain.ErrFileAlreadyExists)
	})

	t.Run("same name for another owner", func(t *testing.T) {
		_, err := repo.Insert(ctx, domain.NewFile(domain.FileKindFile, "test", "report.pdf", []byte("x"), "application/pdf"))
		require.NoError(t, err)
	})
}

func TestSQLFileRepositoryEmptyContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewSQLFileRepository(databasetest.OpenSQLite(t))

	_, err := repo.Insert(ctx, domain.NewFile(domain.FileKindFile, "alice", "empty.txt", nil, "text/plain"))
	require.NoError(t, err)

	found, err := repo.FindByOwner(ctx, domain.FileKindFile, "alice", "empty.txt")
	require.NoError(t, err)
	assert.Empty(t, found.Content)
	assert.NotNil(t, found.Content)
	assert.Zero(t, found.Size)
}

func TestSQLFileRepositoryListByOwner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewSQLFileRepository(databasetest.OpenSQLite(t))

	insert := func(kind domain.FileKind, owner, name string) domain.FileMeta {
		meta, err := repo.Insert(ctx, domain.NewFile(kind, owner, name, []byte(name), "text/plain"))
		require.NoError(t, err)

		return meta
	}

	first := insert(domain.FileKindFile, "alice", "a.txt")
	second := insert(domain.FileKindFile, "alice", "b.txt")
	insert(domain.FileKindFile, "bob", "c.txt")
	insert(domain.FileKindImage, "alice", "d.png")

	files, err := repo.ListByOwner(ctx, domain.FileKindFile, "alice")
	require.NoError(t, err)

	if diff := cmp.Diff([]domain.FileMeta{first, second}, files, cmpopts.SortSlices(func(a, b domain.FileMeta) bool {
		return a.Filename < b.Filename
	})); diff != "" {
		t.Errorf("ListByOwner() mismatch (-want +got):\n%s", diff)
	}

	files, err = repo.ListByOwner(ctx, domain.FileKindFile, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestSQLFileRepositoryExistsForOtherOwner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewSQLFileRepository(databasetest.OpenSQLite(t))

	_, err := repo.Insert(ctx, domain.NewFile(domain.FileKindFile, "test2", "report.pdf", []byte("pdf"), "application/pdf"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		kind     domain.FileKind
		owner    string
		filename string
		want     bool
	}{
		{name: "foreign file", kind: domain.FileKindFile, owner: "test", filename: "report.pdf", want: true},
		{name: "own file", kind: domain.FileKindFile, owner: "test2", filename: "report.pdf", want: false},
		{name: "unknown file", kind: domain.FileKindFile, owner: "test", filename: "missing.pdf", want: false},
		{name: "other namespace", kind: domain.FileKindImage, owner: "test", filename: "report.pdf", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ExistsForOtherOwner(ctx, tt.kind, tt.owner, tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLFileRepositoryPostgres(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	repo := file.NewSQLFileRepository(database.New(db, database.DialectPostgres, time.Second))

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO files (id, kind, owner, filename, size, hash, mime_type, created_at, content) " +
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
	)).
		WithArgs(sqlmock.AnyArg(), "file", "alice", "a.txt", int64(1), sqlmock.AnyArg(), "text/plain", sqlmock.AnyArg(), []byte("a")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = repo.Insert(ctx, domain.NewFile(domain.FileKindFile, "alice", "a.txt", []byte("a"), "text/plain"))
	require.ErrorIs(t, err, domain.ErrFileAlreadyExists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM files WHERE kind = $1 AND filename = $2 AND owner <> $3 LIMIT 1")).
		WithArgs("file", "a.txt", "bob").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsForOtherOwner(ctx, domain.FileKindFile, "bob", "a.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, mock.ExpectationsWereMet())
}
