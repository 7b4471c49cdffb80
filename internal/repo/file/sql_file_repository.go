package file

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/infra/database"
	"github.com/mkrupp/filevault/internal/infra/logging"
)

const metaColumns = "id, kind, owner, filename, size, hash, mime_type, created_at"

// SQLFileRepository implements Repository on top of the files table.
type SQLFileRepository struct {
	db    *database.DB
	log   logging.Logger
	now   func() time.Time
	newID func() (uuid.UUID, error)
}

var _ Repository = (*SQLFileRepository)(nil)

// SQLFileRepositoryFactory creates a factory function that returns a new SQLFileRepository.
func SQLFileRepositoryFactory(db *database.DB) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLFileRepository(db), nil
	}
}

// NewSQLFileRepository creates a repository using an opened and migrated database.
func NewSQLFileRepository(db *database.DB) *SQLFileRepository {
	return &SQLFileRepository{
		db:    db,
		log:   logging.GetLogger("repo.file.sql_file_repository").With(logging.Group("db", "dialect", db.Dialect)),
		now:   time.Now,
		newID: uuid.NewV7,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeta(row rowScanner, extra ...any) (domain.FileMeta, error) {
	var (
		meta      domain.FileMeta
		id, kind  string
		createdAt int64
	)

	dest := append([]any{&id, &kind, &meta.Owner, &meta.Filename, &meta.Size, &meta.Hash, &meta.MIMEType, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.FileMeta{}, err //nolint:wrapcheck
	}

	meta.ID = domain.FileID(id)
	meta.Kind = domain.FileKind(kind)
	meta.CreatedAt = time.UnixMilli(createdAt).UTC()

	return meta, nil
}

// Insert implements Repository.Insert. Uniqueness is left to files_kind_owner_filename_unique_index.
func (r *SQLFileRepository) Insert(ctx context.Context, file domain.File) (_ domain.FileMeta, err error) {
	log := r.log.With(logging.Group("file", "kind", file.Kind, "owner", file.Owner, "name", file.Filename))

	defer func() {
		if err != nil && !errors.Is(err, domain.ErrFileAlreadyExists) {
			log.ErrorContext(ctx, "insert file failed", "error", err)
		} else if err == nil {
			log.DebugContext(ctx, "file inserted", "id", file.ID, "size", file.Size)
		}
	}()

	id, err := r.newID()
	if err != nil {
		return domain.FileMeta{}, fmt.Errorf("generate id: %w", err)
	}

	file.ID = domain.FileID(id.String())
	file.CreatedAt = r.now().UTC().Truncate(time.Millisecond)

	content := file.Content
	if content == nil {
		content = []byte{}
	}

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	_, err = r.db.ExecContext(ctx,
		r.db.Rebind("INSERT INTO files ("+metaColumns+", content) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		file.ID.String(),
		string(file.Kind),
		file.Owner,
		file.Filename,
		file.Size,
		file.Hash,
		file.MIMEType,
		file.CreatedAt.UnixMilli(),
		content,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			err = errors.Join(domain.ErrFileAlreadyExists, err)
		}

		return domain.FileMeta{}, fmt.Errorf("insert file: %w", database.Classify(err))
	}

	return file.FileMeta, nil
}

// ListByOwner implements Repository.ListByOwner.
func (r *SQLFileRepository) ListByOwner(
	ctx context.Context,
	kind domain.FileKind,
	owner string,
) (_ []domain.FileMeta, err error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		r.db.Rebind("SELECT "+metaColumns+" FROM files WHERE kind = ? AND owner = ? ORDER BY created_at, id"),
		string(kind),
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", database.Classify(err))
	}

	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", cerr)
		}
	}()

	files := make([]domain.FileMeta, 0)

	for rows.Next() {
		meta, err := scanMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}

		files = append(files, meta)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", database.Classify(err))
	}

	return files, nil
}

// FindByOwner implements Repository.FindByOwner.
func (r *SQLFileRepository) FindByOwner(
	ctx context.Context,
	kind domain.FileKind,
	owner, filename string,
) (domain.File, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var content []byte

	meta, err := scanMeta(r.db.QueryRowContext(ctx,
		r.db.Rebind("SELECT "+metaColumns+", content FROM files WHERE kind = ? AND owner = ? AND filename = ?"),
		string(kind),
		owner,
		filename,
	), &content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrFileNotFound, err)
		}

		return domain.File{}, fmt.Errorf("query file: %w", database.Classify(err))
	}

	if content == nil {
		content = []byte{}
	}

	return domain.File{FileMeta: meta, Content: content}, nil
}

// ExistsForOtherOwner implements Repository.ExistsForOtherOwner.
func (r *SQLFileRepository) ExistsForOtherOwner(
	ctx context.Context,
	kind domain.FileKind,
	owner, filename string,
) (bool, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var exists int

	err := r.db.QueryRowContext(ctx,
		r.db.Rebind("SELECT 1 FROM files WHERE kind = ? AND filename = ? AND owner <> ? LIMIT 1"),
		string(kind),
		filename,
		owner,
	).Scan(&exists)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query file owner: %w", database.Classify(err))
	default:
		return true, nil
	}
}
