package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	goosedb "github.com/pressly/goose/v3/database"

	"github.com/mkrupp/filevault/internal/infra/logging"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies all pending schema migrations for the database's dialect.
// Applied versions are tracked by goose, so calling it on every start is safe.
func Migrate(ctx context.Context, db *DB) (err error) {
	log := logging.GetLogger("infra.database.migrate").With(logging.Group("db", "dialect", db.Dialect))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "migrate failed", "error", err)
		}
	}()

	var gooseDialect goosedb.Dialect

	switch db.Dialect {
	case DialectSQLite:
		gooseDialect = goosedb.DialectSQLite3
	case DialectPostgres:
		gooseDialect = goosedb.DialectPostgres
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, db.Dialect)
	}

	fsys, err := fs.Sub(migrations, "migrations/"+string(db.Dialect))
	if err != nil {
		return fmt.Errorf("sub fs: %w", err)
	}

	provider, err := goose.NewProvider(gooseDialect, db.DB, fsys)
	if err != nil {
		return fmt.Errorf("new goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", Classify(err))
	}

	for _, result := range results {
		log.InfoContext(ctx, "migration applied",
			"version", result.Source.Version,
			"path", result.Source.Path,
			"duration", result.Duration,
		)
	}

	return nil
}
