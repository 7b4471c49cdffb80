// Package database opens the SQL database backing the credential and file
// stores. SQLite (modernc.org/sqlite) and PostgreSQL (pgx) are supported
// through database/sql; queries are written with ? placeholders and rebound
// for the active dialect.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/mkrupp/filevault/internal/infra/logging"
)

// ErrUnknownDriver is returned for a driver name other than sqlite or postgres.
var ErrUnknownDriver = errors.New("unknown database driver")

// Dialect selects the SQL flavour of the connected database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Config holds connection parameters.
type Config struct {
	// Driver is "sqlite" or "postgres"
	Driver string `env:"DRIVER" default:"sqlite"`

	// DSN is a SQLite file URI or a PostgreSQL connection string
	DSN string `env:"DSN" default:"file:var/storage/filevault.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"`

	// QueryTimeout bounds every repository call
	QueryTimeout time.Duration `env:"QUERY_TIMEOUT" default:"5s"`

	// ConnectTimeout bounds the initial ping
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" default:"10s"`

	// Pool settings, ignored for SQLite which always uses a single connection
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" default:"5m"`
}

// DB is a connection pool together with the dialect it speaks.
type DB struct {
	*sql.DB

	Dialect      Dialect
	QueryTimeout time.Duration
}

// New wraps an already opened pool.
func New(db *sql.DB, dialect Dialect, queryTimeout time.Duration) *DB {
	return &DB{DB: db, Dialect: dialect, QueryTimeout: queryTimeout}
}

// Open connects to the configured database and verifies the connection.
// A database that cannot be reached is reported as domain.ErrUpstreamUnavailable.
func Open(ctx context.Context, cfg Config) (_ *DB, err error) {
	log := logging.GetLogger("infra.database").With(logging.Group("db", "driver", cfg.Driver))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "open database failed", "error", err)
		} else {
			log.DebugContext(ctx, "database opened")
		}
	}()

	var (
		driverName string
		dialect    Dialect
	)

	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		driverName, dialect = "sqlite", DialectSQLite

		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, err
		}
	case "postgres", "postgresql", "pgx":
		driverName, dialect = "pgx", DialectPostgres
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	sqlDB, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if dialect == DialectSQLite {
		// modernc.org/sqlite serializes writers; one connection avoids SQLITE_BUSY between them
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("ping db: %w", Classify(err))
	}

	return New(sqlDB, dialect, cfg.QueryTimeout), nil
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	path, _, _ = strings.Cut(path, "?")

	if path == "" || path == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	return nil
}

// WithTimeout derives the context for a single database call from the caller's context.
func (db *DB) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, db.QueryTimeout)
}

// Rebind rewrites ? placeholders into the dialect's placeholder syntax.
func (db *DB) Rebind(query string) string {
	return Rebind(db.Dialect, query)
}

// Rebind rewrites ? placeholders into $1, $2, ... for PostgreSQL.
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}

	var (
		out strings.Builder
		n   int
	)

	out.Grow(len(query) + 8)

	for _, r := range query {
		if r != '?' {
			out.WriteRune(r)

			continue
		}

		n++

		out.WriteByte('$')
		out.WriteString(strconv.Itoa(n))
	}

	return out.String()
}

// Ping checks that the database answers within the query timeout.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", Classify(err))
	}

	return nil
}
