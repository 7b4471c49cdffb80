package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/filevault/internal/domain"
	"github.com/mkrupp/filevault/internal/infra/database"
	"github.com/mkrupp/filevault/internal/infra/logging"
)

const userColumns = "username, password_hash, roles, created_at, updated_at"

// SQLUserRepository implements Repository on top of the users table.
// It works with every dialect supported by the database package.
type SQLUserRepository struct {
	db  *database.DB
	log logging.Logger
	now func() time.Time
}

var _ Repository = (*SQLUserRepository)(nil)

// SQLUserRepositoryFactory creates a factory function that returns a new SQLUserRepository.
// The factory function implements the RepositoryFactory type.
func SQLUserRepositoryFactory(db *database.DB) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLUserRepository(db), nil
	}
}

// NewSQLUserRepository creates a repository using an opened and migrated database.
func NewSQLUserRepository(db *database.DB) *SQLUserRepository {
	return &SQLUserRepository{
		db:  db,
		log: logging.GetLogger("repo.user.sql_user_repository").With(logging.Group("db", "dialect", db.Dialect)),
		now: time.Now,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		user                 domain.User
		roles                string
		createdAt, updatedAt int64
	)

	if err := row.Scan(&user.Username, &user.PasswordHash, &roles, &createdAt, &updatedAt); err != nil {
		return domain.User{}, err //nolint:wrapcheck
	}

	if err := json.Unmarshal([]byte(roles), &user.Roles); err != nil {
		return domain.User{}, fmt.Errorf("decode roles: %w", err)
	}

	user.CreatedAt = time.UnixMilli(createdAt).UTC()
	user.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return user, nil
}

func encodeRoles(roles domain.RoleSet) (string, error) {
	data, err := json.Marshal(roles)
	if err != nil {
		return "", fmt.Errorf("encode roles: %w", err)
	}

	return string(data), nil
}

func findByUsername(ctx context.Context, db *database.DB, q database.DBTX, username string) (domain.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx,
		db.Rebind("SELECT "+userColumns+" FROM users WHERE username = ?"),
		username,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrUserNotFound, err)
		}

		return domain.User{}, fmt.Errorf("query user: %w", database.Classify(err))
	}

	return user, nil
}

// FindByUsername implements Repository.FindByUsername.
func (r *SQLUserRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	return findByUsername(ctx, r.db, r.db, username)
}

// Create implements Repository.Create. Uniqueness is left to username_unique_index.
func (r *SQLUserRepository) Create(ctx context.Context, user domain.User) (_ domain.User, err error) {
	log := r.log.With(logging.Group("user", "name", user.Username))

	defer func() {
		if err != nil && !errors.Is(err, domain.ErrUserAlreadyExists) {
			log.ErrorContext(ctx, "insert user failed", "error", err)
		}
	}()

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	now := r.now().UTC().Truncate(time.Millisecond)
	user.CreatedAt, user.UpdatedAt = now, now

	roles, err := encodeRoles(user.Roles)
	if err != nil {
		return domain.User{}, err
	}

	_, err = r.db.ExecContext(ctx,
		r.db.Rebind("INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?)"),
		user.Username,
		user.PasswordHash,
		roles,
		now.UnixMilli(),
		now.UnixMilli(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			err = errors.Join(domain.ErrUserAlreadyExists, err)
		}

		return domain.User{}, fmt.Errorf("insert user: %w", database.Classify(err))
	}

	return user, nil
}

// Update implements Repository.Update. The read and the write share one transaction.
func (r *SQLUserRepository) Update(
	ctx context.Context,
	username string,
	fn func(*domain.User) error,
) (updated domain.User, err error) {
	log := r.log.With(logging.Group("user", "name", username))

	defer func() {
		if err != nil && !errors.Is(err, domain.ErrUserNotFound) && !errors.Is(err, domain.ErrUserAlreadyExists) {
			log.ErrorContext(ctx, "update user failed", "error", err)
		}
	}()

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	err = r.db.WithTx(ctx, func(ctx context.Context, tx database.DBTX) error {
		user, err := findByUsername(ctx, r.db, tx, username)
		if err != nil {
			return err
		}

		if err := fn(&user); err != nil {
			return err
		}

		user.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)

		roles, err := encodeRoles(user.Roles)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			r.db.Rebind("UPDATE users SET username = ?, password_hash = ?, roles = ?, updated_at = ? WHERE username = ?"),
			user.Username,
			user.PasswordHash,
			roles,
			user.UpdatedAt.UnixMilli(),
			username,
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				err = errors.Join(domain.ErrUserAlreadyExists, err)
			}

			return fmt.Errorf("update user: %w", database.Classify(err))
		}

		updated = user

		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	return updated, nil
}

// Delete implements Repository.Delete.
func (r *SQLUserRepository) Delete(ctx context.Context, username string) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM users WHERE username = ?"), username)
	if err != nil {
		return fmt.Errorf("delete user: %w", database.Classify(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("delete user: %w", domain.ErrUserNotFound)
	}

	return nil
}

// List implements Repository.List.
func (r *SQLUserRepository) List(ctx context.Context) (_ []domain.User, err error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", database.Classify(err))
	}

	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", cerr)
		}
	}()

	users := make([]domain.User, 0)

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}

		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", database.Classify(err))
	}

	return users, nil
}
