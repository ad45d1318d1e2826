package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/fluxgate/internal/apperror"
	"github.com/sakif/fluxgate/internal/model"
	"github.com/sakif/fluxgate/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, password_hash, credits, created_at, updated_at`

// CreateUser inserts a new user. ID, CreatedAt and UpdatedAt are assigned here
// and written back into user.
//
// The UNIQUE constraint on email (COLLATE NOCASE) is the source of truth for
// duplicates; a violation is reported as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Credits,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetUserByEmail looks a user up by email, ignoring case.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email %s: %w", email, err)
	}
	return u, nil
}

// GetUserByID retrieves a user by their internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// AdjustCredits applies an unconditional credits = credits + delta.
// Used for grants and refunds; it never refuses on balance.
func (db *DB) AdjustCredits(ctx context.Context, id string, delta int64) (int64, error) {
	var balance int64
	err := db.conn.QueryRowContext(ctx,
		`UPDATE users SET credits = credits + ?, updated_at = ?
		 WHERE id = ?
		 RETURNING credits`,
		delta, time.Now().UTC(), id,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("user", id)
		}
		return 0, fmt.Errorf("sqlite: adjusting credits for %s by %d: %w", id, delta, err)
	}
	return balance, nil
}

// DebitCredits subtracts amount only when the balance covers it.
//
// The check and the write are the same statement, so two concurrent debits
// cannot both pass a stale balance check: the second one matches no row.
func (db *DB) DebitCredits(ctx context.Context, id string, amount int64) (int64, bool, error) {
	var balance int64
	err := db.conn.QueryRowContext(ctx,
		`UPDATE users SET credits = credits - ?, updated_at = ?
		 WHERE id = ? AND credits >= ?
		 RETURNING credits`,
		amount, time.Now().UTC(), id, amount,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("sqlite: debiting %d credits from %s: %w", amount, id, err)
	}
	return balance, true, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Credits,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// isUniqueViolation matches on the primary result code so it works whether or
// not the connection reports extended codes. The only constraints an INSERT
// into users can trip are the id primary key and the email UNIQUE.
func isUniqueViolation(err error) bool {
	var se *sqlitedriver.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
