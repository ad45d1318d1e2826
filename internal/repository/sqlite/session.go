package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/fluxgate/internal/apperror"
	"github.com/sakif/fluxgate/internal/model"
	"github.com/sakif/fluxgate/internal/repository"
)

// compile-time check that *DB implements repository.SessionRepository
var _ repository.SessionRepository = (*DB)(nil)

// ReplaceSession stores session as the only session of its user.
//
// user_id is UNIQUE, so the upsert overwrites the previous row in place. One
// statement keeps two logins racing for the same user from both inserting.
func (db *DB) ReplaceSession(ctx context.Context, session *model.Session) error {
	session.IssuedAt = session.IssuedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, issued_at, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     token      = excluded.token,
		     issued_at  = excluded.issued_at,
		     expires_at = excluded.expires_at`,
		session.Token,
		session.UserID,
		session.IssuedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: replacing session for user %s: %w", session.UserID, err)
	}
	return nil
}

// GetSessionByToken returns the session whose token equals token exactly.
// The token is a credential, so it is never included in error messages.
func (db *DB) GetSessionByToken(ctx context.Context, token string) (*model.Session, error) {
	var s model.Session
	err := db.conn.QueryRowContext(ctx,
		`SELECT token, user_id, issued_at, expires_at FROM sessions WHERE token = ?`,
		token,
	).Scan(&s.Token, &s.UserID, &s.IssuedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", "<redacted>")
		}
		return nil, fmt.Errorf("sqlite: getting session: %w", err)
	}
	return &s, nil
}

// DeleteExpiredSessions removes every session that has reached its expiry.
func (db *DB) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting deleted sessions: %w", err)
	}
	return n, nil
}
