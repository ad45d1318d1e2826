// Package auth provides session issuance and validation, the session cookie,
// and password hashing.
//
// SESSION FLOW:
//  1. Login or account creation succeeds → SessionManager.Issue stores a new
//     session for the user, replacing any previous one.
//  2. The handler sets the token as an HttpOnly cookie (SetSessionCookie).
//  3. On every later request OptionalSession reads the cookie and resolves it
//     with SessionManager.Validate. An unknown, expired or superseded token
//     simply resolves to "no user".
//
// Tokens are opaque random strings. All state lives server-side in the
// sessions table, so a token is only as good as its row.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/fluxgate/internal/apperror"
	"github.com/sakif/fluxgate/internal/model"
	"github.com/sakif/fluxgate/internal/repository"
)

// DefaultSessionTTL matches the cookie Max-Age.
const DefaultSessionTTL = 24 * time.Hour

// tokenParts is how many random UUIDs make up one token (3 x 122 random bits).
const tokenParts = 3

// SessionManager issues and resolves session tokens.
type SessionManager struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionManager creates a SessionManager. A non-positive ttl falls back
// to DefaultSessionTTL.
func NewSessionManager(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	ttl time.Duration,
	logger *slog.Logger,
) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		sessions: sessions,
		users:    users,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// TTL is the lifetime given to newly issued sessions.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a new session for userID and returns its token. Any earlier
// session of the same user stops validating as soon as this returns.
func (m *SessionManager) Issue(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("auth: user ID must not be empty")
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}

	now := m.now()
	session := &model.Session{
		Token:     token,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.sessions.ReplaceSession(ctx, session); err != nil {
		return "", fmt.Errorf("auth: storing session for user %s: %w", userID, err)
	}

	return token, nil
}

// Validate resolves token to its user. It reports false for an empty token,
// a token with no session, an expired session, or any storage failure; a
// failure is logged but never returned to the caller.
func (m *SessionManager) Validate(ctx context.Context, token string) (*model.User, bool) {
	if token == "" {
		return nil, false
	}

	session, err := m.sessions.GetSessionByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			m.logger.Error("session lookup failed", slog.String("error", err.Error()))
		}
		return nil, false
	}

	if session.Expired(m.now()) {
		return nil, false
	}

	user, err := m.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			m.logger.Error("session user lookup failed",
				slog.String("userID", session.UserID),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	return user, true
}

// Sweep deletes expired sessions. Expired sessions never validate anyway;
// this only keeps the table small.
func (m *SessionManager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("auth: sweeping sessions: %w", err)
	}
	return n, nil
}

// newToken joins several independent random UUIDv4 values. Collision odds
// are negligible and the output is cookie-safe without further encoding.
func newToken() (string, error) {
	parts := make([]string, 0, tokenParts)
	for i := 0; i < tokenParts; i++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("auth: generating session token: %w", err)
		}
		parts = append(parts, id.String())
	}
	return strings.Join(parts, "-"), nil
}
