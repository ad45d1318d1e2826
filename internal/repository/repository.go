// Package repository declares the storage contracts the services depend on.
//
// The services only see these interfaces. The sqlite package provides the
// production implementation; tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/fluxgate/internal/model"
)

// UserRepository stores accounts and their credit balances.
type UserRepository interface {
	// CreateUser inserts user, filling in ID and timestamps.
	// Returns apperror.ErrConflict if the email is already registered.
	CreateUser(ctx context.Context, user *model.User) error
	// GetUserByEmail matches email case-insensitively.
	// Returns apperror.ErrNotFound if there is no such user.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// GetUserByID returns apperror.ErrNotFound if there is no such user.
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// AdjustCredits adds delta (which may be negative) to the balance with no
	// bounds check and returns the new balance.
	// Returns apperror.ErrNotFound if there is no such user.
	AdjustCredits(ctx context.Context, id string, delta int64) (int64, error)
	// DebitCredits subtracts amount only if the balance covers it, as one
	// atomic statement. ok is false when the balance was too low or the user
	// does not exist; the balance is then unchanged.
	DebitCredits(ctx context.Context, id string, amount int64) (balance int64, ok bool, err error)
}

// SessionRepository stores the single active session of each user.
type SessionRepository interface {
	// ReplaceSession stores session, deleting any other session of the same user.
	ReplaceSession(ctx context.Context, session *model.Session) error
	// GetSessionByToken matches token exactly.
	// Returns apperror.ErrNotFound if no session has that token.
	GetSessionByToken(ctx context.Context, token string) (*model.Session, error)
	// DeleteExpiredSessions removes sessions whose expiry is at or before the
	// current time and returns how many were removed.
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}
