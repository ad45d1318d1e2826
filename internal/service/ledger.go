// Package service holds the business rules: accounts, the credit ledger and
// the paid image-generation flow.
//
//	Dispatcher (HTTP) → AccountService / ImageService → CreditLedger
//	                                                   ↘ UserRepository (DB)
//
// Services know nothing about HTTP. They return apperror kinds and leave the
// mapping to redirects and JSON to the handler package.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/fluxgate/internal/apperror"
	"github.com/sakif/fluxgate/internal/auth"
	"github.com/sakif/fluxgate/internal/metrics"
	"github.com/sakif/fluxgate/internal/repository"
)

// CreditLedger reads and changes balances on behalf of a session token.
//
// The boolean methods (HasSufficient, Adjust, Balance) fail closed: an
// unknown token and a storage failure both come back as false, and storage
// failures are logged here rather than returned.
type CreditLedger struct {
	users    repository.UserRepository
	sessions auth.SessionValidator
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewCreditLedger creates a CreditLedger.
func NewCreditLedger(
	users repository.UserRepository,
	sessions auth.SessionValidator,
	rec metrics.Recorder,
	logger *slog.Logger,
) *CreditLedger {
	return &CreditLedger{
		users:    users,
		sessions: sessions,
		metrics:  rec,
		logger:   logger,
	}
}

// HasSufficient reports whether the token's user holds at least amount credits.
func (l *CreditLedger) HasSufficient(ctx context.Context, token string, amount int64) bool {
	user, ok := l.sessions.Validate(ctx, token)
	if !ok {
		return false
	}
	return user.Credits >= amount
}

// Balance returns the token's current balance.
func (l *CreditLedger) Balance(ctx context.Context, token string) (int64, bool) {
	user, ok := l.sessions.Validate(ctx, token)
	if !ok {
		return 0, false
	}
	return user.Credits, true
}

// Adjust adds delta to the token's balance without any bounds check.
// Callers that debit must check or reserve first; prefer Reserve.
func (l *CreditLedger) Adjust(ctx context.Context, token string, delta int64) bool {
	_, err := l.adjust(ctx, token, delta)
	return err == nil
}

// Grant adds a positive amount to the token's balance and returns the new
// balance. Returns apperror.ErrUnauthorized for an unknown token.
func (l *CreditLedger) Grant(ctx context.Context, token string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperror.ValidationFailed("amount", "grant amount must be positive")
	}
	balance, err := l.adjust(ctx, token, amount)
	if err != nil {
		return 0, err
	}
	l.metrics.RecordCreditsGranted(amount)
	return balance, nil
}

func (l *CreditLedger) adjust(ctx context.Context, token string, delta int64) (int64, error) {
	user, ok := l.sessions.Validate(ctx, token)
	if !ok {
		return 0, apperror.Unauthorized("no valid session")
	}

	balance, err := l.users.AdjustCredits(ctx, user.ID, delta)
	if err != nil {
		l.logger.Error("credit adjustment failed",
			slog.String("userID", user.ID),
			slog.Int64("delta", delta),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("service/ledger: adjusting %s by %d: %w", user.ID, delta, err)
	}
	return balance, nil
}

// Reserve takes amount credits from the token's user up front and returns a
// Hold that can give them back.
//
// The debit is a single conditional update, so concurrent reservations can
// never take a balance below zero; when two race for the last credit the
// loser gets apperror.ErrInsufficientCredits.
func (l *CreditLedger) Reserve(ctx context.Context, token string, amount int64) (*Hold, error) {
	if amount <= 0 {
		return nil, apperror.ValidationFailed("amount", "reserve amount must be positive")
	}

	user, ok := l.sessions.Validate(ctx, token)
	if !ok {
		return nil, apperror.Unauthorized("no valid session")
	}

	// Cheap early exit; DebitCredits below is what actually enforces the bound.
	if user.Credits < amount {
		return nil, apperror.InsufficientCredits(user.ID, amount)
	}

	balance, debited, err := l.users.DebitCredits(ctx, user.ID, amount)
	if err != nil {
		l.logger.Error("credit debit failed",
			slog.String("userID", user.ID),
			slog.Int64("amount", amount),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/ledger: debiting %s: %w", user.ID, err)
	}
	if !debited {
		return nil, apperror.InsufficientCredits(user.ID, amount)
	}

	l.metrics.RecordCreditsDebited(amount)

	return &Hold{
		ledger:  l,
		userID:  user.ID,
		amount:  amount,
		balance: balance,
	}, nil
}

// Hold is a completed debit that may still be refunded.
//
// The refund is keyed by user ID, not token, so it lands even if the user
// logged in again (and so replaced the token) while the hold was open.
type Hold struct {
	ledger *CreditLedger
	userID string
	amount int64

	mu       sync.Mutex
	balance  int64
	refunded bool
}

// UserID is the account the credits were taken from.
func (h *Hold) UserID() string { return h.userID }

// Amount is the number of credits held.
func (h *Hold) Amount() int64 { return h.amount }

// Balance is the account balance after the debit, or after the refund once
// Refund has succeeded.
func (h *Hold) Balance() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.balance
}

// Refund returns the held credits with an unconditional increment. It runs
// even when ctx is already canceled, and calling it again after a success
// does nothing.
func (h *Hold) Refund(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refunded {
		return nil
	}

	balance, err := h.ledger.users.AdjustCredits(context.WithoutCancel(ctx), h.userID, h.amount)
	if err != nil {
		h.ledger.logger.Error("credit refund failed",
			slog.String("userID", h.userID),
			slog.Int64("amount", h.amount),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("service/ledger: refunding %d to %s: %w", h.amount, h.userID, err)
	}

	h.refunded = true
	h.balance = balance
	h.ledger.metrics.RecordCreditsRefunded(h.amount)
	return nil
}
