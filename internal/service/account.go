package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/fluxgate/internal/apperror"
	"github.com/sakif/fluxgate/internal/auth"
	"github.com/sakif/fluxgate/internal/metrics"
	"github.com/sakif/fluxgate/internal/model"
	"github.com/sakif/fluxgate/internal/repository"
)

const (
	// DefaultStartingCredits is the balance a new account opens with.
	DefaultStartingCredits int64 = 20
	// DefaultGrantCredits is what one add-credits call grants.
	DefaultGrantCredits int64 = 20

	maxEmailLength = 254
)

// SessionIssuer starts a session for a user. *auth.SessionManager implements it.
type SessionIssuer interface {
	Issue(ctx context.Context, userID string) (string, error)
}

// AccountConfig holds the credit amounts used by AccountService.
type AccountConfig struct {
	StartingCredits int64
	GrantCredits    int64
}

// AuthResult is what a successful login or sign-up hands back to the caller.
type AuthResult struct {
	User  *model.User
	Token string
}

// AccountService handles sign-up, login and credit top-ups.
type AccountService struct {
	users     repository.UserRepository
	sessions  SessionIssuer
	passwords *auth.PasswordService
	ledger    *CreditLedger
	cfg       AccountConfig
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewAccountService creates an AccountService. Zero credit amounts in cfg are
// replaced with the defaults.
func NewAccountService(
	users repository.UserRepository,
	sessions SessionIssuer,
	passwords *auth.PasswordService,
	ledger *CreditLedger,
	cfg AccountConfig,
	rec metrics.Recorder,
	logger *slog.Logger,
) *AccountService {
	if cfg.StartingCredits == 0 {
		cfg.StartingCredits = DefaultStartingCredits
	}
	if cfg.GrantCredits == 0 {
		cfg.GrantCredits = DefaultGrantCredits
	}
	return &AccountService{
		users:     users,
		sessions:  sessions,
		passwords: passwords,
		ledger:    ledger,
		cfg:       cfg,
		metrics:   rec,
		logger:    logger,
	}
}

// Login checks the credentials and, on success, issues a session that
// replaces any session the user already had.
//
// A wrong password and an unknown email both return apperror.ErrUnauthorized
// and take about the same time. A failed login does not touch the existing
// session.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.RecordLogin(metrics.OutcomeInvalid)
		return nil, apperror.Unauthorized("email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			_ = s.passwords.VerifyMissing(password)
			s.metrics.RecordLogin(metrics.OutcomeUnauthorized)
			return nil, apperror.Unauthorized("invalid credentials")
		}
		s.metrics.RecordLogin(metrics.OutcomeStoreErr)
		return nil, fmt.Errorf("service/account: loading user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash is unreadable",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		s.metrics.RecordLogin(metrics.OutcomeUnauthorized)
		return nil, apperror.Unauthorized("invalid credentials")
	}

	token, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		s.metrics.RecordLogin(metrics.OutcomeStoreErr)
		return nil, fmt.Errorf("service/account: issuing session: %w", err)
	}

	s.metrics.RecordLogin(metrics.OutcomeSuccess)
	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// CreateAccount registers a new user with the starting balance and logs
// them in.
//
// Errors:
//   - apperror.ErrValidation for a malformed email or password
//   - apperror.ErrConflict when the email is taken, in any letter case
func (s *AccountService) CreateAccount(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.createUser(ctx, email, password, s.cfg.StartingCredits)
	if err != nil {
		return nil, err
	}

	token, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: issuing session: %w", err)
	}

	s.metrics.RecordAccountCreated()
	s.logger.Info("account created",
		slog.String("userID", user.ID),
		slog.Int64("credits", user.Credits),
	)
	return &AuthResult{User: user, Token: token}, nil
}

// AddCredits grants the configured top-up to the token's user and returns
// the new balance. There is no payment step.
func (s *AccountService) AddCredits(ctx context.Context, token string) (int64, error) {
	balance, err := s.ledger.Grant(ctx, token, s.cfg.GrantCredits)
	if err != nil {
		return 0, fmt.Errorf("service/account: adding credits: %w", err)
	}
	return balance, nil
}

// SeedUser makes sure a bootstrap account exists. It reports whether it had to
// create one; an existing account is left as it is.
func (s *AccountService) SeedUser(ctx context.Context, email, password string, credits int64) (bool, error) {
	_, err := s.createUser(ctx, email, password, credits)
	switch {
	case err == nil:
		s.logger.Info("seed account created",
			slog.String("email", normalizeEmail(email)),
			slog.Int64("credits", credits),
		)
		return true, nil
	case errors.Is(err, apperror.ErrConflict):
		return false, nil
	default:
		return false, err
	}
}

func (s *AccountService) createUser(ctx context.Context, email, password string, credits int64) (*model.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if credits < 0 {
		return nil, apperror.ValidationFailed("credits", "starting credits cannot be negative")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/account: hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Credits:      credits,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/account: creating user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	if len(email) > maxEmailLength {
		return apperror.ValidationFailed("email", fmt.Sprintf("email must be %d characters or fewer", maxEmailLength))
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return apperror.ValidationFailed("email", "email must look like name@domain")
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	return nil
}
