// Package apperror defines the error kinds shared by the service and handler layers.
//
// Services return these (usually wrapped with fmt.Errorf and %w). Handlers
// decide the response with errors.Is, so the service layer never has to know
// about HTTP redirects or status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// ErrUnauthorized covers a missing, unknown or expired session and bad credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInsufficientCredits means the account exists but cannot pay for the operation.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrProvider means the external image provider failed or timed out.
	ErrProvider = errors.New("provider failure")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // human-readable message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Unauthorized returns an AppError for a failed authentication.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// InsufficientCredits reports that a debit of amount could not be covered.
func InsufficientCredits(userID string, amount int64) *AppError {
	return &AppError{
		Err:     ErrInsufficientCredits,
		Message: fmt.Sprintf("user %s cannot cover %d credits", userID, amount),
	}
}

// Provider wraps a failure from the external image provider. The cause is kept
// in the message for logs; it is never sent to clients.
func Provider(cause error) *AppError {
	return &AppError{
		Err:     ErrProvider,
		Message: fmt.Sprintf("image provider: %v", cause),
	}
}
