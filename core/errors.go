package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Input errors, shown inline to the user
	ErrValidation       = errors.New("please fill in all fields")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidEmoji     = errors.New("invalid emoji")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidPayment   = errors.New("invalid payment method")
	ErrInvalidQuantity  = errors.New("invalid quantity")

	// Lookup errors
	ErrProductNotFound  = errors.New("product not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrDuplicateID      = errors.New("duplicate product id")

	// Session errors
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrAlreadyLoggedIn = errors.New("already logged in")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrTimeout            = errors.New("operation timeout")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

// MarketError provides structured error information with context
// It implements the error interface and supports error wrapping
type MarketError struct {
	Op      string // Operation that failed (e.g., "catalog.Update")
	Kind    string // Error kind (e.g., "catalog", "cart", "session", "storage", "config")
	ID      string // Optional ID of the entity involved
	Field   string // Optional form field that failed validation
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *MarketError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		if e.Field != "" {
			return fmt.Sprintf("%s (%s): %v", e.Op, e.Field, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *MarketError) Unwrap() error {
	return e.Err
}

// NewMarketError creates a new MarketError
func NewMarketError(op, kind string, err error) *MarketError {
	return &MarketError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// NewValidationError reports a missing or malformed form field.
func NewValidationError(op, field string, err error) *MarketError {
	return &MarketError{
		Op:    op,
		Kind:  "validation",
		Field: field,
		Err:   err,
	}
}

// UserMessage returns the inline message for an input error, falling back
// to the full error text for anything else.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match"
	case errors.Is(err, ErrValidation):
		return "Please fill in all fields"
	}
	var me *MarketError
	if errors.As(err, &me) && me.Err != nil && IsValidation(err) {
		return me.Err.Error()
	}
	return err.Error()
}

// IsRetryable checks if an error is retryable
// Retryable errors are typically transient storage or network issues
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed)
}

// IsUnavailable reports whether the storage backend could not serve the
// request, including when the circuit breaker refused to try.
func IsUnavailable(err error) bool {
	return IsRetryable(err) ||
		errors.Is(err, ErrMaxRetriesExceeded) ||
		errors.Is(err, ErrCircuitBreakerOpen)
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCartItemNotFound)
}

// IsValidation checks if an error is a user-correctable input error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPasswordMismatch) ||
		errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrInvalidEmoji) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrInvalidPayment) ||
		errors.Is(err, ErrInvalidQuantity)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// IsStateError checks if an error is related to invalid session transitions
func IsStateError(err error) bool {
	return errors.Is(err, ErrNotLoggedIn) ||
		errors.Is(err, ErrAlreadyLoggedIn)
}
