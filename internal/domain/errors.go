package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds is returned when an order or withdrawal
	// exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidOrderParameters is returned for non-positive amounts
	// or prices. Not retriable.
	ErrInvalidOrderParameters = errors.New("invalid order parameters")

	// ErrOrderNotOpen is returned when canceling an order that is
	// already Filled or Canceled.
	ErrOrderNotOpen = errors.New("order is not open")

	// ErrOrderNotFound is returned when an order ID is unknown.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnknownPair is returned for pairs outside the tracked set.
	ErrUnknownPair = errors.New("unknown pair")

	// ErrNoPrice is returned when a Market order arrives before the
	// first tick has established a last known price.
	ErrNoPrice = errors.New("no price available")
)

// InsufficientFundsError reports which asset is short and by how much.
type InsufficientFundsError struct {
	Symbol string
	Need   decimal.Decimal
	Have   decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient %s balance: need %s, have %s", e.Symbol, e.Need, e.Have)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// ExternalServiceError represents a failure of an external collaborator
// (the AI API). Always recoverable: the caller surfaces a visible
// message, never a crash.
type ExternalServiceError struct {
	Service   string // e.g., "gemini"
	Op        string // Operation that failed (e.g., "request", "decode")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is worth retrying
}

func (e *ExternalServiceError) Error() string {
	return e.Service + " " + e.Op + ": " + e.Err.Error()
}

func (e *ExternalServiceError) IsRetriable() bool {
	return e.Retriable
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// NewExternalServiceError creates a retriable external service error.
func NewExternalServiceError(service, op string, err error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Op: op, Err: err, Retriable: true}
}

// NewFatalExternalServiceError creates a non-retriable external service error.
func NewFatalExternalServiceError(service, op string, err error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
