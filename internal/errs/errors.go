package errs

import (
	"errors"
	"fmt"
	"time"
)

// Base error types
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTimeout      = errors.New("timeout")
	ErrUpstream     = errors.New("upstream failure")
	ErrStorage      = errors.New("storage failure")
)

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeUpstream   ErrorType = "upstream"
	ErrorTypeStorage    ErrorType = "storage"
)

// BillingError is a structured error for billing and entitlement operations.
type BillingError struct {
	Type      ErrorType
	Op        string // Operation that failed (e.g. "create_payment_intent")
	Err       error  // Underlying error
	Timestamp time.Time
	Retryable bool
}

func (e *BillingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed", e.Op)
}

func (e *BillingError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface.
func (e *BillingError) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Type == ErrorTypeValidation
	case ErrUnauthorized:
		return e.Type == ErrorTypeAuth
	case ErrUpstream:
		return e.Type == ErrorTypeUpstream
	case ErrStorage:
		return e.Type == ErrorTypeStorage
	}
	return errors.Is(e.Err, target)
}

// New creates a BillingError of the given type.
func New(errorType ErrorType, op string, err error) *BillingError {
	return &BillingError{
		Type:      errorType,
		Op:        op,
		Err:       err,
		Timestamp: time.Now(),
		Retryable: errorType == ErrorTypeUpstream || errorType == ErrorTypeStorage,
	}
}

// Validation creates a validation error from a message.
func Validation(op, msg string) *BillingError {
	return New(ErrorTypeValidation, op, errors.New(msg))
}

// Upstream wraps a payment-processor failure.
func Upstream(op string, err error) *BillingError {
	return New(ErrorTypeUpstream, op, err)
}

// Storage wraps an entitlement-store failure.
func Storage(op string, err error) *BillingError {
	return New(ErrorTypeStorage, op, err)
}

// TypeOf returns the ErrorType of err if it is (or wraps) a BillingError.
func TypeOf(err error) (ErrorType, bool) {
	var be *BillingError
	if errors.As(err, &be) {
		return be.Type, true
	}
	return "", false
}
