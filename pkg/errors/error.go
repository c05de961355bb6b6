// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid parameters and configuration, empty inputs
//   - Data/Resource errors (200-299): Missing files or fields, schema and storage failures
//   - Backtest errors (600-699): Run directory and backtest configuration errors
//   - Market data errors (700-799): Provider transport, availability and parsing errors
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeDataNotFound, "data not found for symbol %s", symbol)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeTransportError, "request to stooq failed", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeDataNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// HasCodeInChain reports whether any *Error in err's chain carries the given code.
// Unlike HasCode it also inspects wrapped causes.
func HasCodeInChain(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}

		if e.Code == code {
			return true
		}

		err = e.Cause
	}

	return false
}

// Attempt is one provider that failed to serve an instrument.
type Attempt struct {
	Provider string
	Symbol   string
	Err      error
}

// AttemptsError collects the failed provider attempts for one instrument in the order they
// were made. It unwraps to the error of the last attempt.
type AttemptsError struct {
	Instrument string
	Attempts   []Attempt
}

// Add records a failed attempt.
func (e *AttemptsError) Add(provider, symbol string, err error) {
	e.Attempts = append(e.Attempts, Attempt{Provider: provider, Symbol: symbol, Err: err})
}

// Empty reports whether no attempt was recorded.
func (e *AttemptsError) Empty() bool {
	return len(e.Attempts) == 0
}

// Error implements the error interface.
func (e *AttemptsError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s(%s): %v", a.Provider, a.Symbol, a.Err)
	}

	return fmt.Sprintf("%s: %s", e.Instrument, strings.Join(parts, "; "))
}

// Unwrap returns the error of the last attempt.
func (e *AttemptsError) Unwrap() error {
	if e.Empty() {
		return nil
	}

	return e.Attempts[len(e.Attempts)-1].Err
}

// AsAttempts finds an *AttemptsError in err's chain.
func AsAttempts(err error) (*AttemptsError, bool) {
	var attempts *AttemptsError
	if errors.As(err, &attempts) {
		return attempts, true
	}

	return nil, false
}
