// Package errors defines the coded errors shared by the solver, the problem
// codecs, the CLI and the HTTP API.
//
// Every error carries a [Code] so callers can branch without string
// matching. Codes are grouped by prefix: INVALID_ for rejected input,
// NOT_FOUND_ for unknown files and variables, SOLVE_ for solver state and
// numeric failures, INTERNAL_ for broken invariants.
//
//	if _, err := s.AddVariable(nil, 0, w, 1); errors.Is(err, errors.ErrCodeInvalidWeight) {
//	    return fmt.Errorf("variable %d: %w", id, err)
//	}
//
//	err := errors.Wrap(errors.ErrCodeInvalidFormat, cause, "decode %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	ErrCodeInvalidInput      Code = "INVALID_INPUT"
	ErrCodeInvalidFormat     Code = "INVALID_FORMAT"
	ErrCodeInvalidPath       Code = "INVALID_PATH"
	ErrCodeInvalidWeight     Code = "INVALID_WEIGHT"
	ErrCodeInvalidScale      Code = "INVALID_SCALE"
	ErrCodeNonFinite         Code = "INVALID_NON_FINITE"
	ErrCodeSelfConstraint    Code = "INVALID_SELF_CONSTRAINT"
	ErrCodeInvalidParameters Code = "INVALID_PARAMETERS"
	ErrCodeDuplicateVariable Code = "INVALID_DUPLICATE_VARIABLE"

	ErrCodeFileNotFound    Code = "NOT_FOUND_FILE"
	ErrCodeUnknownVariable Code = "NOT_FOUND_VARIABLE"

	// Registration after the first Solve.
	ErrCodeSolveStarted Code = "SOLVE_STARTED"
	// A reference-position sum became infinite.
	ErrCodeOverflow Code = "SOLVE_OVERFLOW"

	// Verification failures under Advanced.Verify.
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a coded error. Cause may be nil.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New returns an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap returns an Error with cause attached.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether the first *Error in err's chain has code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage strips the code prefix for display; other errors are
// returned as err.Error().
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsConfiguration reports whether err was caused by invalid caller input
// (as opposed to a numeric failure or an internal error).
func IsConfiguration(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidFormat, ErrCodeInvalidPath,
		ErrCodeInvalidWeight, ErrCodeInvalidScale, ErrCodeNonFinite,
		ErrCodeSelfConstraint, ErrCodeInvalidParameters, ErrCodeDuplicateVariable,
		ErrCodeUnknownVariable, ErrCodeSolveStarted:
		return true
	}
	return false
}
