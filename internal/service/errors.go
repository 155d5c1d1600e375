package service

import (
	"errors"
	"fmt"
)

// Governance failure kinds. Services wrap every boundary failure in one of
// these so handlers and callers can branch with errors.Is without string
// matching. Validation, not-found, authorization and conflict failures are
// detected before any mutation; execution failures are recorded inside the
// governance records instead of aborting the outer operation.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrExecution  = errors.New("execution failed")
)

// GovernanceError attaches a caller-facing message to a failure kind.
type GovernanceError struct {
	kind    error
	message string
}

func (e *GovernanceError) Error() string {
	return e.message
}

func (e *GovernanceError) Unwrap() error {
	return e.kind
}

func governanceError(kind error, format string, args ...interface{}) error {
	return &GovernanceError{kind: kind, message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...interface{}) error {
	return governanceError(ErrValidation, format, args...)
}

func notFoundError(format string, args ...interface{}) error {
	return governanceError(ErrNotFound, format, args...)
}

func forbiddenError(format string, args ...interface{}) error {
	return governanceError(ErrForbidden, format, args...)
}

func conflictError(format string, args ...interface{}) error {
	return governanceError(ErrConflict, format, args...)
}
