package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed required input, including
// unrecognized action values. Surfaced immediately to the caller, no retry.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown case or feedback id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError reports a uniqueness or concurrency conflict, such as a
// second case for the same feedback record or a stale-status transition.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// Conflictf builds a ConflictError from a format string.
func Conflictf(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// ExternalJudgeError reports that the external judgment collaborator failed,
// timed out, or returned unusable data. The resolver fails closed: it never
// substitutes a fabricated empty-but-successful result.
type ExternalJudgeError struct {
	Op  string
	Err error
}

func (e *ExternalJudgeError) Error() string {
	return fmt.Sprintf("external judge %s: %v", e.Op, e.Err)
}

func (e *ExternalJudgeError) Unwrap() error { return e.Err }

// PersistenceError reports that the store was unreachable or a write failed.
// Fatal for the in-flight request.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsExternalJudge reports whether err is an ExternalJudgeError.
func IsExternalJudge(err error) bool {
	var je *ExternalJudgeError
	return errors.As(err, &je)
}
