package common

import (
	"fmt"
)

// NotFoundError is returned when the required value is not found.
type NotFoundError struct {
	Message string
}

func (nf NotFoundError) Error() string {
	return nf.Message
}

// NewNotFoundError creates a new instance of NotFoundError with the given message.
func NewNotFoundError(message string) NotFoundError {
	return NotFoundError{
		Message: message,
	}
}

// UnknownError is returned when an unknown error happens.
type UnknownError struct {
	Message string
}

func (ue UnknownError) Error() string {
	return ue.Message
}

// NewUnknownError creates a new instance of UnknownError with the given message.
func NewUnknownError(message string) UnknownError {
	return UnknownError{
		Message: message,
	}
}

// LockTimeoutError is returned when the database lock couldn't be acquired in time.
type LockTimeoutError struct {
	Message string
	Owner   string // owner holding the lock when we gave up
}

func (lte LockTimeoutError) Error() string {
	if lte.Owner == "" {
		return lte.Message
	}
	return fmt.Sprintf("%s (held by %s)", lte.Message, lte.Owner)
}

// NewLockTimeoutError creates a new instance of LockTimeoutError with the given message.
func NewLockTimeoutError(message, owner string) LockTimeoutError {
	return LockTimeoutError{
		Message: message,
		Owner:   owner,
	}
}

// EvaluatorError is returned when the validating evaluator faults on a row.
type EvaluatorError struct {
	Message string
}

func (ee EvaluatorError) Error() string {
	return ee.Message
}

// NewEvaluatorError creates a new instance of EvaluatorError with the given message.
func NewEvaluatorError(format string, args ...interface{}) EvaluatorError {
	return EvaluatorError{
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidQueryError is returned for malformed or incomplete query arguments.
type InvalidQueryError struct {
	Message string
}

func (iqe InvalidQueryError) Error() string {
	return iqe.Message
}

// NewInvalidQueryError creates a new instance of InvalidQueryError with the given message.
func NewInvalidQueryError(format string, args ...interface{}) InvalidQueryError {
	return InvalidQueryError{
		Message: fmt.Sprintf(format, args...),
	}
}
