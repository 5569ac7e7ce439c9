package model

import (
	"errors"
	"fmt"
)

// ErrStatePoisoned is returned once a mutation panicked while holding the
// state lock. The state may be half-updated and must not be used.
var ErrStatePoisoned = errors.New("application state is poisoned")

// AppError is a failed operation as shown in the error banner.
type AppError struct {
	Operation string
	Target    string
	Err       error
}

func (e *AppError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Operation, e.Target, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError wraps err with the operation and target of cmd.
func NewAppError(cmd Command, err error) *AppError {
	return &AppError{Operation: cmd.Name(), Target: cmd.Target(), Err: err}
}
