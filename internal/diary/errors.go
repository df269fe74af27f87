package diary

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("video not found")
	ErrDuplicateID    = errors.New("duplicate video id")
	ErrInvalidInput   = errors.New("invalid input")
	ErrPickerCanceled = errors.New("media picker canceled")
)

// PersistenceError wraps any failure of the underlying store. Callers must
// not retry the same write; retry means re-running the whole operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
