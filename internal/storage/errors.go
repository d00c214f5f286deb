package storage

import (
	"errors"
	"fmt"
)

// Status is a storage-layer result code.
type Status int

// Status codes.
const (
	StatusSuccess Status = iota
	StatusInvalidParameter
	StatusItemNotFound
	StatusItemExists
	StatusStorageError
	StatusNotInitialized
)

var statusNames = map[Status]string{
	StatusSuccess:          "success",
	StatusInvalidParameter: "invalid_parameter",
	StatusItemNotFound:     "item_not_found",
	StatusItemExists:       "item_exists",
	StatusStorageError:     "storage_error",
	StatusNotInitialized:   "not_initialized",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// StatusError is returned by every failing store operation.
type StatusError struct {
	Op   string
	Code Status
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("storage: %s: %s", e.Op, e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Is matches another *StatusError with the same code, so callers can write
// errors.Is(err, storage.ErrNotFound).
func (e *StatusError) Is(target error) bool {
	var t *StatusError
	if errors.As(target, &t) {
		return t.Op == "" && t.Code == e.Code
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrNotFound       = &StatusError{Code: StatusItemNotFound}
	ErrExists         = &StatusError{Code: StatusItemExists}
	ErrInvalid        = &StatusError{Code: StatusInvalidParameter}
	ErrNotInitialized = &StatusError{Code: StatusNotInitialized}
)

// Code extracts the status from err. nil maps to StatusSuccess and errors
// from outside this package to StatusStorageError.
func Code(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return StatusStorageError
}

func statusErr(op string, code Status, err error) error {
	return &StatusError{Op: op, Code: code, Err: err}
}
