package resource

import "errors"

// Domain-specific errors for resource operations.
var (
	// ErrResourceExists is returned when a path is registered twice.
	ErrResourceExists = errors.New("resource: path already registered")

	// ErrNotFound is returned when no resource exists at a path.
	ErrNotFound = errors.New("resource: not found")

	// ErrInvalidPath is returned when a path string is not "o/i/r".
	ErrInvalidPath = errors.New("resource: invalid path")

	// ErrInvalidSpec is returned when a resource definition is incomplete.
	ErrInvalidSpec = errors.New("resource: invalid definition")

	// ErrTypeMismatch is returned when a value does not match the resource type.
	ErrTypeMismatch = errors.New("resource: value type mismatch")

	// ErrOperationNotAllowed is returned when the access mode forbids an operation.
	ErrOperationNotAllowed = errors.New("resource: operation not allowed")

	// ErrNoHandler is returned when an execute request reaches a resource
	// without an execute callback.
	ErrNoHandler = errors.New("resource: no execute handler")

	// ErrAlreadyResolved is returned when a pending response is resolved twice.
	ErrAlreadyResolved = errors.New("resource: pending response already resolved")
)
