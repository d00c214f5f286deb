package devmgmt

import "errors"

var (
	// ErrAlreadyRegistered is returned by a second RegisterAndConnect.
	ErrAlreadyRegistered = errors.New("devmgmt: already registered")

	// ErrNotRegistered is returned when traffic is attempted before
	// RegisterAndConnect or after Close.
	ErrNotRegistered = errors.New("devmgmt: not registered")

	// ErrNoResources is returned when registering an empty registry.
	ErrNoResources = errors.New("devmgmt: no resources to register")

	// ErrInvalidRequest marks an inbound request that could not be decoded.
	ErrInvalidRequest = errors.New("devmgmt: invalid request")
)

// errQueueFull is returned by enqueue when the outbound queue has no room.
var errQueueFull = errors.New("devmgmt: notification queue full")
