package platform

import "errors"

var (
	// ErrChecksum marks a transient sensor read whose frame failed its
	// integrity check. Callers skip the sample and retry on the next poll.
	ErrChecksum = errors.New("platform: sensor checksum mismatch")

	// ErrNotInitialized is returned when peripherals are used before Init.
	ErrNotInitialized = errors.New("platform: not initialized")

	// ErrUnknownDriver is returned for an unsupported backend name.
	ErrUnknownDriver = errors.New("platform: unknown driver")
)
