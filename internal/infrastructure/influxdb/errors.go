package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when telemetry is switched off in
	// config. Callers treat it as "run without telemetry", not a failure.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	// ErrConnectionFailed wraps the ping error when the server cannot be
	// reached at startup.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by Write and HealthCheck once the client
	// has been closed.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps batch errors handed to the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: batch write failed")
)
