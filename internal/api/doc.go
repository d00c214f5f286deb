// Package api implements the local diagnostics HTTP API of the device.
//
// It is disabled by default and meant for bench work and field service:
//   - GET  /api/v1/health          storage and registration status
//   - GET  /api/v1/metrics         runtime, resource and database statistics
//   - GET  /api/v1/device          identity and build information
//   - GET  /api/v1/resources       every resource with its current value
//   - GET  /api/v1/resources/{object}/{instance}/{resource}
//   - GET  /api/v1/deliveries      recent delivery-status reports (?limit=N)
//   - POST /api/v1/button/press    simulates a press of the user button
//
// The API only reads resources. Writes and executes go through device
// management so that every callback runs on the application loop.
package api
