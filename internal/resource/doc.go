// Package resource implements the device's registry of remotely addressable
// resources.
//
// A resource is identified by an object/instance/resource triple rendered
// as "3303/0/5700". Each one has a fixed value type (integer or text), a set
// of allowed operations (GET, PUT, POST) and optional typed callbacks:
//
//   - WriteFunc runs after a remote PUT has stored a new value
//   - ExecuteFunc runs for a remote POST and may defer its response
//   - StatusFunc observes delivery outcomes of messages about the resource
//
// Resources are created once through Registry.Create and owned by the
// Registry. Callers keep the returned *Resource as a handle.
//
// Deferred responses are modelled with Pending. An execute handler calls
// ExecuteRequest.Defer to obtain the token, hands it to whatever finishes
// the work, and that path calls Pending.Resolve exactly once.
//
// Thread Safety:
//   - Registry and Resource methods are safe for concurrent use.
//   - Callbacks are invoked on the caller's goroutine; the device-management
//     client routes them onto the application loop.
package resource
