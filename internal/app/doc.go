// Package app is the device application: it brings up storage, the
// platform and the device-management client, registers the device's
// resources, and runs the control loop that mirrors the button and the
// temperature sensor into those resources.
//
// # Startup
//
// Startup is strictly ordered and any failure aborts Run:
//
//  1. settle delay (platform.startup_delay)
//  2. storage: database, migrations, secure store
//  3. platform: LED, button, temperature sensor, build info
//  4. bootstrap: device identity from the secure store
//  5. resource registration
//  6. register-and-connect
//
// # Threading
//
// The loop goroutine is the only goroutine that runs resource callbacks.
// Inbound requests and blink completions are posted to its event queue and
// run while the loop waits between polls. The loop ends at the first
// cadence boundary after the client is closed (unregister or factory
// reset) or when the context is cancelled.
package app
