// Package blinky drives a status LED through a timed on/off pattern.
//
// A pattern is colon-separated millisecond durations, "500:200:500",
// alternating on and off starting with on. Segments that are empty, not a
// number or negative are skipped; zero is a valid duration.
//
// Start returns immediately. Phase i begins with exactly one LED toggle and
// lasts the i-th duration; after the last phase the completion callback runs
// once and the LED is left alone until the next Start.
//
// A Start while a sequence is running is rejected with ErrBusy unless the
// caller asks for a restart, in which case the running sequence is
// cancelled, its completion callback runs, and the LED is switched off
// before the new pattern begins.
package blinky
