// Package migrations embeds the SQL schema for the device's local store.
//
// The files are compiled into the binary so a freshly flashed device can
// create its store without any files on disk.
package migrations

import "embed"

// FS holds every *.sql file in this directory at its root.
//
//go:embed *.sql
var FS embed.FS
