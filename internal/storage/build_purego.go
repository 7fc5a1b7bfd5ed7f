//go:build !cgosqlite
// +build !cgosqlite

package storage

// This file is compiled by default, without CGO.
//
// Build command:
//   go build ./...
//
// The modernc driver is a pure-Go translation of SQLite. It needs no C
// toolchain and is the default so that cross-compilation just works.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
