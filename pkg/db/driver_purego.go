//go:build purego_sqlite

// Pure Go driver, for builds without a C toolchain:
//
//	CGO_ENABLED=0 go build -tags purego_sqlite ./cmd/wordorigin
package db

import (
	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"
	driverType = "purego"
)
