// Package db persists batch runs in SQLite: the pending word list of each
// run, its word counts and the results found so far. A run interrupted by
// cancellation or an access block is resumed from what is stored here.
//
// The driver is chosen at build time: mattn/go-sqlite3 by default,
// modernc.org/sqlite with the purego_sqlite tag.
package db

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// DriverName returns the database/sql driver name compiled into this build.
func DriverName() string { return driverName }

// DriverType returns "cgo" or "purego".
func DriverType() string { return driverType }

// Open opens (creating if needed) the database at path and applies the schema.
// SQLite allows a single writer, so the pool is limited to one connection.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := InitDB(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return conn, nil
}

// InitDB applies the embedded schema. It is idempotent.
func InitDB(db *sql.DB) error {
	for _, s := range strings.Split(schemaSQL, ";") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
