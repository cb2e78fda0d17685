// Package sqlite implements the storage connection contract for SQLite
// database files.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fedkv/sqlevel/pkg/dbkind"
)

// Conn is one shared connection to a SQLite file. SQLite serializes access
// to a single file, so the pool is capped at one connection; opening more
// handles only causes lock contention between the logical stores sharing
// the file.
type Conn struct {
	db   *sql.DB
	path string
}

// Connect opens (creating if necessary) the SQLite database at path,
// including any missing parent directories.
func Connect(ctx context.Context, path string) (*Conn, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Single writer to avoid SQLITE_BUSY between sharing stores
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return &Conn{db: db, path: path}, nil
}

// Kind returns the backend kind.
func (c *Conn) Kind() dbkind.Kind { return dbkind.SQLite }

// Ping verifies the connection is alive.
func (c *Conn) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

// Close closes the database file.
func (c *Conn) Close() error { return c.db.Close() }
