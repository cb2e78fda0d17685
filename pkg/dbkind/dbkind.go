package dbkind

import "strings"

// Kind is the canonical identifier for a storage backend supported by sqlevel.
// Use these constants to look up capability information.
type Kind string

const (
	SQLite     Kind = "sqlite"
	PostgreSQL Kind = "postgres"
	MySQL      Kind = "mysql"
	// File is the native ordered-KV backend. It bypasses the SQL adapter
	// entirely and stores data in an embedded LSM tree.
	File Kind = "file"
)

// Capability describes what a backend supports so the shared storage layer
// can treat all backends uniformly.
type Capability struct {
	// Human-friendly product name, e.g. "PostgreSQL".
	Name string `json:"name"`

	// Canonical ID used across the codebase (see Kind constants).
	ID Kind `json:"id"`

	// Whether the backend speaks SQL at all. The native file backend does not.
	SQL bool `json:"sql"`

	// Whether a write batch can be applied inside a dedicated transaction.
	// SQLite shares one connection for every logical store on a file and
	// cannot safely nest transactions on it, so batches are applied as
	// sequential statements instead.
	TransactionalBatch bool `json:"transactionalBatch"`

	// Whether the engine serializes writers on a single handle. Backends
	// with this set get exactly one pooled connection per endpoint.
	SingleWriter bool `json:"singleWriter"`

	// Common aliases (URI schemes, env labels) that map to this backend.
	Aliases []string `json:"aliases,omitempty"`
}

// All is a registry of capabilities keyed by the canonical backend kind.
var All = map[Kind]Capability{
	SQLite: {
		Name:               "SQLite",
		ID:                 SQLite,
		SQL:                true,
		TransactionalBatch: false,
		SingleWriter:       true,
		Aliases:            []string{"sqlite3"},
	},
	PostgreSQL: {
		Name:               "PostgreSQL",
		ID:                 PostgreSQL,
		SQL:                true,
		TransactionalBatch: true,
		SingleWriter:       false,
		Aliases:            []string{"postgresql", "pgsql"},
	},
	MySQL: {
		Name:               "MySQL",
		ID:                 MySQL,
		SQL:                true,
		TransactionalBatch: true,
		SingleWriter:       false,
		Aliases:            []string{"mariadb"},
	},
	File: {
		Name:               "Pebble",
		ID:                 File,
		SQL:                false,
		TransactionalBatch: true,
		SingleWriter:       true,
		Aliases:            []string{"pebble"},
	},
}

// MustGet returns the capability for a kind and panics if it is unknown.
// Intended for the closed set of Kind constants above.
func MustGet(id Kind) Capability {
	cap, ok := All[id]
	if !ok {
		panic("dbkind: unknown backend kind: " + string(id))
	}
	return cap
}

// ParseID resolves a backend name or alias to its canonical kind.
func ParseID(name string) (Kind, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if _, ok := All[Kind(n)]; ok {
		return Kind(n), true
	}
	for id, cap := range All {
		for _, alias := range cap.Aliases {
			if alias == n {
				return id, true
			}
		}
	}
	return "", false
}
