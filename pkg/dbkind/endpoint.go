package dbkind

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedScheme is returned when an endpoint URI names a backend
// outside the closed set of supported kinds. It is fatal at creation time.
var ErrUnsupportedScheme = errors.New("unsupported endpoint scheme")

// UnsupportedSchemeError carries the offending scheme.
type UnsupportedSchemeError struct {
	Scheme string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported endpoint scheme %q (supported: sqlite, postgresql, mysql, file)", e.Scheme)
}

func (e *UnsupportedSchemeError) Is(target error) bool {
	return target == ErrUnsupportedScheme
}

// Endpoint is the parsed form of a storage endpoint URI. The Kind field is a
// closed tagged variant: every consumer switches exhaustively over it, so an
// unhandled scheme is caught here rather than deep inside a backend.
//
// Supported forms:
//
//	sqlite:<path>        local SQLite database file
//	postgresql://...     PostgreSQL server (also postgres://)
//	mysql://...          MySQL server
//	file:<path>          native ordered-KV store (Pebble directory)
type Endpoint struct {
	// Kind selects the backend.
	Kind Kind

	// Raw is the endpoint exactly as given. Two endpoints are the same
	// physical target iff their Raw strings are equal; it is the identity
	// used for connection sharing and backend caching.
	Raw string

	// Path is the filesystem location for sqlite and file endpoints.
	Path string

	// URL is the full connection URL for postgres and mysql endpoints.
	URL string
}

// ParseEndpoint parses an endpoint URI into its tagged variant form.
func ParseEndpoint(raw string) (Endpoint, error) {
	s := strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(s, ":")
	if !ok || scheme == "" || rest == "" {
		return Endpoint{}, &UnsupportedSchemeError{Scheme: s}
	}

	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3":
		return Endpoint{Kind: SQLite, Raw: s, Path: trimSlashes(rest)}, nil
	case "file":
		return Endpoint{Kind: File, Raw: s, Path: trimSlashes(rest)}, nil
	case "postgres", "postgresql":
		return Endpoint{Kind: PostgreSQL, Raw: s, URL: s}, nil
	case "mysql":
		return Endpoint{Kind: MySQL, Raw: s, URL: s}, nil
	default:
		return Endpoint{}, &UnsupportedSchemeError{Scheme: scheme}
	}
}

// trimSlashes strips the optional authority slashes of URI-style paths, so
// "sqlite://tmp/db.sqlite" and "sqlite:tmp/db.sqlite" name the same file.
// An absolute path keeps its leading slash: "sqlite:///var/db" -> "/var/db".
func trimSlashes(p string) string {
	if strings.HasPrefix(p, "//") {
		return p[2:]
	}
	return p
}
