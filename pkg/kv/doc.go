// Package kv defines the ordered key-value contract exposed by every sqlevel
// backend. It is the boundary consumed by upstream layers (a quad store
// engine and generic application stores); the backends behind it are SQLite,
// PostgreSQL, MySQL, or a native embedded store.
//
// Keys within a logical store are unique and totally ordered by byte
// comparison of their encoded form. Values are addressed only by exact key;
// there is no secondary indexing.
package kv
