// Package postgres implements the storage connection contract for
// PostgreSQL servers via pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fedkv/sqlevel/pkg/dbkind"
)

// Conn is one pooled connection to a PostgreSQL server.
type Conn struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool for the given postgresql:// URL.
func Connect(ctx context.Context, connString string) (*Conn, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	return &Conn{pool: pool}, nil
}

// Kind returns the backend kind.
func (c *Conn) Kind() dbkind.Kind { return dbkind.PostgreSQL }

// Ping verifies the pool is alive.
func (c *Conn) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

// Close closes the connection pool.
func (c *Conn) Close() error {
	c.pool.Close()
	return nil
}
