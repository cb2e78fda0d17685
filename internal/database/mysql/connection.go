// Package mysql implements the storage connection contract for MySQL
// servers.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/fedkv/sqlevel/pkg/dbkind"
)

// Conn is one pooled connection to a MySQL server.
type Conn struct {
	db *sql.DB
}

// Connect establishes a pooled connection to the MySQL server named by a
// mysql:// URL. The driver wants its own DSN syntax, so the URL is
// translated; query parameters pass through unchanged.
func Connect(ctx context.Context, rawURL string) (*Conn, error) {
	dsn, err := dsnFromURL(rawURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &Conn{db: db}, nil
}

func dsnFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid mysql endpoint %q: %w", rawURL, err)
	}

	user := u.User.Username()
	pass, _ := u.User.Password()
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "3306"
	}
	dbName := strings.TrimPrefix(u.Path, "/")

	var sb strings.Builder
	if user != "" {
		sb.WriteString(user)
		if pass != "" {
			sb.WriteString(":" + pass)
		}
		sb.WriteString("@")
	}
	fmt.Fprintf(&sb, "tcp(%s:%s)/%s", host, port, dbName)
	if u.RawQuery != "" {
		sb.WriteString("?" + u.RawQuery)
	}
	return sb.String(), nil
}

// Kind returns the backend kind.
func (c *Conn) Kind() dbkind.Kind { return dbkind.MySQL }

// Ping verifies the connection is alive.
func (c *Conn) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

// Close closes the connection pool.
func (c *Conn) Close() error { return c.db.Close() }
