package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/fedkv/sqlevel/internal/database/dbconn"
	"github.com/fedkv/sqlevel/pkg/kv"
)

// Statement chunk sizes, kept well under SQLite's bound-variable limit.
const (
	deleteChunk = 500
	insertChunk = 400
)

func quoteIdent(name string) string {
	return `"` + name + `"`
}

// EnsureTable creates the backing table if it does not exist. A concurrent
// "already exists" race between two opens of the same table is not an error.
func (c *Conn) EnsureTable(ctx context.Context, t dbconn.Table) error {
	colType := "TEXT"
	if t.Encoding == kv.EncodingBinary {
		colType = "BLOB"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s ("key" %s NOT NULL PRIMARY KEY, "value" %s NOT NULL)`,
		quoteIdent(t.Name), colType, colType)
	if _, err := c.db.ExecContext(ctx, ddl); err != nil {
		if isAlreadyExists(err) {
			return nil
		}
		return err
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrError && strings.Contains(serr.Error(), "already exists")
	}
	return false
}

// Get returns the value stored under key.
func (c *Conn) Get(ctx context.Context, t dbconn.Table, key []byte) ([]byte, bool, error) {
	q := fmt.Sprintf(`SELECT "value" FROM %s WHERE "key" = ?`, quoteIdent(t.Name))
	row := c.db.QueryRowContext(ctx, q, t.Arg(key))

	if t.Encoding == kv.EncodingBinary {
		var v []byte
		if err := row.Scan(&v); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return v, true, nil
	}

	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(v), true, nil
}

// GetMany returns the pairs found for keys. The IN list is chunked the same
// way deleteKeys chunks, so any number of keys fits the bound-variable limit.
func (c *Conn) GetMany(ctx context.Context, t dbconn.Table, keys [][]byte) ([]dbconn.KV, error) {
	var out []dbconn.KV
	for start := 0; start < len(keys); start += deleteChunk {
		chunk := keys[start:min(start+deleteChunk, len(keys))]
		q := fmt.Sprintf(`SELECT "key", "value" FROM %s WHERE "key" IN (%s)`,
			quoteIdent(t.Name), placeholders(len(chunk)))
		args := make([]interface{}, len(chunk))
		for i, k := range chunk {
			args[i] = t.Arg(k)
		}
		rows, err := c.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		found, err := drainRows(dbconn.WrapSQLRows(rows, t.Encoding))
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

// Put upserts one pair.
func (c *Conn) Put(ctx context.Context, t dbconn.Table, key, value []byte) error {
	q := fmt.Sprintf(`INSERT INTO %s ("key", "value") VALUES (?, ?) ON CONFLICT("key") DO UPDATE SET "value" = excluded."value"`,
		quoteIdent(t.Name))
	_, err := c.db.ExecContext(ctx, q, t.Arg(key), t.Arg(value))
	return err
}

// Delete removes one key.
func (c *Conn) Delete(ctx context.Context, t dbconn.Table, key []byte) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE "key" = ?`, quoteIdent(t.Name))
	_, err := c.db.ExecContext(ctx, q, t.Arg(key))
	return err
}

// Clear removes every row of the table.
func (c *Conn) Clear(ctx context.Context, t dbconn.Table) error {
	q := fmt.Sprintf(`DELETE FROM %s`, quoteIdent(t.Name))
	_, err := c.db.ExecContext(ctx, q)
	return err
}

// ApplyBatch applies a coalesced flush. SQLite cannot safely nest a
// transaction on the single shared connection, so the statements run
// sequentially; the one-connection pool keeps them from interleaving with
// other writers.
func (c *Conn) ApplyBatch(ctx context.Context, writes []dbconn.TableWrite) error {
	for _, w := range writes {
		if err := c.deleteKeys(ctx, w.Table, w.Touched); err != nil {
			return err
		}
		if err := c.insertPairs(ctx, w.Table, w.Puts); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) deleteKeys(ctx context.Context, t dbconn.Table, keys [][]byte) error {
	for start := 0; start < len(keys); start += deleteChunk {
		chunk := keys[start:min(start+deleteChunk, len(keys))]
		q := fmt.Sprintf(`DELETE FROM %s WHERE "key" IN (%s)`, quoteIdent(t.Name), placeholders(len(chunk)))
		args := make([]interface{}, len(chunk))
		for i, k := range chunk {
			args[i] = t.Arg(k)
		}
		if _, err := c.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) insertPairs(ctx context.Context, t dbconn.Table, pairs []dbconn.KV) error {
	for start := 0; start < len(pairs); start += insertChunk {
		chunk := pairs[start:min(start+insertChunk, len(pairs))]
		var sb strings.Builder
		fmt.Fprintf(&sb, `INSERT INTO %s ("key", "value") VALUES `, quoteIdent(t.Name))
		args := make([]interface{}, 0, len(chunk)*2)
		for i, p := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?)")
			args = append(args, t.Arg(p.Key), t.Arg(p.Value))
		}
		sb.WriteString(` ON CONFLICT("key") DO UPDATE SET "value" = excluded."value"`)
		if _, err := c.db.ExecContext(ctx, sb.String(), args...); err != nil {
			return err
		}
	}
	return nil
}

// Query opens a streamed ordered range scan.
func (c *Conn) Query(ctx context.Context, t dbconn.Table, b dbconn.Bounds, reverse bool, limit int) (dbconn.Rows, error) {
	var sb strings.Builder
	var args []interface{}
	fmt.Fprintf(&sb, `SELECT "key", "value" FROM %s`, quoteIdent(t.Name))

	var conds []string
	appendBound := func(op string, key []byte) {
		conds = append(conds, fmt.Sprintf(`"key" %s ?`, op))
		args = append(args, t.Arg(key))
	}
	if b.GT != nil {
		appendBound(">", b.GT)
	}
	if b.GTE != nil {
		appendBound(">=", b.GTE)
	}
	if b.LT != nil {
		appendBound("<", b.LT)
	}
	if b.LTE != nil {
		appendBound("<=", b.LTE)
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if reverse {
		sb.WriteString(` ORDER BY "key" DESC`)
	} else {
		sb.WriteString(` ORDER BY "key" ASC`)
	}
	if limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}

	rows, err := c.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return dbconn.WrapSQLRows(rows, t.Encoding), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func drainRows(rows dbconn.Rows) ([]dbconn.KV, error) {
	defer rows.Close()
	var out []dbconn.KV
	for rows.Next() {
		out = append(out, dbconn.KV{Key: rows.Key(), Value: rows.Value()})
	}
	return out, rows.Err()
}
