package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fedkv/sqlevel/internal/database/dbconn"
	"github.com/fedkv/sqlevel/pkg/kv"
)

// SQLSTATE codes raised when two opens race table creation.
const (
	codeDuplicateTable  = "42P07"
	codeUniqueViolation = "23505"
)

const insertChunk = 400

func quoteIdent(name string) string {
	return `"` + name + `"`
}

// EnsureTable creates the backing table if it does not exist. Text keys use
// the "C" collation so ORDER BY matches byte comparison regardless of the
// server locale. A concurrent "already exists" race is not an error.
func (c *Conn) EnsureTable(ctx context.Context, t dbconn.Table) error {
	var ddl string
	if t.Encoding == kv.EncodingBinary {
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s ("key" BYTEA NOT NULL PRIMARY KEY, "value" BYTEA NOT NULL)`,
			quoteIdent(t.Name))
	} else {
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s ("key" TEXT COLLATE "C" NOT NULL PRIMARY KEY, "value" TEXT NOT NULL)`,
			quoteIdent(t.Name))
	}
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == codeDuplicateTable || pgErr.Code == codeUniqueViolation) {
			return nil
		}
		return err
	}
	return nil
}

// Get returns the value stored under key.
func (c *Conn) Get(ctx context.Context, t dbconn.Table, key []byte) ([]byte, bool, error) {
	q := fmt.Sprintf(`SELECT "value" FROM %s WHERE "key" = $1`, quoteIdent(t.Name))
	row := c.pool.QueryRow(ctx, q, t.Arg(key))

	if t.Encoding == kv.EncodingBinary {
		var v []byte
		if err := row.Scan(&v); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return v, true, nil
	}

	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(v), true, nil
}

// GetMany returns the pairs found for keys, batched through one ANY query.
func (c *Conn) GetMany(ctx context.Context, t dbconn.Table, keys [][]byte) ([]dbconn.KV, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT "key", "value" FROM %s WHERE "key" = ANY($1)`, quoteIdent(t.Name))
	rows, err := c.pool.Query(ctx, q, keyArray(t, keys))
	if err != nil {
		return nil, err
	}
	return drainRows(&pgRows{rows: rows, enc: t.Encoding})
}

// Put upserts one pair.
func (c *Conn) Put(ctx context.Context, t dbconn.Table, key, value []byte) error {
	q := fmt.Sprintf(`INSERT INTO %s ("key", "value") VALUES ($1, $2) ON CONFLICT ("key") DO UPDATE SET "value" = EXCLUDED."value"`,
		quoteIdent(t.Name))
	_, err := c.pool.Exec(ctx, q, t.Arg(key), t.Arg(value))
	return err
}

// Delete removes one key.
func (c *Conn) Delete(ctx context.Context, t dbconn.Table, key []byte) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE "key" = $1`, quoteIdent(t.Name))
	_, err := c.pool.Exec(ctx, q, t.Arg(key))
	return err
}

// Clear removes every row of the table.
func (c *Conn) Clear(ctx context.Context, t dbconn.Table) error {
	q := fmt.Sprintf(`DELETE FROM %s`, quoteIdent(t.Name))
	_, err := c.pool.Exec(ctx, q)
	return err
}

// ApplyBatch applies a coalesced flush inside one transaction.
func (c *Conn) ApplyBatch(ctx context.Context, writes []dbconn.TableWrite) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return err
	}
	for _, w := range writes {
		delQ := fmt.Sprintf(`DELETE FROM %s WHERE "key" = ANY($1)`, quoteIdent(w.Table.Name))
		if _, err := tx.Exec(ctx, delQ, keyArray(w.Table, w.Touched)); err != nil {
			tx.Rollback(ctx)
			return err
		}
		if err := insertPairsTx(ctx, tx, w.Table, w.Puts); err != nil {
			tx.Rollback(ctx)
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertPairsTx(ctx context.Context, tx pgx.Tx, t dbconn.Table, pairs []dbconn.KV) error {
	for start := 0; start < len(pairs); start += insertChunk {
		chunk := pairs[start:min(start+insertChunk, len(pairs))]
		var sb strings.Builder
		fmt.Fprintf(&sb, `INSERT INTO %s ("key", "value") VALUES `, quoteIdent(t.Name))
		args := make([]interface{}, 0, len(chunk)*2)
		for i, p := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "($%d, $%d)", len(args)+1, len(args)+2)
			args = append(args, t.Arg(p.Key), t.Arg(p.Value))
		}
		sb.WriteString(` ON CONFLICT ("key") DO UPDATE SET "value" = EXCLUDED."value"`)
		if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
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
		args = append(args, t.Arg(key))
		conds = append(conds, fmt.Sprintf(`"key" %s $%d`, op, len(args)))
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

	rows, err := c.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return &pgRows{rows: rows, enc: t.Encoding}, nil
}

// keyArray builds the array argument for "key" = ANY($1), typed to match
// the key column.
func keyArray(t dbconn.Table, keys [][]byte) interface{} {
	if t.Encoding == kv.EncodingBinary {
		return keys
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

func drainRows(rows dbconn.Rows) ([]dbconn.KV, error) {
	defer rows.Close()
	var out []dbconn.KV
	for rows.Next() {
		out = append(out, dbconn.KV{Key: rows.Key(), Value: rows.Value()})
	}
	return out, rows.Err()
}

// pgRows adapts pgx.Rows to the shared row stream.
type pgRows struct {
	rows pgx.Rows
	enc  kv.Encoding

	key   []byte
	value []byte
	err   error
}

func (r *pgRows) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}
	if r.enc == kv.EncodingBinary {
		var k, v []byte
		if err := r.rows.Scan(&k, &v); err != nil {
			r.err = err
			return false
		}
		r.key, r.value = k, v
	} else {
		var k, v string
		if err := r.rows.Scan(&k, &v); err != nil {
			r.err = err
			return false
		}
		r.key, r.value = []byte(k), []byte(v)
	}
	return true
}

func (r *pgRows) Key() []byte { return r.key }

func (r *pgRows) Value() []byte { return r.value }

func (r *pgRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

func (r *pgRows) Close() error {
	r.rows.Close()
	return nil
}
