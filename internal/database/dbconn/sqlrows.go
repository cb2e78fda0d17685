package dbconn

import (
	"database/sql"

	"github.com/fedkv/sqlevel/pkg/kv"
)

// sqlRows adapts *sql.Rows to the Rows stream for the database/sql-backed
// dialects. Rows are scanned one at a time, so large scans stay bounded.
type sqlRows struct {
	rows *sql.Rows
	enc  kv.Encoding

	key   []byte
	value []byte
	err   error
}

// WrapSQLRows wraps a two-column (key, value) result set.
func WrapSQLRows(rows *sql.Rows, enc kv.Encoding) Rows {
	return &sqlRows{rows: rows, enc: enc}
}

func (r *sqlRows) Next() bool {
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

func (r *sqlRows) Key() []byte { return r.key }

func (r *sqlRows) Value() []byte { return r.value }

func (r *sqlRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

func (r *sqlRows) Close() error { return r.rows.Close() }
