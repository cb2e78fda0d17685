package database

import (
	"bytes"
	"context"

	"github.com/fedkv/sqlevel/internal/database/dbconn"
	"github.com/fedkv/sqlevel/pkg/kv"
	"github.com/fedkv/sqlevel/pkg/logger"
)

// rangeIterator streams an ordered key range from a SQL table. Bounds are
// normalized once at construction into a single low/high pair; Seek narrows
// the range and restarts the underlying query with the remaining limit.
type rangeIterator struct {
	conn    dbconn.Conn
	table   dbconn.Table
	logger  *logger.Logger
	metrics *Metrics

	lo, hi       []byte
	loInc, hiInc bool
	reverse      bool
	limit        int
	yielded      int

	rows   dbconn.Rows
	key    []byte
	value  []byte
	closed bool

	// release drops the connection reference pinned for this iterator's
	// lifetime. Nil when the iterator does not own a reference.
	release func()
}

var _ kv.Iterator = (*rangeIterator)(nil)

func newRangeIterator(conn dbconn.Conn, table dbconn.Table, opts kv.IterOptions, l *logger.Logger, m *Metrics) *rangeIterator {
	it := &rangeIterator{
		conn:    conn,
		table:   table,
		logger:  l,
		metrics: m,
		reverse: opts.Reverse,
		limit:   opts.Limit,
	}
	if opts.GTE != nil {
		it.lo, it.loInc = opts.GTE, true
	}
	// An exclusive bound at or above the inclusive one is the tighter of
	// the two.
	if opts.GT != nil && (it.lo == nil || bytes.Compare(opts.GT, it.lo) >= 0) {
		it.lo, it.loInc = opts.GT, false
	}
	if opts.LTE != nil {
		it.hi, it.hiInc = opts.LTE, true
	}
	if opts.LT != nil && (it.hi == nil || bytes.Compare(opts.LT, it.hi) <= 0) {
		it.hi, it.hiInc = opts.LT, false
	}
	return it
}

func (it *rangeIterator) open() bool {
	remaining := -1
	if it.limit > 0 {
		remaining = it.limit - it.yielded
		if remaining <= 0 {
			return false
		}
	}
	bounds := dbconn.Bounds{}
	if it.lo != nil {
		if it.loInc {
			bounds.GTE = it.lo
		} else {
			bounds.GT = it.lo
		}
	}
	if it.hi != nil {
		if it.hiInc {
			bounds.LTE = it.hi
		} else {
			bounds.LT = it.hi
		}
	}
	rows, err := it.conn.Query(context.Background(), it.table, bounds, it.reverse, remaining)
	if err != nil {
		it.fail(err)
		return false
	}
	it.rows = rows
	return true
}

// Next advances to the next entry. A mid-stream error ends iteration early
// rather than surfacing it; the error is logged and counted.
func (it *rangeIterator) Next() bool {
	if it.closed {
		return false
	}
	if it.limit > 0 && it.yielded >= it.limit {
		return false
	}
	if it.rows == nil && !it.open() {
		return false
	}
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			it.fail(err)
		}
		return false
	}
	it.key = it.rows.Key()
	it.value = it.rows.Value()
	it.yielded++
	return true
}

func (it *rangeIterator) Key() []byte   { return it.key }
func (it *rangeIterator) Value() []byte { return it.value }

// Seek narrows the iteration window to start at target and restarts the
// stream. It only ever moves forward in iteration order; a target at or
// behind the last yielded key leaves the stream untouched so an already
// yielded key is never re-admitted.
func (it *rangeIterator) Seek(target []byte) {
	if it.closed {
		return
	}
	if it.reverse {
		if it.yielded > 0 {
			if bytes.Compare(target, it.key) >= 0 {
				return
			}
		} else if it.hi != nil && bytes.Compare(target, it.hi) >= 0 {
			return
		}
		it.hi, it.hiInc = target, true
	} else {
		if it.yielded > 0 {
			if bytes.Compare(target, it.key) <= 0 {
				return
			}
		} else if it.lo != nil && bytes.Compare(target, it.lo) <= 0 {
			return
		}
		it.lo, it.loInc = target, true
	}
	if it.rows != nil {
		if err := it.rows.Close(); err != nil {
			it.logger.Warnf("iterator close during seek on %s: %v", it.table.Name, err)
		}
		it.rows = nil
	}
}

func (it *rangeIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	var err error
	if it.rows != nil {
		err = it.rows.Close()
		it.rows = nil
	}
	it.releaseConn()
	return err
}

func (it *rangeIterator) fail(err error) {
	it.metrics.IncStreamErrors()
	it.logger.Errorf("iterator stream on %s: %v", it.table.Name, err)
	if it.rows != nil {
		_ = it.rows.Close()
		it.rows = nil
	}
	it.closed = true
	it.releaseConn()
}

func (it *rangeIterator) releaseConn() {
	if it.release != nil {
		it.release()
		it.release = nil
	}
}
