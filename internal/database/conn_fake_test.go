package database

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/fedkv/sqlevel/internal/database/dbconn"
	"github.com/fedkv/sqlevel/pkg/dbkind"
)

// fakeConn is an in-memory dbconn.Conn recording every coalesced flush it
// receives, for tests that need to observe flush composition without a
// database engine.
type fakeConn struct {
	mu      sync.Mutex
	tables  map[string]map[string][]byte
	applied [][]dbconn.TableWrite
	fail    error
	closed  bool
}

var _ dbconn.Conn = (*fakeConn)(nil)

func newFakeConn() *fakeConn {
	return &fakeConn{tables: make(map[string]map[string][]byte)}
}

func (c *fakeConn) table(name string) map[string][]byte {
	t, ok := c.tables[name]
	if !ok {
		t = make(map[string][]byte)
		c.tables[name] = t
	}
	return t
}

// failNext makes the next ApplyBatch return err.
func (c *fakeConn) failNext(err error) {
	c.mu.Lock()
	c.fail = err
	c.mu.Unlock()
}

func (c *fakeConn) Kind() dbkind.Kind              { return dbkind.SQLite }
func (c *fakeConn) Ping(ctx context.Context) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) EnsureTable(ctx context.Context, t dbconn.Table) error {
	c.mu.Lock()
	c.table(t.Name)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Get(ctx context.Context, t dbconn.Table, key []byte) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.table(t.Name)[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (c *fakeConn) GetMany(ctx context.Context, t dbconn.Table, keys [][]byte) ([]dbconn.KV, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tbl := c.table(t.Name)
	var out []dbconn.KV
	for _, k := range keys {
		if v, ok := tbl[string(k)]; ok {
			out = append(out, dbconn.KV{Key: k, Value: append([]byte(nil), v...)})
		}
	}
	return out, nil
}

func (c *fakeConn) Put(ctx context.Context, t dbconn.Table, key, value []byte) error {
	c.mu.Lock()
	c.table(t.Name)[string(key)] = append([]byte(nil), value...)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Delete(ctx context.Context, t dbconn.Table, key []byte) error {
	c.mu.Lock()
	delete(c.table(t.Name), string(key))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Clear(ctx context.Context, t dbconn.Table) error {
	c.mu.Lock()
	c.tables[t.Name] = make(map[string][]byte)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) ApplyBatch(ctx context.Context, writes []dbconn.TableWrite) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		err := c.fail
		c.fail = nil
		return err
	}
	c.applied = append(c.applied, writes)
	for _, w := range writes {
		tbl := c.table(w.Table.Name)
		for _, k := range w.Touched {
			delete(tbl, string(k))
		}
		for _, p := range w.Puts {
			tbl[string(p.Key)] = append([]byte(nil), p.Value...)
		}
	}
	return nil
}

func (c *fakeConn) flushCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.applied)
}

func (c *fakeConn) Query(ctx context.Context, t dbconn.Table, b dbconn.Bounds, reverse bool, limit int) (dbconn.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pairs []dbconn.KV
	for k, v := range c.table(t.Name) {
		key := []byte(k)
		if b.GT != nil && bytes.Compare(key, b.GT) <= 0 {
			continue
		}
		if b.GTE != nil && bytes.Compare(key, b.GTE) < 0 {
			continue
		}
		if b.LT != nil && bytes.Compare(key, b.LT) >= 0 {
			continue
		}
		if b.LTE != nil && bytes.Compare(key, b.LTE) > 0 {
			continue
		}
		pairs = append(pairs, dbconn.KV{Key: key, Value: append([]byte(nil), v...)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if reverse {
			return bytes.Compare(pairs[i].Key, pairs[j].Key) > 0
		}
		return bytes.Compare(pairs[i].Key, pairs[j].Key) < 0
	})
	if limit >= 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return &fakeRows{pairs: pairs}, nil
}

type fakeRows struct {
	pairs []dbconn.KV
	pos   int
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.pairs) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Key() []byte   { return r.pairs[r.pos-1].Key }
func (r *fakeRows) Value() []byte { return r.pairs[r.pos-1].Value }
func (r *fakeRows) Err() error    { return nil }
func (r *fakeRows) Close() error  { return nil }
