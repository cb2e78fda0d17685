package database

import (
	"context"
	"sync"

	"github.com/fedkv/sqlevel/internal/database/dbconn"
	"github.com/fedkv/sqlevel/pkg/dbkind"
	"github.com/fedkv/sqlevel/pkg/kv"
	"github.com/fedkv/sqlevel/pkg/logger"
)

// sqlStore is one logical store backed by a SQL engine: a single table on a
// connection shared through the registry with every other store on the same
// endpoint.
type sqlStore struct {
	endpoint dbkind.Endpoint
	table    dbconn.Table
	registry *Registry
	logger   *logger.Logger
	metrics  *Metrics

	// derive resolves sublevels through the owning factory so repeated
	// lookups of the same derived store return the same instance. Nil when
	// the store was constructed without a factory.
	derive func(table string) (kv.Store, error)

	mu     sync.Mutex
	entry  *connEntry
	opened bool
}

var _ kv.Store = (*sqlStore)(nil)

func newSQLStore(ep dbkind.Endpoint, tableName string, o options, reg *Registry) *sqlStore {
	return &sqlStore{
		endpoint: ep,
		table:    dbconn.Table{Name: tableName, Encoding: o.encoding},
		registry: reg,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// Open acquires the shared connection and ensures the backing table exists.
// Idempotent: reopening an open store is a no-op.
func (s *sqlStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return nil
	}

	entry, err := s.registry.acquire(ctx, s.endpoint)
	if err != nil {
		return kv.NewOpenError(s.endpoint.Kind, s.endpoint.Raw, s.table.Name, err)
	}
	if err := entry.conn.EnsureTable(ctx, s.table); err != nil {
		s.registry.release(s.endpoint)
		return kv.NewOpenError(s.endpoint.Kind, s.endpoint.Raw, s.table.Name, err)
	}

	s.entry = entry
	s.opened = true
	return nil
}

// Close releases the store's reference on the shared connection. The table
// stays; the connection outlives the store by at least the grace delay.
func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil
	}
	s.registry.release(s.endpoint)
	s.entry = nil
	s.opened = false
	return nil
}

func (s *sqlStore) live() (*connEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil, kv.ErrStoreNotOpen
	}
	return s.entry, nil
}

func (s *sqlStore) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	e, err := s.live()
	if err != nil {
		return nil, false, err
	}
	return e.conn.Get(ctx, s.table, key)
}

func (s *sqlStore) GetMany(ctx context.Context, keys [][]byte) ([][]byte, error) {
	e, err := s.live()
	if err != nil {
		return nil, err
	}
	found, err := e.conn.GetMany(ctx, s.table, keys)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string][]byte, len(found))
	for _, p := range found {
		byKey[string(p.Key)] = p.Value
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = byKey[string(k)]
	}
	return out, nil
}

func (s *sqlStore) Has(ctx context.Context, key []byte) (bool, error) {
	_, found, err := s.Get(ctx, key)
	return found, err
}

// Put executes immediately, unlike Batch which is deferred to the next
// coalesced flush. The relative order of a Put and a concurrent Batch on
// the same key is implementation-defined.
func (s *sqlStore) Put(ctx context.Context, key, value []byte) error {
	e, err := s.live()
	if err != nil {
		return err
	}
	return e.conn.Put(ctx, s.table, key, value)
}

func (s *sqlStore) Delete(ctx context.Context, key []byte) error {
	e, err := s.live()
	if err != nil {
		return err
	}
	return e.conn.Delete(ctx, s.table, key)
}

// Batch enqueues ops for the connection's next coalesced flush and blocks
// until it completes, which may be well after other work has interleaved.
func (s *sqlStore) Batch(ctx context.Context, ops []kv.Op) error {
	e, err := s.live()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	return <-e.coal.enqueue(s.table, ops)
}

func (s *sqlStore) Clear(ctx context.Context) error {
	e, err := s.live()
	if err != nil {
		return err
	}
	return e.conn.Clear(ctx, s.table)
}

// Sublevel returns the logical store derived under this one. It shares the
// physical connection and must be opened before use.
func (s *sqlStore) Sublevel(name string) (kv.Store, error) {
	derived, err := dbkind.SublevelTable(s.table.Name, name)
	if err != nil {
		return nil, err
	}
	if s.derive != nil {
		return s.derive(derived)
	}
	sub := newSQLStore(s.endpoint, derived, options{
		encoding: s.table.Encoding,
		logger:   s.logger,
		metrics:  s.metrics,
	}, s.registry)
	return sub, nil
}

func (s *sqlStore) Iterator(opts kv.IterOptions) (kv.Iterator, error) {
	e, err := s.live()
	if err != nil {
		return nil, err
	}
	// The iterator takes its own reference on the shared connection so the
	// stream stays valid if this store closes and its grace delay elapses
	// before the scan finishes.
	s.registry.retain(s.endpoint)
	s.metrics.IncIteratorsOpened()
	it := newRangeIterator(e.conn, s.table, opts, s.logger, s.metrics)
	it.release = func() { s.registry.release(s.endpoint) }
	return it, nil
}
