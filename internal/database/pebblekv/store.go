package pebblekv

import (
	"context"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/fedkv/sqlevel/pkg/dbkind"
	"github.com/fedkv/sqlevel/pkg/kv"
	"github.com/fedkv/sqlevel/pkg/logger"
)

// Options configure a pebble-backed store.
type Options struct {
	Logger *logger.Logger

	// Derive resolves sublevels through the owning factory so repeated
	// lookups of the same derived store share an instance. Optional.
	Derive func(table string) (kv.Store, error)
}

// Store is one logical store inside a shared pebble database, isolated from
// its siblings by a table-derived key prefix.
type Store struct {
	cache  *Cache
	path   string
	table  string
	prefix []byte
	logger *logger.Logger
	derive func(table string) (kv.Store, error)

	mu     sync.Mutex
	db     *pebble.DB
	opened bool
}

var _ kv.Store = (*Store)(nil)

// NewStore builds an unopened store over the named table at path.
func NewStore(cache *Cache, path, table string, opts Options) *Store {
	l := opts.Logger
	if l == nil {
		l = logger.New("pebblekv")
	}
	return &Store{
		cache:  cache,
		path:   path,
		table:  table,
		prefix: []byte(table + "/"),
		logger: l,
		derive: opts.Derive,
	}
}

// Open acquires the shared pebble database. Idempotent.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return nil
	}
	db, err := s.cache.acquire(s.path)
	if err != nil {
		return kv.NewOpenError(dbkind.File, s.path, s.table, err)
	}
	s.db = db
	s.opened = true
	return nil
}

// Close releases the store's reference on the shared database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil
	}
	s.db = nil
	s.opened = false
	return s.cache.release(s.path)
}

func (s *Store) live() (*pebble.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil, kv.ErrStoreNotOpen
	}
	return s.db, nil
}

func (s *Store) abs(key []byte) []byte {
	return concat(s.prefix, key)
}

func concat(prefix, key []byte) []byte {
	return append(append(make([]byte, 0, len(prefix)+len(key)), prefix...), key...)
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	db, err := s.live()
	if err != nil {
		return nil, false, err
	}
	val, closer, err := db.Get(s.abs(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// val is only valid until the closer is released.
	out := append([]byte(nil), val...)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (s *Store) GetMany(ctx context.Context, keys [][]byte) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		val, found, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if found {
			out[i] = val
		}
	}
	return out, nil
}

func (s *Store) Has(ctx context.Context, key []byte) (bool, error) {
	_, found, err := s.Get(ctx, key)
	return found, err
}

func (s *Store) Put(ctx context.Context, key, value []byte) error {
	db, err := s.live()
	if err != nil {
		return err
	}
	return db.Set(s.abs(key), value, pebble.Sync)
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	db, err := s.live()
	if err != nil {
		return err
	}
	return db.Delete(s.abs(key), pebble.Sync)
}

// Batch applies ops atomically in a single pebble write batch.
func (s *Store) Batch(ctx context.Context, ops []kv.Op) error {
	db, err := s.live()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	b := db.NewBatch()
	defer b.Close()
	for _, op := range ops {
		switch op.Kind {
		case kv.OpPut:
			if err := b.Set(s.abs(op.Key), op.Value, nil); err != nil {
				return kv.NewBatchError(dbkind.File, 1, err)
			}
		case kv.OpDelete:
			if err := b.Delete(s.abs(op.Key), nil); err != nil {
				return kv.NewBatchError(dbkind.File, 1, err)
			}
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return kv.NewBatchError(dbkind.File, 1, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	db, err := s.live()
	if err != nil {
		return err
	}
	return db.DeleteRange(s.prefix, prefixEnd(s.prefix), pebble.Sync)
}

// Sublevel returns the logical store derived under this one. It shares the
// physical database and must be opened before use.
func (s *Store) Sublevel(name string) (kv.Store, error) {
	derived, err := dbkind.SublevelTable(s.table, name)
	if err != nil {
		return nil, err
	}
	if s.derive != nil {
		return s.derive(derived)
	}
	return NewStore(s.cache, s.path, derived, Options{Logger: s.logger}), nil
}

func (s *Store) Iterator(opts kv.IterOptions) (kv.Iterator, error) {
	db, err := s.live()
	if err != nil {
		return nil, err
	}
	return newIterator(db, s.prefix, opts)
}

// prefixEnd returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
