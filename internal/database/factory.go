package database

import (
	"sync"

	"github.com/fedkv/sqlevel/internal/database/pebblekv"
	"github.com/fedkv/sqlevel/pkg/dbkind"
	"github.com/fedkv/sqlevel/pkg/kv"
)

// Factory hands out stores keyed by endpoint and table. The same
// (endpoint, table) pair always resolves to the same store instance, so two
// callers opening the same location share state and refcounts instead of
// racing each other.
type Factory struct {
	opts     options
	registry *Registry
	pebbles  *pebblekv.Cache

	mu     sync.Mutex
	stores map[string]kv.Store
}

// NewFactory builds a factory. Options apply to every store it creates.
func NewFactory(opts ...Option) *Factory {
	o := newOptions(opts)
	return &Factory{
		opts:     o,
		registry: newRegistry(o),
		pebbles:  pebblekv.NewCache(o.logger),
		stores:   make(map[string]kv.Store),
	}
}

// Store resolves endpoint into a backend and returns the singleton store for
// the named table on it. The store is not opened.
func (f *Factory) Store(endpoint, table string) (kv.Store, error) {
	ep, err := dbkind.ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if !dbkind.ValidTableName(table) {
		return nil, kv.NewOpenError(ep.Kind, ep.Raw, table, kv.ErrInvalidTableName)
	}
	return f.store(ep, table)
}

func (f *Factory) store(ep dbkind.Endpoint, table string) (kv.Store, error) {
	key := ep.Raw + "\x00" + table

	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.stores[key]; ok {
		return s, nil
	}

	var s kv.Store
	if ep.Kind == dbkind.File {
		s = pebblekv.NewStore(f.pebbles, ep.Path, table, pebblekv.Options{
			Logger: f.opts.logger,
			Derive: func(derived string) (kv.Store, error) { return f.store(ep, derived) },
		})
	} else {
		sq := newSQLStore(ep, table, f.opts, f.registry)
		sq.derive = func(derived string) (kv.Store, error) { return f.store(ep, derived) }
		s = sq
	}
	f.stores[key] = s
	return s, nil
}

// Metrics exposes the factory-wide counters.
func (f *Factory) Metrics() *Metrics { return f.opts.metrics }

// Shutdown tears down every shared connection immediately, skipping grace
// delays. Stores handed out by the factory are unusable afterwards.
func (f *Factory) Shutdown() error {
	f.mu.Lock()
	f.stores = make(map[string]kv.Store)
	f.mu.Unlock()
	f.registry.Shutdown()
	return f.pebbles.Shutdown()
}
