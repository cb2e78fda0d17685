// Package pebblekv backs file: endpoints with an embedded pebble database.
// One pebble instance serves every logical store under the same directory;
// stores are separated by key prefix instead of by table.
package pebblekv

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/fedkv/sqlevel/pkg/logger"
)

type dbHandle struct {
	db   *pebble.DB
	refs int
}

// Cache shares one open pebble database per directory. Pebble holds an
// exclusive file lock, so a second open of the same path would fail; stores
// must go through the cache instead.
type Cache struct {
	logger *logger.Logger

	mu      sync.Mutex
	handles map[string]*dbHandle
}

// NewCache builds an empty cache.
func NewCache(l *logger.Logger) *Cache {
	return &Cache{
		logger:  l,
		handles: make(map[string]*dbHandle),
	}
}

func (c *Cache) acquire(path string) (*pebble.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[path]; ok {
		h.refs++
		return h.db, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}
	db, err := pebble.Open(path, &pebble.Options{
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database at %s: %w", path, err)
	}
	c.logger.Infof("Opened pebble database at %s", path)
	c.handles[path] = &dbHandle{db: db, refs: 1}
	return db, nil
}

func (c *Cache) release(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.handles[path]
	if !ok {
		return nil
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	delete(c.handles, path)
	c.logger.Infof("Closing pebble database at %s", path)
	return h.db.Close()
}

// Shutdown closes every cached database regardless of outstanding refs.
func (c *Cache) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for path, h := range c.handles {
		if err := h.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.handles, path)
	}
	return firstErr
}
