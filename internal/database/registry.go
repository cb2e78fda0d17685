package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fedkv/sqlevel/internal/database/dbconn"
	"github.com/fedkv/sqlevel/internal/database/mysql"
	"github.com/fedkv/sqlevel/internal/database/postgres"
	"github.com/fedkv/sqlevel/internal/database/sqlite"
	"github.com/fedkv/sqlevel/pkg/dbkind"
)

// Registry owns one physical connection per distinct endpoint URL,
// reference-counted across the logical stores sharing it. Some engines
// (notably SQLite) serialize access to a single file, so a second handle on
// the same endpoint would only fight the first for locks.
//
// A registry is an owned object, not process-global state: the factory
// constructs and injects one, and tests instantiate isolated registries.
type Registry struct {
	opts options

	mu      sync.Mutex
	entries map[string]*connEntry
}

// connEntry is a reference-counted handle on one physical connection,
// created on first use of a URL and torn down only after the last logical
// store referencing it closes, plus a grace delay permitting rapid reopen.
type connEntry struct {
	id       string
	endpoint dbkind.Endpoint
	conn     dbconn.Conn
	coal     *coalescer

	refs     int
	teardown *time.Timer
}

// NewRegistry creates an empty connection registry.
func NewRegistry(opts ...Option) *Registry {
	return newRegistry(newOptions(opts))
}

func newRegistry(o options) *Registry {
	return &Registry{
		opts:    o,
		entries: make(map[string]*connEntry),
	}
}

// acquire returns the live entry for the endpoint, establishing the
// physical connection on first use. The refcount is incremented; callers
// must pair every acquire with a release.
func (r *Registry) acquire(ctx context.Context, ep dbkind.Endpoint) (*connEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[ep.Raw]; ok {
		if e.teardown != nil {
			// A quick reopen within the grace window reuses the live
			// connection instead of reconnecting.
			e.teardown.Stop()
			e.teardown = nil
		}
		e.refs++
		r.opts.metrics.IncConnectionsReused()
		return e, nil
	}

	conn, err := connect(ctx, ep)
	if err != nil {
		return nil, err
	}

	e := &connEntry{
		id:       uuid.NewString(),
		endpoint: ep,
		conn:     conn,
		refs:     1,
	}
	e.coal = newCoalescer(conn, r.opts.logger, r.opts.metrics)
	r.entries[ep.Raw] = e

	r.opts.metrics.IncConnectionsOpened()
	r.opts.logger.WithFields(map[string]string{
		"endpoint": ep.Raw,
		"backend":  string(ep.Kind),
		"conn":     e.id,
	}).Info("connection established")

	return e, nil
}

func connect(ctx context.Context, ep dbkind.Endpoint) (dbconn.Conn, error) {
	switch ep.Kind {
	case dbkind.SQLite:
		return sqlite.Connect(ctx, ep.Path)
	case dbkind.PostgreSQL:
		return postgres.Connect(ctx, ep.URL)
	case dbkind.MySQL:
		return mysql.Connect(ctx, ep.URL)
	case dbkind.File:
		return nil, fmt.Errorf("file endpoints use the native backend, not the SQL registry")
	default:
		return nil, &dbkind.UnsupportedSchemeError{Scheme: string(ep.Kind)}
	}
}

// retain bumps the refcount of an already-live entry, cancelling any pending
// teardown. Iterators pin their connection this way so a scan survives the
// owning store closing mid-stream.
func (r *Registry) retain(ep dbkind.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[ep.Raw]
	if !ok {
		return
	}
	if e.teardown != nil {
		e.teardown.Stop()
		e.teardown = nil
	}
	e.refs++
}

// release decrements the endpoint's refcount. At zero, physical teardown is
// scheduled after the grace delay rather than performed immediately.
func (r *Registry) release(ep dbkind.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[ep.Raw]
	if !ok {
		return
	}
	if e.refs--; e.refs > 0 {
		return
	}
	e.teardown = time.AfterFunc(r.opts.releaseGrace, func() {
		r.destroy(ep.Raw, e)
	})
}

// destroy tears down an entry whose grace delay elapsed with no reopen.
func (r *Registry) destroy(raw string, e *connEntry) {
	r.mu.Lock()
	cur, ok := r.entries[raw]
	if !ok || cur != e || e.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.entries, raw)
	r.mu.Unlock()

	e.coal.stop()
	if err := e.conn.Close(); err != nil {
		r.opts.logger.Warnf("closing connection %s to %s: %v", e.id, raw, err)
	}
	r.opts.metrics.IncConnectionsClosed()
	r.opts.logger.WithFields(map[string]string{
		"endpoint": raw,
		"conn":     e.id,
	}).Info("connection closed")
}

// Shutdown immediately tears down every live connection, bypassing grace
// delays. Intended for process exit and tests.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	entries := make([]*connEntry, 0, len(r.entries))
	for raw, e := range r.entries {
		if e.teardown != nil {
			e.teardown.Stop()
		}
		entries = append(entries, e)
		delete(r.entries, raw)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.coal.stop()
		if err := e.conn.Close(); err != nil {
			r.opts.logger.Warnf("closing connection %s: %v", e.id, err)
		}
		r.opts.metrics.IncConnectionsClosed()
	}
}
