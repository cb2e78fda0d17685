package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedkv/sqlevel/pkg/dbkind"
	"github.com/fedkv/sqlevel/pkg/kv"
	"github.com/fedkv/sqlevel/pkg/logger"
)

func quietOptions(extra ...Option) []Option {
	log := logger.New("test")
	log.DisableConsoleOutput()
	return append([]Option{WithLogger(log)}, extra...)
}

func sqliteEndpoint(t *testing.T) dbkind.Endpoint {
	t.Helper()
	ep, err := dbkind.ParseEndpoint("sqlite:" + filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	return ep
}

func TestRegistrySharesConnection(t *testing.T) {
	r := NewRegistry(quietOptions()...)
	defer r.Shutdown()
	ep := sqliteEndpoint(t)

	e1, err := r.acquire(context.Background(), ep)
	require.NoError(t, err)
	e2, err := r.acquire(context.Background(), ep)
	require.NoError(t, err)

	assert.Same(t, e1, e2, "same endpoint must share one physical connection")
	assert.Equal(t, 2, e1.refs)

	other := sqliteEndpoint(t)
	e3, err := r.acquire(context.Background(), other)
	require.NoError(t, err)
	assert.NotSame(t, e1, e3)
}

func TestRegistryGraceReuse(t *testing.T) {
	r := NewRegistry(quietOptions(WithReleaseGrace(time.Minute))...)
	defer r.Shutdown()
	ep := sqliteEndpoint(t)

	e1, err := r.acquire(context.Background(), ep)
	require.NoError(t, err)
	r.release(ep)

	// Refcount hit zero but the grace window keeps the connection live:
	// reacquiring cancels the scheduled teardown.
	e2, err := r.acquire(context.Background(), ep)
	require.NoError(t, err)
	assert.Same(t, e1, e2)
	assert.Nil(t, e2.teardown)
	assert.Equal(t, 1, e2.refs)
}

func TestRegistryTeardownAfterGrace(t *testing.T) {
	m := NewMetrics()
	r := NewRegistry(quietOptions(WithReleaseGrace(10*time.Millisecond), WithMetrics(m))...)
	defer r.Shutdown()
	ep := sqliteEndpoint(t)

	_, err := r.acquire(context.Background(), ep)
	require.NoError(t, err)
	r.release(ep)

	require.Eventually(t, func() bool {
		return m.Snapshot()["connections_closed"] == 1
	}, 2*time.Second, 5*time.Millisecond)

	r.mu.Lock()
	_, live := r.entries[ep.Raw]
	r.mu.Unlock()
	assert.False(t, live, "entry must be gone after grace teardown")
}

func TestRegistryUnsupportedKind(t *testing.T) {
	r := NewRegistry(quietOptions()...)
	defer r.Shutdown()

	_, err := r.acquire(context.Background(), dbkind.Endpoint{Kind: "oracle", Raw: "oracle://x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, kv.ErrUnsupportedScheme))
}
