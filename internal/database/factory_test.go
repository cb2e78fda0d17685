package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedkv/sqlevel/internal/database/pebblekv"
	"github.com/fedkv/sqlevel/pkg/kv"
)

func TestFactorySingleton(t *testing.T) {
	f := newTestFactory(t)
	endpoint := "sqlite:" + filepath.Join(t.TempDir(), "kv.db")

	s1, err := f.Store(endpoint, "users")
	require.NoError(t, err)
	s2, err := f.Store(endpoint, "users")
	require.NoError(t, err)
	assert.Same(t, s1, s2, "identical (endpoint, table) must share one store")

	s3, err := f.Store(endpoint, "other")
	require.NoError(t, err)
	assert.NotSame(t, s1, s3)

	s4, err := f.Store("sqlite:"+filepath.Join(t.TempDir(), "two.db"), "users")
	require.NoError(t, err)
	assert.NotSame(t, s1, s4)
}

func TestFactoryUnsupportedScheme(t *testing.T) {
	f := newTestFactory(t)

	_, err := f.Store("redis://localhost:6379", "kv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, kv.ErrUnsupportedScheme))
}

func TestFactoryInvalidTableName(t *testing.T) {
	f := newTestFactory(t)
	endpoint := "sqlite:" + filepath.Join(t.TempDir(), "kv.db")

	for _, table := range []string{"", "1abc", "bad name", "drop;table"} {
		_, err := f.Store(endpoint, table)
		require.Error(t, err, "table %q", table)
		assert.True(t, errors.Is(err, kv.ErrInvalidTableName), "table %q: %v", table, err)
	}
}

func TestFactoryFileBackend(t *testing.T) {
	f := newTestFactory(t)

	s, err := f.Store("file:"+filepath.Join(t.TempDir(), "store"), "kv")
	require.NoError(t, err)
	_, ok := s.(*pebblekv.Store)
	assert.True(t, ok, "file endpoints dispatch to the native backend")

	require.NoError(t, s.Open(context.Background()))
	defer s.Close()
	require.NoError(t, s.Put(context.Background(), []byte("k"), []byte("v")))
	v, found, err := s.Get(context.Background(), []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v"), v)
}

func TestFactoryMetrics(t *testing.T) {
	f := newTestFactory(t)
	s := openSQLiteStore(t, f, "kv")

	require.NoError(t, s.Put(context.Background(), []byte("a"), []byte("1")))
	require.NoError(t, s.Batch(context.Background(), []kv.Op{kv.Put([]byte("b"), []byte("2"))}))

	it, err := s.Iterator(kv.IterOptions{})
	require.NoError(t, err)
	it.Close()

	snap := f.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap["connections_opened"])
	assert.GreaterOrEqual(t, snap["flushes"], int64(1))
	assert.Equal(t, int64(1), snap["iterators_opened"])
}
