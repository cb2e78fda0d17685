package pebblekv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedkv/sqlevel/pkg/kv"
)

func seededStore(t *testing.T, keys ...string) *Store {
	t.Helper()
	s := openTestStore(t, "kv")
	for _, k := range keys {
		require.NoError(t, s.Put(context.Background(), []byte(k), []byte("v:"+k)))
	}
	return s
}

func collectKeys(t *testing.T, it kv.Iterator) []string {
	t.Helper()
	defer it.Close()
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	return keys
}

func TestIteratorBounds(t *testing.T) {
	s := seededStore(t, "a", "b", "c", "d", "e")

	tests := []struct {
		name string
		opts kv.IterOptions
		want []string
	}{
		{"full ascending", kv.IterOptions{}, []string{"a", "b", "c", "d", "e"}},
		{"gt", kv.IterOptions{GT: []byte("b")}, []string{"c", "d", "e"}},
		{"gte", kv.IterOptions{GTE: []byte("b")}, []string{"b", "c", "d", "e"}},
		{"lt", kv.IterOptions{LT: []byte("d")}, []string{"a", "b", "c"}},
		{"lte", kv.IterOptions{LTE: []byte("d")}, []string{"a", "b", "c", "d"}},
		{"window", kv.IterOptions{GT: []byte("a"), LT: []byte("e")}, []string{"b", "c", "d"}},
		{"reverse", kv.IterOptions{Reverse: true}, []string{"e", "d", "c", "b", "a"}},
		{"reverse window", kv.IterOptions{GTE: []byte("b"), LTE: []byte("d"), Reverse: true}, []string{"d", "c", "b"}},
		{"empty window", kv.IterOptions{GT: []byte("x")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := s.Iterator(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, collectKeys(t, it))
		})
	}
}

func TestIteratorLimit(t *testing.T) {
	s := seededStore(t, "a", "b", "c", "d", "e")

	it, err := s.Iterator(kv.IterOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, collectKeys(t, it))

	it, err = s.Iterator(kv.IterOptions{Limit: 2, Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "d"}, collectKeys(t, it))
}

func TestIteratorValues(t *testing.T) {
	s := seededStore(t, "a")

	it, err := s.Iterator(kv.IterOptions{})
	require.NoError(t, err)
	defer it.Close()
	require.True(t, it.Next())
	assert.Equal(t, []byte("a"), it.Key())
	assert.Equal(t, []byte("v:a"), it.Value())
}

func TestIteratorSeek(t *testing.T) {
	s := seededStore(t, "a", "b", "c", "d", "e")

	it, err := s.Iterator(kv.IterOptions{})
	require.NoError(t, err)
	defer it.Close()

	it.Seek([]byte("c"))
	require.True(t, it.Next())
	assert.Equal(t, []byte("c"), it.Key())

	// Backwards seeks are ignored.
	it.Seek([]byte("a"))
	require.True(t, it.Next())
	assert.Equal(t, []byte("d"), it.Key())
}

func TestIteratorSeekReverse(t *testing.T) {
	s := seededStore(t, "a", "b", "c", "d", "e")

	it, err := s.Iterator(kv.IterOptions{Reverse: true})
	require.NoError(t, err)
	defer it.Close()

	it.Seek([]byte("d"))
	require.True(t, it.Next())
	assert.Equal(t, []byte("d"), it.Key())

	it.Seek([]byte("b"))
	require.True(t, it.Next())
	assert.Equal(t, []byte("b"), it.Key())
	require.True(t, it.Next())
	assert.Equal(t, []byte("a"), it.Key())
	assert.False(t, it.Next())
}

func TestIteratorSeekRespectsBounds(t *testing.T) {
	s := seededStore(t, "a", "b", "c", "d", "e")

	it, err := s.Iterator(kv.IterOptions{LT: []byte("d")})
	require.NoError(t, err)
	defer it.Close()

	it.Seek([]byte("d"))
	assert.False(t, it.Next(), "seek cannot escape the upper bound")
}

func TestIteratorIsolatedFromSiblingTables(t *testing.T) {
	s := seededStore(t, "a", "b")
	sibling, err := s.Sublevel("side")
	require.NoError(t, err)
	require.NoError(t, sibling.Open(context.Background()))
	defer sibling.Close()
	require.NoError(t, sibling.Put(context.Background(), []byte("z"), []byte("other")))

	it, err := s.Iterator(kv.IterOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, collectKeys(t, it), "prefix isolation must hold")
}
