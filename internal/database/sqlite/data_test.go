package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedkv/sqlevel/internal/database/dbconn"
	"github.com/fedkv/sqlevel/pkg/kv"
)

func setupConn(t *testing.T) (*Conn, dbconn.Table) {
	t.Helper()
	conn, err := Connect(context.Background(), filepath.Join(t.TempDir(), "nested", "dir", "kv.db"))
	require.NoError(t, err, "connect must create parent directories")
	t.Cleanup(func() { conn.Close() })

	tbl := dbconn.Table{Name: "kv", Encoding: kv.EncodingUTF8}
	require.NoError(t, conn.EnsureTable(context.Background(), tbl))
	return conn, tbl
}

func TestEnsureTableIdempotent(t *testing.T) {
	conn, tbl := setupConn(t)
	// Racing opens hit "table already exists"; it must be swallowed.
	require.NoError(t, conn.EnsureTable(context.Background(), tbl))
}

func TestCRUD(t *testing.T) {
	conn, tbl := setupConn(t)
	ctx := context.Background()

	require.NoError(t, conn.Put(ctx, tbl, []byte("k"), []byte("v1")))
	require.NoError(t, conn.Put(ctx, tbl, []byte("k"), []byte("v2")))

	v, found, err := conn.Get(ctx, tbl, []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, conn.Delete(ctx, tbl, []byte("k")))
	_, found, err = conn.Get(ctx, tbl, []byte("k"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestApplyBatchLargerThanChunks(t *testing.T) {
	conn, tbl := setupConn(t)
	ctx := context.Background()

	// More keys than either statement chunk holds, so the batch spans
	// multiple DELETE and INSERT statements.
	n := deleteChunk + insertChunk + 57
	w := dbconn.TableWrite{Table: tbl}
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key_%05d", i))
		w.Touched = append(w.Touched, key)
		w.Puts = append(w.Puts, dbconn.KV{Key: key, Value: []byte("v")})
	}
	require.NoError(t, conn.ApplyBatch(ctx, []dbconn.TableWrite{w}))

	got, err := conn.GetMany(ctx, tbl, w.Touched)
	require.NoError(t, err)
	assert.Len(t, got, n)
}

func TestGetManySpansChunks(t *testing.T) {
	conn, tbl := setupConn(t)
	ctx := context.Background()

	n := deleteChunk + 73
	w := dbconn.TableWrite{Table: tbl}
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key_%05d", i))
		w.Puts = append(w.Puts, dbconn.KV{Key: key, Value: []byte("v")})
	}
	require.NoError(t, conn.ApplyBatch(ctx, []dbconn.TableWrite{w}))

	// Ask for every stored key plus misses; the lookup spans several
	// IN statements and the misses are silently absent.
	keys := make([][]byte, 0, n+2)
	keys = append(keys, []byte("missing_low"))
	for _, p := range w.Puts {
		keys = append(keys, p.Key)
	}
	keys = append(keys, []byte("zz_missing"))

	got, err := conn.GetMany(ctx, tbl, keys)
	require.NoError(t, err)
	assert.Len(t, got, n)
}

func TestQueryOrdering(t *testing.T) {
	conn, tbl := setupConn(t)
	ctx := context.Background()

	for _, k := range []string{"b", "d", "a", "c"} {
		require.NoError(t, conn.Put(ctx, tbl, []byte(k), []byte(k)))
	}

	rows, err := conn.Query(ctx, tbl, dbconn.Bounds{GTE: []byte("b")}, false, -1)
	require.NoError(t, err)
	defer rows.Close()

	var keys []string
	for rows.Next() {
		keys = append(keys, string(rows.Key()))
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"b", "c", "d"}, keys)
}
