// Package dbconn defines the contract between the shared storage layer and
// the SQL dialect packages (sqlite, postgres, mysql). Each dialect owns its
// connection handling, DDL, placeholder style, and upsert form; everything
// above this interface is dialect-agnostic.
package dbconn

import (
	"context"

	"github.com/fedkv/sqlevel/pkg/dbkind"
	"github.com/fedkv/sqlevel/pkg/kv"
)

// Table identifies one logical store's backing table on a connection,
// together with the configured value encoding. The schema is always two
// columns, key and value, with the key unique; the encoding decides whether
// they are text or binary columns.
type Table struct {
	Name     string
	Encoding kv.Encoding
}

// Arg converts an encoded key or value into the driver argument matching the
// table's column type. Text columns are bound as string so drivers do not
// coerce them to blobs, which would break ordering on engines that sort
// blobs after text.
func (t Table) Arg(b []byte) interface{} {
	if t.Encoding == kv.EncodingBinary {
		return b
	}
	return string(b)
}

// KV is one stored pair.
type KV struct {
	Key   []byte
	Value []byte
}

// TableWrite is the reduced outcome of a coalesced flush for one table:
// every touched key is deleted, then the keys whose final state is a put are
// reinserted. Keys whose final state is a delete are naturally absent from
// Puts. Slices preserve enqueue order.
type TableWrite struct {
	Table   Table
	Touched [][]byte
	Puts    []KV
}

// Bounds restricts a range query on the encoded key. At most one lower
// (GT or GTE) and one upper (LT or LTE) bound is set; nil means open.
type Bounds struct {
	GT  []byte
	GTE []byte
	LT  []byte
	LTE []byte
}

// Rows streams the ordered result of a range query one pair at a time. Key
// and Value are valid until the next call to Next.
type Rows interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// Conn is one physical connection (or pool) to a SQL endpoint. Exactly one
// Conn exists per endpoint URL regardless of how many logical stores share
// it; the connection registry owns the lifecycle.
//
// Individual operation errors are returned exactly as the driver produced
// them. No retry, no reclassification.
type Conn interface {
	// Kind returns the backend kind of this connection.
	Kind() dbkind.Kind

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close tears down the physical connection.
	Close() error

	// EnsureTable creates the backing table if it does not exist. A
	// concurrent "table already exists" race is swallowed; any other
	// failure is returned.
	EnsureTable(ctx context.Context, t Table) error

	// Get returns the value for key, with found=false for an absent key.
	Get(ctx context.Context, t Table, key []byte) (value []byte, found bool, err error)

	// GetMany returns the pairs found for keys; absent keys are simply not
	// in the result.
	GetMany(ctx context.Context, t Table, keys [][]byte) ([]KV, error)

	// Put upserts one pair.
	Put(ctx context.Context, t Table, key, value []byte) error

	// Delete removes one key.
	Delete(ctx context.Context, t Table, key []byte) error

	// Clear removes every row of the table.
	Clear(ctx context.Context, t Table) error

	// ApplyBatch applies one coalesced flush, possibly spanning several
	// tables, as a single unit of work. Dialects that can nest a dedicated
	// transaction do; SQLite applies the statements sequentially on its
	// single shared connection instead.
	ApplyBatch(ctx context.Context, writes []TableWrite) error

	// Query opens a streamed range scan ordered by key. limit caps the row
	// count when positive.
	Query(ctx context.Context, t Table, b Bounds, reverse bool, limit int) (Rows, error)
}
