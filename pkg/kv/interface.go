package kv

import "context"

// Encoding selects how keys and values are typed in the backing storage.
type Encoding string

const (
	// EncodingUTF8 stores keys and values as text columns.
	EncodingUTF8 Encoding = "utf8"
	// EncodingBinary stores keys and values as binary columns.
	EncodingBinary Encoding = "binary"
)

// OpKind identifies a single batch operation.
type OpKind uint8

const (
	OpPut OpKind = iota
	OpDelete
)

// Op is one put or delete inside a write batch. Value is ignored for
// deletes.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte
}

// Put builds a put operation.
func Put(key, value []byte) Op {
	return Op{Kind: OpPut, Key: key, Value: value}
}

// Delete builds a delete operation.
func Delete(key []byte) Op {
	return Op{Kind: OpDelete, Key: key}
}

// IterOptions bounds a range iteration. All bounds filter on the encoded
// key; nil bounds are open. Reverse flips the ordering, Limit caps the
// number of yielded pairs (0 means unlimited).
type IterOptions struct {
	GT      []byte
	GTE     []byte
	LT      []byte
	LTE     []byte
	Reverse bool
	Limit   int
}

// Store is one logical store: a named table on a physical endpoint,
// presenting the ordered-KV contract.
//
// A Store must be opened before use. Closing releases the shared physical
// connection reference; it never drops the table. Repeated lookups of the
// same (endpoint, table) pair through a Factory return the same Store
// instance, so callers must not assume independent lifecycles.
type Store interface {
	// Open ensures the backing table exists. It is idempotent: reopening an
	// already-open store neither errors nor recreates the table, and a
	// concurrent "table already exists" race is not fatal. Any other setup
	// failure surfaces as an *OpenError.
	Open(ctx context.Context) error

	// Close releases the store's reference on the shared connection. The
	// physical connection is torn down only after the last store on the
	// endpoint closes, following a grace delay that permits quick reopen.
	Close() error

	// Get returns the value for key. The boolean reports whether the key
	// was found; absence is not an error.
	Get(ctx context.Context, key []byte) ([]byte, bool, error)

	// GetMany returns values positionally parallel to keys, with nil
	// entries for keys that are absent.
	GetMany(ctx context.Context, keys [][]byte) ([][]byte, error)

	// Has reports whether key exists.
	Has(ctx context.Context, key []byte) (bool, error)

	// Put stores value under key, replacing any existing value. It executes
	// immediately: a Put and a concurrent Batch touching the same key
	// follow different code paths and their relative order is
	// implementation-defined unless the caller awaits one before issuing
	// the other.
	Put(ctx context.Context, key, value []byte) error

	// Delete removes key immediately. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key []byte) error

	// Batch enqueues ops for the connection's next coalesced flush and
	// blocks until that flush completes. Batches from different callers
	// touching the same key resolve by enqueue order. A flush is
	// all-or-nothing: on failure every batch in it fails with the same
	// *BatchError.
	Batch(ctx context.Context, ops []Op) error

	// Clear removes every row in the logical store.
	Clear(ctx context.Context) error

	// Sublevel returns the derived logical store namespaced under this one,
	// sharing the physical connection.
	Sublevel(name string) (Store, error)

	// Iterator returns a lazy ordered cursor over the bounded key range.
	Iterator(opts IterOptions) (Iterator, error)
}

// Iterator is a lazy, restartable cursor over ordered (key, value) pairs.
// It is not safe for concurrent use.
//
// A mid-stream backend error does not surface through Next: the error is
// logged, the sequence ends, and every pair already yielded remains valid.
type Iterator interface {
	// Next advances to the next pair, reporting false once the sequence is
	// exhausted.
	Next() bool

	// Key returns the current key. Valid until the next call to Next or
	// Seek.
	Key() []byte

	// Value returns the current value. Valid until the next call to Next or
	// Seek.
	Value() []byte

	// Seek narrows the iteration bound monotonically toward target (the
	// lower bound when iterating forward, the upper bound in reverse) and
	// restarts the underlying stream. Keys already excluded by the previous
	// bounds are never re-admitted.
	Seek(target []byte)

	// Close releases the underlying stream. Safe to call more than once.
	Close() error
}
