package kv

import (
	"errors"
	"fmt"

	"github.com/fedkv/sqlevel/pkg/dbkind"
)

// Standard storage errors
var (
	// ErrStoreClosed is returned when operating on a closed logical store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrStoreNotOpen is returned when a store is used before Open.
	ErrStoreNotOpen = errors.New("store is not open")

	// ErrOpenFailed is the category for fatal table or connection setup
	// failures surfaced by Open.
	ErrOpenFailed = errors.New("open failed")

	// ErrBatchFailed is the category for a rejected coalesced flush.
	ErrBatchFailed = errors.New("batch flush failed")

	// ErrUnsupportedScheme aliases the endpoint parser's sentinel so
	// callers can match protocol errors without importing dbkind.
	ErrUnsupportedScheme = dbkind.ErrUnsupportedScheme

	// ErrInvalidTableName is returned for table identifiers that do not
	// satisfy the naming rules.
	ErrInvalidTableName = errors.New("invalid table name")
)

// OpenError wraps a fatal failure during table or connection setup. The one
// setup failure that is never fatal is a "table already exists" race between
// concurrent opens; backends swallow that before it reaches here.
//
// Individual get/put/delete failures after a successful Open are not wrapped
// at all: raw driver errors propagate verbatim to the caller.
type OpenError struct {
	Backend  dbkind.Kind
	Endpoint string
	Table    string
	Cause    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("[%s] open %s table %q: %v", e.Backend, e.Endpoint, e.Table, e.Cause)
}

func (e *OpenError) Unwrap() error {
	return e.Cause
}

func (e *OpenError) Is(target error) bool {
	return target == ErrOpenFailed || errors.Is(e.Cause, target)
}

// NewOpenError creates an OpenError.
func NewOpenError(backend dbkind.Kind, endpoint, table string, cause error) *OpenError {
	return &OpenError{Backend: backend, Endpoint: endpoint, Table: table, Cause: cause}
}

// BatchError rejects every batch queued into one coalesced flush. Callers
// cannot attribute the failure to an individual operation, only to the flush
// as a whole.
type BatchError struct {
	Backend dbkind.Kind
	Batches int
	Cause   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("[%s] coalesced flush of %d batches failed: %v", e.Backend, e.Batches, e.Cause)
}

func (e *BatchError) Unwrap() error {
	return e.Cause
}

func (e *BatchError) Is(target error) bool {
	return target == ErrBatchFailed || errors.Is(e.Cause, target)
}

// NewBatchError creates a BatchError.
func NewBatchError(backend dbkind.Kind, batches int, cause error) *BatchError {
	return &BatchError{Backend: backend, Batches: batches, Cause: cause}
}
