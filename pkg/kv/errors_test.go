package kv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedkv/sqlevel/pkg/dbkind"
)

func TestOpenError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewOpenError(dbkind.PostgreSQL, "postgres://db/main", "users", cause)

	assert.True(t, errors.Is(err, ErrOpenFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "postgres")
	assert.Contains(t, err.Error(), "users")

	var oe *OpenError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, dbkind.PostgreSQL, oe.Backend)
}

func TestOpenErrorWrapsProtocolError(t *testing.T) {
	cause := &dbkind.UnsupportedSchemeError{Scheme: "redis"}
	err := NewOpenError(dbkind.Kind("redis"), "redis://x", "kv", cause)

	// Scheme rejection stays matchable through the open wrapper.
	assert.True(t, errors.Is(err, ErrUnsupportedScheme))
	assert.True(t, errors.Is(err, ErrOpenFailed))
}

func TestBatchError(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := NewBatchError(dbkind.MySQL, 3, cause)

	assert.True(t, errors.Is(err, ErrBatchFailed))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrOpenFailed))

	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 3, be.Batches)
}
