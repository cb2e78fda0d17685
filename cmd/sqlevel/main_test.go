package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedkv/sqlevel/pkg/kv"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"version", "get", "put", "del", "has", "scan", "clear", "bench"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestWithStoreRequiresEndpoint(t *testing.T) {
	prev := flagEndpoint
	flagEndpoint = ""
	defer func() { flagEndpoint = prev }()

	err := withStore(&cobra.Command{}, func(s kv.Store) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")
}

func TestWithStoreOpensSQLite(t *testing.T) {
	prevEndpoint, prevTable := flagEndpoint, flagTable
	flagEndpoint = "sqlite:" + filepath.Join(t.TempDir(), "cli.db")
	flagTable = "kv"
	defer func() { flagEndpoint, flagTable = prevEndpoint, prevTable }()

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	err := withStore(cmd, func(s kv.Store) error {
		if err := s.Put(cmd.Context(), []byte("k"), []byte("v")); err != nil {
			return err
		}
		v, ok, err := s.Get(cmd.Context(), []byte("k"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v"), v)
		return nil
	})
	require.NoError(t, err)
}
