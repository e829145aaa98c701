// Package storetest holds the conformance suite every store backend runs.
package storetest

import (
	"context"
	"testing"

	"github.com/0xWizop/incubator-sub002/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunKV exercises a KV created fresh by open for each subtest.
func RunKV(t *testing.T, open func(t *testing.T) store.KV) {
	t.Helper()
	ctx := context.Background()

	t.Run("put and list", func(t *testing.T) {
		kv := open(t)
		defer kv.Close()

		require.NoError(t, kv.Put(ctx, "base:0x01", "one"))
		require.NoError(t, kv.Put(ctx, "solana:S1", "two"))

		all, err := kv.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"base:0x01": "one", "solana:S1": "two"}, all)
	})

	t.Run("put replaces", func(t *testing.T) {
		kv := open(t)
		defer kv.Close()

		require.NoError(t, kv.Put(ctx, "base:0x01", "one"))
		require.NoError(t, kv.Put(ctx, "base:0x01", "uno"))

		all, err := kv.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"base:0x01": "uno"}, all)
	})

	t.Run("delete", func(t *testing.T) {
		kv := open(t)
		defer kv.Close()

		require.NoError(t, kv.Put(ctx, "base:0x01", "one"))
		require.NoError(t, kv.Put(ctx, "base:0x02", "two"))
		require.NoError(t, kv.Delete(ctx, "base:0x01"))
		require.NoError(t, kv.Delete(ctx, "base:0xmissing"))

		all, err := kv.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"base:0x02": "two"}, all)
	})

	t.Run("clear", func(t *testing.T) {
		kv := open(t)
		defer kv.Close()

		require.NoError(t, kv.Put(ctx, "base:0x01", "one"))
		require.NoError(t, kv.Clear(ctx))

		all, err := kv.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("cancelled context", func(t *testing.T) {
		kv := open(t)
		defer kv.Close()

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.Error(t, kv.Put(cancelled, "base:0x01", "one"))
	})
}
