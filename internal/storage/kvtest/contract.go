// Package kvtest holds the behaviour every KeyValueStorage backend must share.
package kvtest

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/culefilo/internal/interfaces"
)

// RunContract exercises kv against the KeyValueStorage contract.
// kv must start empty.
func RunContract(t *testing.T, kv interfaces.KeyValueStorage) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := kv.Get(ctx, "missing")
		assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

		_, err = kv.GetPair(ctx, "missing")
		assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
	})

	t.Run("set bumps revision", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "plain", "one"))
		require.NoError(t, kv.Set(ctx, "plain", "two"))

		pair, err := kv.GetPair(ctx, "plain")
		require.NoError(t, err)
		assert.Equal(t, "two", pair.Value)
		assert.Equal(t, uint64(2), pair.Revision)
		assert.False(t, pair.CreatedAt.IsZero())
		assert.False(t, pair.UpdatedAt.Before(pair.CreatedAt))
	})

	t.Run("keys are case-insensitive", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "Mixed_Case", "v"))
		value, err := kv.Get(ctx, "mixed_case")
		require.NoError(t, err)
		assert.Equal(t, "v", value)
	})

	t.Run("compare and swap", func(t *testing.T) {
		rev, err := kv.CompareAndSwap(ctx, "job:cas", "created", 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), rev)

		// insert-only write fails once the key exists
		_, err = kv.CompareAndSwap(ctx, "job:cas", "again", 0)
		assert.ErrorIs(t, err, interfaces.ErrRevisionMismatch)

		rev, err = kv.CompareAndSwap(ctx, "job:cas", "running", 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), rev)

		// stale revision loses
		_, err = kv.CompareAndSwap(ctx, "job:cas", "stale", 1)
		assert.ErrorIs(t, err, interfaces.ErrRevisionMismatch)

		value, err := kv.Get(ctx, "job:cas")
		require.NoError(t, err)
		assert.Equal(t, "running", value)

		// expecting a revision on a missing key fails
		_, err = kv.CompareAndSwap(ctx, "job:nothing", "x", 3)
		assert.ErrorIs(t, err, interfaces.ErrRevisionMismatch)
	})

	t.Run("concurrent compare and swap has one winner", func(t *testing.T) {
		const writers = 16
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0

		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := kv.CompareAndSwap(ctx, "job:race", "claimed", 0); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				} else {
					assert.ErrorIs(t, err, interfaces.ErrRevisionMismatch)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})

	t.Run("list keys by prefix", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "list:a", "1"))
		require.NoError(t, kv.Set(ctx, "list:b", "2"))
		require.NoError(t, kv.Set(ctx, "other:c", "3"))

		keys, err := kv.ListKeys(ctx, "list:")
		require.NoError(t, err)
		sort.Strings(keys)
		assert.Equal(t, []string{"list:a", "list:b"}, keys)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "gone", "x"))
		require.NoError(t, kv.Delete(ctx, "gone"))

		_, err := kv.Get(ctx, "gone")
		assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
		assert.ErrorIs(t, kv.Delete(ctx, "gone"), interfaces.ErrKeyNotFound)
	})
}
