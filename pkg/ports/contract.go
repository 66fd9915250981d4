package ports

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBackendContract runs a suite of tests to verify that a Backend implementation
// adheres to the defined interface contract.
func RunBackendContract(t *testing.T, backend Backend) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405")

	t.Run("Set and Get", func(t *testing.T) {
		key := prefix + "-step-1"
		err := backend.Set(ctx, key, []byte(`{"name":"Kos Mawar"}`))
		require.NoError(t, err, "Set should not return error")

		got, err := backend.Get(ctx, key)
		require.NoError(t, err, "Get should not return error")
		assert.JSONEq(t, `{"name":"Kos Mawar"}`, string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		key := prefix + "-step-2"
		require.NoError(t, backend.Set(ctx, key, []byte(`{"v":1}`)))
		require.NoError(t, backend.Set(ctx, key, []byte(`{"v":2}`)))

		got, err := backend.Get(ctx, key)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(got))
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := backend.Get(ctx, "non-existent-"+prefix)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete Is Idempotent", func(t *testing.T) {
		key := prefix + "-step-3"
		require.NoError(t, backend.Set(ctx, key, []byte(`{}`)))

		require.NoError(t, backend.Delete(ctx, key))
		require.NoError(t, backend.Delete(ctx, key), "second Delete should not fail")
		require.NoError(t, backend.Delete(ctx, "never-written-"+prefix))

		_, err := backend.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Keys By Prefix", func(t *testing.T) {
		other := "other-" + prefix
		require.NoError(t, backend.Set(ctx, prefix, []byte(`{"index":0}`)))
		require.NoError(t, backend.Set(ctx, other, []byte(`{}`)))

		keys, err := backend.Keys(ctx, prefix)
		require.NoError(t, err)
		sort.Strings(keys)
		assert.Contains(t, keys, prefix)
		assert.Contains(t, keys, prefix+"-step-1")
		assert.NotContains(t, keys, other)
		assert.NotContains(t, keys, prefix+"-step-3")
	})
}
