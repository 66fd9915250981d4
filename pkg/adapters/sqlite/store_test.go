package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/netkrida/myhome-sub001/pkg/adapters/sqlite"
	"github.com/netkrida/myhome-sub001/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	defer store.Close()

	ports.RunBackendContract(t, store)
}

func TestSQLiteStore_LikeWildcardsAreLiteral(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "room_create-step-1", []byte(`{}`)))
	require.NoError(t, store.Set(ctx, "roomXcreate-step-1", []byte(`{}`)))

	keys, err := store.Keys(ctx, "room_create")
	require.NoError(t, err)
	assert.Equal(t, []string{"room_create-step-1"}, keys)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.db")
	ctx := context.Background()

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "property-create", []byte(`{"index":1}`)))
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "property-create")
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":1}`, string(got))
}
