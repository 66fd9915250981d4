package memory_test

import (
	"context"
	"testing"

	"github.com/netkrida/myhome-sub001/pkg/adapters/memory"
	"github.com/netkrida/myhome-sub001/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunBackendContract(t, store)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	buf := []byte(`{"a":1}`)
	require.NoError(t, store.Set(ctx, "k", buf))
	buf[2] = 'b'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	got[2] = 'c'
	again, _ := store.Get(ctx, "k")
	assert.Equal(t, `{"a":1}`, string(again))
}
