package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/netkrida/myhome-sub001/pkg/adapters/redis"
	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/netkrida/myhome-sub001/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_Contract(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})

	store := redis.NewFromClient(client)
	ports.RunBackendContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "room-create-step-1", []byte(`{"name":"A1"}`)))

	keys, err := store.Keys(ctx, "room-create")
	require.NoError(t, err)
	assert.Contains(t, keys, "room-create-step-1")

	// Fast-forward miniredis so the value expires.
	mr.FastForward(2 * time.Second)

	_, err = store.Get(ctx, "room-create-step-1")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := redis.NewFromClient(client, redis.WithPrefix("tenant-a:"))

	require.NoError(t, store.Set(context.Background(), "property-create", []byte(`{"index":2}`)))
	assert.True(t, mr.Exists("tenant-a:property-create"))
}
