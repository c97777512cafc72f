//go:build integration

package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client, err := NewRedisClient(Options{Addr: addr})
	if err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}
	defer client.Close()

	ctx := context.Background()

	locker := NewRedisLocker(client, 2*time.Second)
	key := FlushLockKey("it-" + uuid.NewString())

	err = locker.WithLock(ctx, key, func(ctx context.Context) error {
		val, err := client.Get(ctx, key).Result()
		require.NoError(t, err)
		assert.NotEmpty(t, val)

		return locker.WithLock(ctx, key, func(context.Context) error { return nil })
	})
	require.ErrorIs(t, err, ErrLockNotAcquired)

	exists, err := client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "lock must be released")
}
