//go:build integration

package idempotency

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("terminate redis: %v", err)
		}
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	rdb, err := NewClient(ctx, startRedis(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisStore(rdb, time.Minute)

	t.Run("AcquireIsExclusive", func(t *testing.T) {
		ok, err := store.Acquire(ctx, "checkout:u1", "k1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Acquire(ctx, "checkout:u1", "k1")
		require.NoError(t, err)
		assert.False(t, ok)

		// Keys are scoped per user.
		ok, err = store.Acquire(ctx, "checkout:u2", "k1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ReleaseFreesKey", func(t *testing.T) {
		ok, err := store.Acquire(ctx, "checkout:u1", "k2")
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, store.Release(ctx, "checkout:u1", "k2"))

		ok, err = store.Acquire(ctx, "checkout:u1", "k2")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("RememberAndRecall", func(t *testing.T) {
		_, ok, err := store.Recall(ctx, "checkout:u1", "k3")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, store.Remember(ctx, "checkout:u1", "k3", "ORD-1-ABCDEFG"))

		number, ok, err := store.Recall(ctx, "checkout:u1", "k3")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "ORD-1-ABCDEFG", number)

		ttl, err := rdb.TTL(ctx, mapKey("checkout:u1", "k3")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	})
}

func TestNewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewClient(ctx, "redis://127.0.0.1:1/0")
	assert.Error(t, err)
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url")
	assert.Error(t, err)
}
