package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalJobLockExcludesUntilReleased(t *testing.T) {
	ctx := context.Background()
	lock := NewLocalJobLock()

	release, ok, err := lock.Acquire(ctx, "batch-close:aaaa000001", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.Acquire(ctx, "batch-close:aaaa000001", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = lock.Acquire(ctx, "batch-settle:aaaa000001", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	release()
	_, ok, err = lock.Acquire(ctx, "batch-close:aaaa000001", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLocalJobLockExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	lock := NewLocalJobLock()
	lock.nowFn = func() time.Time { return now }

	staleRelease, ok, err := lock.Acquire(context.Background(), "job", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, err = lock.Acquire(context.Background(), "job", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// A stale holder must not release the newer lock.
	staleRelease()
	_, ok, err = lock.Acquire(context.Background(), "job", time.Second)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConnectAcceptsURLAndAddress(t *testing.T) {
	client, err := Connect(context.Background(), "redis://localhost:6390/2")
	require.NoError(t, err)
	require.Equal(t, "localhost:6390", client.Options().Addr)
	require.Equal(t, 2, client.Options().DB)
	require.NoError(t, client.Close())

	client, err = Connect(context.Background(), "cache:6379")
	require.NoError(t, err)
	require.Equal(t, "cache:6379", client.Options().Addr)
	require.NoError(t, client.Close())

	_, err = Connect(context.Background(), "redis://:bad@[::1")
	require.Error(t, err)
}
