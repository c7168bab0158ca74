package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLock(t *testing.T, ttl time.Duration) (*RedisLock, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLock(rdb, "phoneverse:automation:lock", ttl), mr
}

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	l, mr := newLock(t, time.Minute)

	release, ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("phoneverse:automation:lock"))

	_, ok, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("phoneverse:automation:lock"))

	_, ok, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpiresAndStaleReleaseIsHarmless(t *testing.T) {
	ctx := context.Background()
	l, mr := newLock(t, time.Second)

	staleRelease, ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, staleRelease(ctx))
	assert.True(t, mr.Exists("phoneverse:automation:lock"), "stale holder must not drop the new lease")
}

func TestRedisLockReportsConnectionErrors(t *testing.T) {
	l, mr := newLock(t, time.Minute)
	mr.Close()

	_, ok, err := l.Acquire(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}
