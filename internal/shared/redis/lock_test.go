package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

func setupLock(t *testing.T) (*miniredis.Miniredis, *RunLock) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { client.Close() })
	return mr, NewRunLock(client, "", time.Minute)
}

func TestRunLock_Exclusive(t *testing.T) {
	mr, lock := setupLock(t)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, "run-a", mustGet(t, mr, DefaultRunLockKey))

	_, err = lock.Acquire(ctx, "run-b")
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists(DefaultRunLockKey))

	_, err = lock.Acquire(ctx, "run-b")
	assert.NoError(t, err)
}

func TestRunLock_ExpiresAfterTTL(t *testing.T) {
	mr, lock := setupLock(t)
	ctx := context.Background()

	_, err := lock.Acquire(ctx, "run-a")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = lock.Acquire(ctx, "run-b")
	assert.NoError(t, err)
}

func TestRunLock_StaleReleaseKeepsNewHolder(t *testing.T) {
	mr, lock := setupLock(t)
	ctx := context.Background()

	releaseA, err := lock.Acquire(ctx, "run-a")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = lock.Acquire(ctx, "run-b")
	require.NoError(t, err)

	require.NoError(t, releaseA(ctx))
	assert.Equal(t, "run-b", mustGet(t, mr, DefaultRunLockKey))
}

func TestRunLock_ExtendedWhileHeld(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { client.Close() })

	lock := NewRunLock(client, "", 300*time.Millisecond)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "run-a")
	require.NoError(t, err)

	// a long run is close to the original expiry
	mr.FastForward(250 * time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL(DefaultRunLockKey) > 200*time.Millisecond
	}, 2*time.Second, 20*time.Millisecond)

	_, err = lock.Acquire(ctx, "run-b")
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists(DefaultRunLockKey))

	// refreshing has stopped, so the key is not recreated
	time.Sleep(250 * time.Millisecond)
	assert.False(t, mr.Exists(DefaultRunLockKey))
	require.NoError(t, release(ctx))
}

func TestRunLock_BackendDown(t *testing.T) {
	mr, lock := setupLock(t)
	mr.Close()

	_, err := lock.Acquire(context.Background(), "run-a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRunInProgress)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
