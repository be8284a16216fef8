package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLockManager(t *testing.T) (*LockManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	lm := NewLockManager(rdb)
	lm.RetryInterval = time.Millisecond
	return lm, mr
}

func TestAcquire_Exclusive(t *testing.T) {
	lm, mr := newTestLockManager(t)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "auction:1", time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:auction:1"))

	_, err = lm.Acquire(ctx, "auction:1", time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	// Other keys are independent.
	other, err := lm.Acquire(ctx, "auction:2", time.Second)
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	assert.False(t, mr.Exists("lock:auction:1"))

	again, err := lm.Acquire(ctx, "auction:1", time.Second)
	require.NoError(t, err)
	again()
}

func TestAcquire_ExpiredHolderCannotReleaseNewLock(t *testing.T) {
	lm, mr := newTestLockManager(t)
	ctx := context.Background()

	stale, err := lm.Acquire(ctx, "auction:1", 100*time.Millisecond)
	require.NoError(t, err)
	mr.FastForward(200 * time.Millisecond)

	fresh, err := lm.Acquire(ctx, "auction:1", time.Second)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("lock:auction:1"))

	fresh()
	assert.False(t, mr.Exists("lock:auction:1"))
}

func TestAcquireWait_GivesUp(t *testing.T) {
	lm, _ := newTestLockManager(t)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "auction:1", time.Minute)
	require.NoError(t, err)
	defer unlock()

	_, err = lm.AcquireWait(ctx, "auction:1", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestAcquireWait_SucceedsAfterRelease(t *testing.T) {
	lm, _ := newTestLockManager(t)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "auction:1", time.Minute)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		unlock()
	}()

	got, err := lm.AcquireWait(ctx, "auction:1", 2*time.Second)
	require.NoError(t, err)
	got()
}

func TestAcquireWait_ContextCancelled(t *testing.T) {
	lm, _ := newTestLockManager(t)

	unlock, err := lm.Acquire(context.Background(), "auction:1", time.Minute)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = lm.AcquireWait(ctx, "auction:1", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
