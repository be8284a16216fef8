package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock already held")

// unlockLua deletes the lock key only if it still holds the caller's token,
// so an expired holder cannot release a lock taken over by someone else.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager hands out per-key mutual exclusion using SET NX with a TTL.
type LockManager struct {
	rdb      *redis.Client
	unlockSc *redis.Script

	// RetryInterval is the pause between attempts in AcquireWait.
	RetryInterval time.Duration
}

func NewLockManager(rdb *redis.Client) *LockManager {
	return &LockManager{
		rdb:           rdb,
		unlockSc:      redis.NewScript(unlockLua),
		RetryInterval: 25 * time.Millisecond,
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire makes a single attempt to take the lock for key. On success it
// returns an unlock function that is safe to call more than once.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	released := false
	unlock := func() {
		if released {
			return
		}
		released = true

		// The caller's context may already be cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = lm.unlockSc.Run(unlockCtx, lm.rdb, []string{lk}, token).Err()
	}

	return unlock, nil
}

// AcquireWait retries Acquire until it succeeds, ctx is done or ttl has
// elapsed. It returns ErrLockHeld if the lock never became free.
func (lm *LockManager) AcquireWait(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	deadline := time.Now().Add(ttl)
	for {
		unlock, err := lm.Acquire(ctx, key, ttl)
		if !errors.Is(err, ErrLockHeld) {
			return unlock, err
		}
		if time.Now().Add(lm.RetryInterval).After(deadline) {
			return nil, ErrLockHeld
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lm.RetryInterval):
		}
	}
}
