package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// unlockLua deletes the lock key only while it still holds the caller's
// token, so an expired holder cannot release someone else's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// renewLua pushes the expiry out while the key still holds the caller's
// token.
const renewLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LockManager implements domain.KeyLocker with SET NX PX and a Lua
// conditional unlock. Lock polls until the key frees up or ctx ends. A held
// lock is renewed every ttl/3 until released, so ttl only bounds how long a
// crashed holder blocks the key, not how long a live holder may run.
type LockManager struct {
	c        *Client
	unlockSc *redis.Script
	renewSc  *redis.Script
	ttl      time.Duration
	poll     time.Duration
}

// NewLockManager creates a LockManager. ttl bounds how long a crashed
// holder can block a key; poll is the retry interval while waiting.
func NewLockManager(c *Client, ttl, poll time.Duration) *LockManager {
	if poll <= 0 {
		poll = 25 * time.Millisecond
	}
	return &LockManager{
		c:        c,
		unlockSc: redis.NewScript(unlockLua),
		renewSc:  redis.NewScript(renewLua),
		ttl:      ttl,
		poll:     poll,
	}
}

// TryAcquire makes a single attempt and returns domain.ErrLockHeld when
// another holder owns the key.
func (lm *LockManager) TryAcquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	lk := lm.c.key("lock", key)

	ok, err := lm.c.rdb.SetNX(ctx, lk, token, lm.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	stop := make(chan struct{})
	go lm.renew(lk, token, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			// The caller's context may already be cancelled.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.unlockSc.Run(unlockCtx, lm.c.rdb, []string{lk}, token).Err()
		})
	}, nil
}

// renew extends lk every ttl/3 until stop closes or the token is gone.
func (lm *LockManager) renew(lk, token string, stop <-chan struct{}) {
	every := lm.ttl / 3
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), every)
		n, err := lm.renewSc.Run(ctx, lm.c.rdb, []string{lk}, token, lm.ttl.Milliseconds()).Int64()
		cancel()
		if err == nil && n == 0 {
			// Expired or taken over; nothing left to renew.
			return
		}
	}
}

// Lock blocks until key is acquired or ctx is done.
func (lm *LockManager) Lock(ctx context.Context, key string) (func(), error) {
	ticker := time.NewTicker(lm.poll)
	defer ticker.Stop()

	for {
		unlock, err := lm.TryAcquire(ctx, key)
		if err == nil {
			return unlock, nil
		}
		if err != domain.ErrLockHeld {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis: wait for lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

var _ domain.KeyLocker = (*LockManager)(nil)
