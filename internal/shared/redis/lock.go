package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// DefaultRunLockKey is shared by every engine instance
const DefaultRunLockKey = "notification-engine:run-lock"

// releaseScript deletes the key only while it still holds our token
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the TTL only while the key still holds our token
var refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// NewClient creates a go-redis client
func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// RunLock is a single-holder lock with a TTL so a crashed run cannot block
// later ones forever. While held, the TTL is extended every third of its
// length, so a run that outlives the TTL keeps the lock.
type RunLock struct {
	client goredis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRunLock creates a lock stored at key
func NewRunLock(client goredis.UniversalClient, key string, ttl time.Duration) *RunLock {
	if key == "" {
		key = DefaultRunLockKey
	}
	return &RunLock{client: client, key: key, ttl: ttl}
}

// Acquire takes the lock for token. It returns domain.ErrRunInProgress when
// another token holds it.
func (l *RunLock) Acquire(ctx context.Context, token string) (func(context.Context) error, error) {
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrRunInProgress
	}

	refreshCtx, stopRefresh := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go l.keepAlive(refreshCtx, token, done)

	release := func(ctx context.Context) error {
		stopRefresh()
		<-done
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release run lock: %w", err)
		}
		return nil
	}
	return release, nil
}

// keepAlive extends the lock until ctx ends or the token no longer holds it
func (l *RunLock) keepAlive(ctx context.Context, token string, done chan<- struct{}) {
	defer close(done)
	if l.ttl <= 0 {
		return
	}
	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := refreshScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
			if err == nil && held == 0 {
				return
			}
		}
	}
}
