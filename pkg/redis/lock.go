package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock key only if it still holds our token, so a
// worker that outlived its lock TTL cannot release a lock someone else holds.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// Lock is a short-lived mutual-exclusion lock backed by SET NX PX. It bounds
// the window of concurrent registration attempts on one (question, property)
// pair; the database unique index remains the final authority if the TTL is
// ever exceeded.
type Lock struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
}

// AcquireLock attempts to take the lock without waiting. It returns
// (nil, false, nil) when someone else holds it.
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, bool, error) {
	token := uuid.NewString()

	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	return &Lock{client: c, key: key, token: token, ttl: ttl}, true, nil
}

// Release frees the lock. Safe to call after expiry; an expired or stolen lock
// is logged and ignored.
func (l *Lock) Release(ctx context.Context) {
	released, err := releaseScript.Run(ctx, l.client.client, []string{l.key}, l.token).Int()
	if err != nil {
		l.client.logger.Warn("Failed to release lock", zap.String("key", l.key), zap.Error(err))
		return
	}
	if released == 0 {
		l.client.logger.Warn("Lock expired before release", zap.String("key", l.key))
	}
}
