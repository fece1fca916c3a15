// Package redis provides a Redis-backed Locker for coordinating runs
// across processes.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/lenML/pflow/pkg/ports"
)

// releaseScript deletes the lock key only when the stored token matches,
// so an expired lock re-acquired by another holder is never released by us.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

const pollInterval = 100 * time.Millisecond

// Locker implements ports.Locker using Redis SET NX with a TTL.
type Locker struct {
	client *backend.Client
	prefix string
}

// NewLocker creates a Locker whose keys are namespaced under prefix.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

// Acquire polls SET NX until the lock is held or ctx is canceled. The lock
// auto-expires after ttl if the holder dies without releasing.
func (l *Locker) Acquire(ctx context.Context, id string, ttl time.Duration) (ports.ReleaseFunc, error) {
	key := l.prefix + "lock:" + id
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		held, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: acquire %s: %w", id, err)
		}
		if held {
			release := func(ctx context.Context) error {
				return l.client.Eval(ctx, releaseScript, []string{key}, token).Err()
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
