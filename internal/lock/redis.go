package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis locks wallets across processes with SET NX PX. The lease TTL bounds
// how long a crashed holder can block others.
type Redis struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	lease   time.Duration
	retry   time.Duration
}

func NewRedis(client *redis.Client, timeout, lease time.Duration) *Redis {
	return &Redis{
		client:  client,
		prefix:  "wallet:lock:",
		timeout: timeout,
		lease:   lease,
		retry:   10 * time.Millisecond,
	}
}

func (r *Redis) Acquire(ctx context.Context, keys ...string) (rel Release, err error) {
	start := time.Now()
	defer func() { observe(start, err) }()

	keys = ordered(keys)
	deadline := start.Add(r.timeout)
	token := uuid.NewString()

	held := make([]string, 0, len(keys))
	unlock := func() {
		// release must succeed even if the caller's ctx is gone
		bg, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := unlockScript.Run(bg, r.client, []string{held[i]}, token).Err(); err != nil {
				slog.Warn("redis unlock", "key", held[i], "err", err)
			}
		}
	}

	for _, k := range keys {
		key := r.prefix + k
		for {
			ok, err := r.client.SetNX(ctx, key, token, r.lease).Result()
			if err != nil {
				unlock()
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, fmt.Errorf("redis lock %s: %w", key, err)
			}
			if ok {
				held = append(held, key)
				break
			}
			if time.Now().After(deadline) {
				unlock()
				return nil, ErrTimeout
			}
			select {
			case <-time.After(r.retry):
			case <-ctx.Done():
				unlock()
				return nil, ctx.Err()
			}
		}
	}

	var once sync.Once
	return func() { once.Do(unlock) }, nil
}
