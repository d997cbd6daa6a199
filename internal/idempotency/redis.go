package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baharkarakas/wallet-engine/internal/errs"
)

// Redis shares keys between API replicas.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: "wallet:idem:", ttl: ttl}
}

func (r *Redis) Begin(ctx context.Context, key string) (string, bool, error) {
	k := r.prefix + key
	ok, err := r.client.SetNX(ctx, k, pending, r.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%w: idempotency reserve: %w", errs.ErrStorageFault, err)
	}
	if ok {
		return "", false, nil
	}
	v, err := r.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return r.Begin(ctx, key)
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: idempotency lookup: %w", errs.ErrStorageFault, err)
	}
	if v == pending {
		return "", false, errs.ErrInProgress
	}
	return v, true, nil
}

func (r *Redis) Finish(ctx context.Context, key, txnID string) error {
	return r.client.Set(ctx, r.prefix+key, txnID, r.ttl).Err()
}

func (r *Redis) Abort(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
