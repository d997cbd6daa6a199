package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisLocker(t *testing.T) {
	c := setupRedis(t)
	l := NewRedis(c, 50*time.Millisecond, 5*time.Second)
	ctx := context.Background()
	a, b := uuid.NewString(), uuid.NewString()

	rel, err := l.Acquire(ctx, b, a)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, a)
	assert.ErrorIs(t, err, ErrTimeout)

	rel()
	rel2, err := l.Acquire(ctx, a)
	require.NoError(t, err)
	rel2()

	n, err := c.Exists(ctx, "wallet:lock:"+a, "wallet:lock:"+b).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisUnlockKeepsForeignToken(t *testing.T) {
	c := setupRedis(t)
	l := NewRedis(c, 50*time.Millisecond, 50*time.Millisecond)
	ctx := context.Background()
	k := uuid.NewString()

	rel, err := l.Acquire(ctx, k)
	require.NoError(t, err)
	// lease expires and someone else takes the key
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, c.Set(ctx, "wallet:lock:"+k, "other", time.Second).Err())

	rel()
	v, err := c.Get(ctx, "wallet:lock:"+k).Result()
	require.NoError(t, err)
	assert.Equal(t, "other", v)
}
