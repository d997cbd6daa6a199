// Package idempotency remembers which transaction an Idempotency-Key produced,
// so a retried request replays the original record instead of moving money twice.
package idempotency

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/baharkarakas/wallet-engine/internal/errs"
)

// pending marks a key whose request is still running.
const pending = "\x00pending"

type Store interface {
	// Begin reserves key. When the key already completed it returns the
	// recorded transaction id and replay=true; when another request holds
	// it, errs.ErrInProgress.
	Begin(ctx context.Context, key string) (txnID string, replay bool, err error)
	// Finish records the transaction id produced under key.
	Finish(ctx context.Context, key, txnID string) error
	// Abort frees key so the request can be retried.
	Abort(ctx context.Context, key string) error
}

// Memory keeps keys in process with go-cache.
type Memory struct {
	c   *cache.Cache
	ttl time.Duration
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{c: cache.New(ttl, 2*ttl), ttl: ttl}
}

func (m *Memory) Begin(ctx context.Context, key string) (string, bool, error) {
	if err := m.c.Add(key, pending, m.ttl); err == nil {
		return "", false, nil
	}
	v, ok := m.c.Get(key)
	if !ok {
		// expired between Add and Get; take it
		return m.Begin(ctx, key)
	}
	id := v.(string)
	if id == pending {
		return "", false, errs.ErrInProgress
	}
	return id, true, nil
}

func (m *Memory) Finish(ctx context.Context, key, txnID string) error {
	m.c.Set(key, txnID, m.ttl)
	return nil
}

func (m *Memory) Abort(ctx context.Context, key string) error {
	m.c.Delete(key)
	return nil
}
