package lock

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

// Local is an in-process keyed mutex: one weight-1 semaphore per key,
// dropped once nobody holds or waits on it.
type Local struct {
	mu      sync.Mutex
	slots   map[string]*slot
	timeout time.Duration
}

func NewLocal(timeout time.Duration) *Local {
	return &Local{slots: map[string]*slot{}, timeout: timeout}
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *Local) Acquire(ctx context.Context, keys ...string) (rel Release, err error) {
	start := time.Now()
	defer func() { observe(start, err) }()

	keys = ordered(keys)
	wctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	held := make([]*slot, 0, len(keys))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].sem.Release(1)
			l.unref(keys[i], held[i])
		}
	}

	for _, k := range keys {
		s := l.ref(k)
		if err := s.sem.Acquire(wctx, 1); err != nil {
			l.unref(k, s)
			unlock()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrTimeout
		}
		held = append(held, s)
	}

	var once sync.Once
	return func() { once.Do(unlock) }, nil
}
