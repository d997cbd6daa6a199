// Package lock provides per-wallet mutual exclusion with bounded waits.
//
// Keys are always acquired in ascending order, so two callers locking the
// same pair of wallets in opposite directions can never deadlock.
package lock

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/baharkarakas/wallet-engine/internal/metrics"
)

var ErrTimeout = errors.New("lock wait timed out")

// Release frees every key taken by a single Acquire call. Calling it again is a no-op.
type Release func()

type Locker interface {
	Acquire(ctx context.Context, keys ...string) (Release, error)
}

// ordered returns keys sorted and de-duplicated.
func ordered(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}

func observe(start time.Time, err error) {
	outcome := "acquired"
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "canceled"
	}
	metrics.LockWait.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
