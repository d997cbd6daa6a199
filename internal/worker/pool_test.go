package worker

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsEverythingBeforeStop(t *testing.T) {
	p := NewPool(4, 16)
	var n atomic.Int64
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Submit(func(ctx context.Context) { n.Add(1) }))
	}
	p.Stop()
	assert.Equal(t, int64(100), n.Load())
}

func TestPoolSurvivesPanic(t *testing.T) {
	p := NewPool(1, 4)
	var ran atomic.Bool
	require.NoError(t, p.Submit(func(ctx context.Context) { panic("boom") }))
	require.NoError(t, p.Submit(func(ctx context.Context) { ran.Store(true) }))
	p.Stop()
	assert.True(t, ran.Load())
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1)
	p.Stop()
	p.Stop()
	assert.ErrorIs(t, p.Submit(func(ctx context.Context) {}), ErrStopped)
}
