package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/baharkarakas/wallet-engine/internal/metrics"
)

var ErrStopped = errors.New("worker pool stopped")

type task func(ctx context.Context)

// Pool runs tasks off the request path. Tasks get the pool's context, which
// is canceled on Stop once the queue has drained.
type Pool struct {
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	jobs   chan task
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPool(n, queue int) *Pool {
	if n <= 0 {
		n = 1
	}
	if queue <= 0 {
		queue = 1024
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{jobs: make(chan task, queue), ctx: ctx, cancel: cancel}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				metrics.WorkerQueueDepth.Dec()
				p.run(job)
			}
		}()
	}
	return p
}

func (p *Pool) run(job task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker task panicked", "panic", r)
		}
	}()
	job(p.ctx)
}

// Submit queues f, blocking while the queue is full.
func (p *Pool) Submit(f func(ctx context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrStopped
	}
	metrics.WorkerQueueDepth.Inc()
	p.jobs <- f
	return nil
}

// Stop drains queued tasks and waits for the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}
