package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// chainPool runs jobs on a fixed set of goroutines fed by a bounded queue.
// handle delivers its own results; a panic inside it is turned into an error
// passed to onPanic so one bad chain does not take the worker down.
type chainPool[J any] struct {
	jobs    chan J
	handle  func(ctx context.Context, job J)
	onPanic func(job J, err error)
	active  atomic.Int64
	workers sync.WaitGroup

	mu      sync.RWMutex
	drained bool
}

func newChainPool[J any](ctx context.Context, workers, depth int, handle func(context.Context, J), onPanic func(J, error)) *chainPool[J] {
	if workers < 1 {
		workers = 1
	}
	p := &chainPool[J]{
		jobs:    make(chan J, depth),
		handle:  handle,
		onPanic: onPanic,
	}
	p.workers.Add(workers)
	for range workers {
		go p.loop(ctx)
	}
	return p
}

func (p *chainPool[J]) loop(ctx context.Context) {
	defer p.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.exec(ctx, job)
		}
	}
}

func (p *chainPool[J]) exec(ctx context.Context, job J) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(job, fmt.Errorf("chain panicked: %v", r))
		}
	}()
	p.handle(ctx, job)
}

// TrySubmit enqueues job if there is room. It never blocks and reports
// false once the pool is full or drained.
func (p *chainPool[J]) TrySubmit(job J) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.drained {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Drain stops intake and waits for queued and running jobs. Repeated calls
// only wait.
func (p *chainPool[J]) Drain() {
	p.mu.Lock()
	if !p.drained {
		p.drained = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.workers.Wait()
}

// Pending is the number of jobs waiting for a worker.
func (p *chainPool[J]) Pending() int { return len(p.jobs) }

// Depth is the queue capacity.
func (p *chainPool[J]) Depth() int { return cap(p.jobs) }

// Active is the number of jobs currently executing.
func (p *chainPool[J]) Active() int { return int(p.active.Load()) }
