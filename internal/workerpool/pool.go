// Package workerpool runs one job on every worker of a fixed-size pool and
// provides the bounded queues the job bodies use to hand work around.
package workerpool

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/reindex/internal/debug"
)

// BlockInterval is how long consumers wait on a result queue before logging
// progress and waiting again.
const BlockInterval = 250 * time.Millisecond

// WorkerPool is a fixed number of workers. A pool of size 0 runs every job
// inline on the calling goroutine.
type WorkerPool struct {
	size int
}

// New creates a pool with size workers. Negative sizes are treated as 0.
func New(size int) *WorkerPool {
	return &WorkerPool{size: max(0, size)}
}

func (p *WorkerPool) Size() int { return p.size }

// Job is a multiplexed job in flight.
type Job struct {
	name string
	g    *errgroup.Group
}

// Wait blocks until every worker has returned from the job body.
func (j *Job) Wait() error {
	if j.g == nil {
		return nil
	}
	return j.g.Wait()
}

// MultiplexJob runs fn once on every worker and returns without waiting for
// completion. On a zero-size pool fn runs once, inline, before MultiplexJob
// returns. Job bodies hand results back through a BlockingBoundedQueue.
func (p *WorkerPool) MultiplexJob(ctx context.Context, name string, fn func(ctx context.Context) error) *Job {
	if p.size == 0 {
		if err := fn(ctx); err != nil {
			debug.Log(debug.ComponentIndex, "job %s failed inline: %v", name, err)
		}
		return &Job{name: name}
	}

	g, gctx := errgroup.WithContext(ctx)
	for range p.size {
		g.Go(func() error {
			return fn(gctx)
		})
	}
	debug.Log(debug.ComponentIndex, "job %s multiplexed on %d workers", name, p.size)
	return &Job{name: name, g: g}
}
