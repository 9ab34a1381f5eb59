package movement

import (
	"context"
	"errors"
	"sync"
)

// axisJob is one per-axis unit of work dispatched by a Move: run fn, then
// report err via JobResult.Wait. This is adapted from the teacher
// microbatch.Batcher (ping/pong job submission over channels, a done
// channel per batch, JobResult.Wait blocking on it) but generalized from
// "accumulate until MaxSize/FlushInterval" batching to "at most three
// jobs, one per moving axis, flushed immediately" — a Move never waits to
// accumulate more work, since the axis fan-out is known at submission time.
type axisJob struct {
	fn func(ctx context.Context) error
}

// jobResult mirrors microbatch.JobResult: Wait blocks until the owning
// batch's worker has run fn and recorded err.
type jobResult struct {
	done chan struct{}
	err  error
}

func (r *jobResult) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return r.err
	}
}

// workerPool runs axisJobs on a fixed number of long-lived goroutines,
// exactly the "3 motion workers (one per axis) inside Movement" that
// spec.md §5 requires. Unlike microbatch.Batcher, there is no
// accumulation window: Submit immediately hands the job to the queue of
// the worker with the given index, blocking until that worker takes it.
type workerPool struct {
	queues []chan jobEnvelope
	wg     sync.WaitGroup
	once   sync.Once
	closed chan struct{}
}

type jobEnvelope struct {
	job    axisJob
	result *jobResult
}

// newWorkerPool starts n workers, one queue each, matching the "3 workers,
// one per axis" assignment in Submit (worker index == axis index).
func newWorkerPool(n int) *workerPool {
	p := &workerPool{
		queues: make([]chan jobEnvelope, n),
		closed: make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan jobEnvelope)
		p.wg.Add(1)
		go p.run(i)
	}
	return p
}

func (p *workerPool) run(i int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.closed:
			return
		case env := <-p.queues[i]:
			env.result.err = env.job.fn(context.Background())
			close(env.result.done)
		}
	}
}

var errPoolClosed = errors.New("movement: worker pool closed")

// Submit assigns fn to worker index workerIdx (one worker per axis, so
// concurrent axis moves never contend for the same worker) and returns a
// jobResult the caller awaits with Wait.
func (p *workerPool) Submit(ctx context.Context, workerIdx int, fn func(ctx context.Context) error) (*jobResult, error) {
	res := &jobResult{done: make(chan struct{})}
	env := jobEnvelope{job: axisJob{fn: fn}, result: res}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, errPoolClosed
	case p.queues[workerIdx] <- env:
		return res, nil
	}
}

// Close stops all workers and waits for them to exit. Owned and joined by
// Coordinator on destruction, per spec.md §4.3.
func (p *workerPool) Close() {
	p.once.Do(func() { close(p.closed) })
	p.wg.Wait()
}
