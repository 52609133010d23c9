// Package pool provides the shared-memory execution backend: a fixed
// set of worker goroutines pulling tasks from one pending queue.
//
// Everything stays in one address space, so submitting a task costs an
// allocation and a queue append -- payload bytes are passed by
// reference, never copied. That makes this the right backend for
// dispatching many small units of work, such as the rows of a single
// image. The flip side is that tasks share the process's memory, which
// is only safe because registered operations are pure functions of
// their payloads.
//
// Tasks may finish in any order; callers reassemble results in
// submission order via their handles.
package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/dargueta/bitpress"
)

// Pool is a shared-memory [bitpress.Backend] backed by goroutines.
type Pool struct {
	workers int

	mutex   sync.Mutex
	cond    *sync.Cond
	pending []*taskHandle
	closed  bool

	wg sync.WaitGroup
}

// New starts a pool of `workers` goroutines. If `workers` is zero or
// negative, one worker per available CPU is started.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{workers: workers}
	p.cond = sync.NewCond(&p.mutex)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Submit queues one task. It never blocks: the pending queue is
// unbounded, and the returned handle is the only completion path.
func (p *Pool) Submit(ctx context.Context, task bitpress.Task) (bitpress.Handle, error) {
	handle := &taskHandle{task: task, submitCtx: ctx, done: make(chan struct{})}

	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return nil, bitpress.ErrBackendClosed
	}
	p.pending = append(p.pending, handle)
	p.mutex.Unlock()

	p.cond.Signal()
	return handle, nil
}

// SubmitAll queues the tasks in order and returns their handles in the
// same order.
func (p *Pool) SubmitAll(ctx context.Context, tasks []bitpress.Task) ([]bitpress.Handle, error) {
	return bitpress.SubmitTasks(ctx, p, tasks)
}

// Close stops accepting work, lets the workers finish everything
// already queued, and returns once they have all exited. Every handle
// handed out before Close completes. Close is idempotent.
func (p *Pool) Close() error {
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return nil
	}
	p.closed = true
	p.mutex.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
	return nil
}

// worker runs tasks until the pool is closed and the queue is empty.
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		handle := p.next()
		if handle == nil {
			return
		}

		// Cancellation is best-effort and only for queued work: a task
		// whose submitting context died before it started is failed
		// without running. Once started, a task runs to completion.
		if err := handle.submitCtx.Err(); err != nil {
			handle.finish(nil, fmt.Errorf("%w: %w", bitpress.ErrTaskCanceled, err))
			continue
		}

		handle.finish(bitpress.RunTask(handle.submitCtx, handle.task))
	}
}

// next blocks until a task is pending or the pool is closed. It
// returns nil only when the pool is closed and fully drained.
func (p *Pool) next() *taskHandle {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for len(p.pending) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.pending) == 0 {
		return nil
	}

	handle := p.pending[0]
	p.pending[0] = nil
	p.pending = p.pending[1:]
	return handle
}

// taskHandle carries one task through the queue and delivers its
// outcome. finish happens exactly once; the closed channel publishes
// result and err to every Await.
type taskHandle struct {
	task      bitpress.Task
	submitCtx context.Context

	done   chan struct{}
	result []byte
	err    error
}

func (h *taskHandle) finish(result []byte, err error) {
	h.result = result
	h.err = err
	close(h.done)
}

func (h *taskHandle) Await(ctx context.Context) ([]byte, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
