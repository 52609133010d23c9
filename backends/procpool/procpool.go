// Package procpool provides the isolated-memory execution backend:
// a pool of worker subprocesses, each running the host binary in its
// hidden worker mode and speaking CBOR over its stdin/stdout.
//
// Every task's payload is serialized, written to a pipe, and
// deserialized on the far side, and the result makes the same trip
// back -- overhead proportional to payload size. What that buys is a
// hard wall between tasks: a worker shares no memory with its
// siblings or the parent, and a worker that crashes takes only its
// in-flight task with it. The economics favor coarse-grained work
// identified by small payloads -- compressing a whole file named by
// its path is the canonical unit here, costing a few dozen bytes per
// crossing. Dispatching individual rows this way would spend more on
// serialization than on encoding; use the shared-memory pool for
// those.
//
// Workers that die mid-task fail that task's handle; the remaining
// workers keep serving the queue. When the last worker is gone the
// pool refuses further work.
package procpool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dargueta/bitpress"
)

// WorkerCommandName is the subcommand the host binary must serve by
// calling [ServeConn] on its stdin/stdout. The pool launches workers
// as `<executable> rle-worker` unless [Options.Command] overrides it.
const WorkerCommandName = "rle-worker"

// Options configures a worker pool.
type Options struct {
	// Command is the argv used to launch each worker process. When
	// empty, the pool re-executes the current binary with
	// [WorkerCommandName] as its only argument.
	Command []string
}

// Pool is an isolated-memory [bitpress.Backend] backed by worker
// subprocesses.
type Pool struct {
	workers int
	nextID  atomic.Uint64

	mutex   sync.Mutex
	cond    *sync.Cond
	pending []*taskHandle
	closed  bool
	live    int

	wg sync.WaitGroup

	// spawn is replaced by tests to serve workers in-process.
	spawn func() (*worker, error)
}

// New launches `workers` worker processes and returns the pool once
// all of them have started. If `workers` is zero or negative, one
// worker per available CPU is launched.
func New(workers int, options Options) (*Pool, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	command := options.Command
	if len(command) == 0 {
		executable, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("procpool: cannot locate own binary: %w", err)
		}
		command = []string{executable, WorkerCommandName}
	}

	return newPool(workers, func() (*worker, error) {
		return spawnProcess(command)
	})
}

func newPool(workers int, spawn func() (*worker, error)) (*Pool, error) {
	p := &Pool{workers: workers, spawn: spawn}
	p.cond = sync.NewCond(&p.mutex)

	started := make([]*worker, 0, workers)
	for i := 0; i < workers; i++ {
		w, err := p.spawn()
		if err != nil {
			for _, earlier := range started {
				earlier.shutdown()
			}
			return nil, fmt.Errorf("procpool: starting worker %d: %w", i, err)
		}
		started = append(started, w)
	}

	p.live = workers
	p.wg.Add(workers)
	for _, w := range started {
		go p.serve(w)
	}
	return p, nil
}

// Workers returns the number of worker processes launched.
func (p *Pool) Workers() int {
	return p.workers
}

// Submit queues one task. It never blocks; the task is picked up by
// the next idle worker.
func (p *Pool) Submit(ctx context.Context, task bitpress.Task) (bitpress.Handle, error) {
	handle := &taskHandle{
		id:        p.nextID.Add(1),
		task:      task,
		submitCtx: ctx,
		done:      make(chan struct{}),
	}

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
// already queued, and shuts the worker processes down by closing
// their stdin. Close is idempotent.
func (p *Pool) Close() error {
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		p.wg.Wait()
		return nil
	}
	p.closed = true
	p.mutex.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
	return nil
}

// serve feeds one worker process until the pool is drained or the
// worker dies.
func (p *Pool) serve(w *worker) {
	defer p.wg.Done()
	defer w.shutdown()

	for {
		handle := p.next()
		if handle == nil {
			p.workerExited(nil)
			return
		}

		if err := handle.submitCtx.Err(); err != nil {
			handle.finish(nil, fmt.Errorf("%w: %w", bitpress.ErrTaskCanceled, err))
			continue
		}

		resp, err := w.call(handle.id, handle.task)
		if err != nil {
			// Transport failure: the worker process is gone. Its
			// in-flight task fails; everything still queued belongs to
			// the surviving workers.
			err = fmt.Errorf("procpool: worker died: %w", err)
			handle.finish(nil, err)
			p.workerExited(err)
			return
		}

		if resp.OK {
			handle.finish(resp.Result, nil)
		} else {
			handle.finish(nil, fmt.Errorf("procpool: task failed in worker: %s", resp.Error))
		}
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

// workerExited records one worker leaving the pool. When the last
// worker dies with work still queued, that work can never run: the
// pool closes itself and fails every pending handle.
func (p *Pool) workerExited(cause error) {
	p.mutex.Lock()
	p.live--
	lastOneOut := p.live == 0
	var orphans []*taskHandle
	if lastOneOut {
		p.closed = true
		orphans = p.pending
		p.pending = nil
	}
	p.mutex.Unlock()

	if cause == nil {
		cause = errors.New("procpool: no live workers")
	}
	for _, handle := range orphans {
		handle.finish(nil, cause)
	}
}

// taskHandle carries one task through the queue and delivers its
// outcome. finish happens exactly once; the closed channel publishes
// result and err to every Await.
type taskHandle struct {
	id        uint64
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

////////////////////////////////////////////////////////////////////////////////
// Workers

// worker is the pool's end of one worker process: an encoder for
// requests, a decoder for responses, and a shutdown hook. The
// protocol is lock-step, so a worker is used by one goroutine only.
type worker struct {
	call     func(id uint64, task bitpress.Task) (response, error)
	shutdown func() error
}

// newStreamWorker wires the pool's end of the protocol over a
// request/response stream pair.
func newStreamWorker(requests io.Writer, responses io.Reader, shutdown func() error) *worker {
	encoder := encMode.NewEncoder(requests)
	decoder := decMode.NewDecoder(responses)

	return &worker{
		call: func(id uint64, task bitpress.Task) (response, error) {
			req := request{ID: id, Op: task.Op, Payload: task.Payload}
			if err := encoder.Encode(req); err != nil {
				return response{}, err
			}
			var resp response
			if err := decoder.Decode(&resp); err != nil {
				return response{}, err
			}
			if resp.ID != id {
				return response{}, fmt.Errorf(
					"response for request %d arrived while waiting for %d", resp.ID, id)
			}
			return resp, nil
		},
		shutdown: shutdown,
	}
}

// spawnProcess launches one worker subprocess and wires the protocol
// over its standard streams. The worker's stderr passes through to
// ours so crash output is not swallowed.
func spawnProcess(command []string) (*worker, error) {
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return newStreamWorker(stdin, stdout, func() error {
		// Closing stdin is the shutdown signal; the worker exits when
		// its request stream hits EOF.
		stdin.Close()
		return cmd.Wait()
	}), nil
}
