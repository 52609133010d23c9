package bitpress

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Task is one independent unit of work: the name of a registered
// operation plus an opaque serialized payload. Expressing work as
// data rather than closures is what lets the same task run on an
// in-process goroutine pool or cross the boundary into a worker
// subprocess unchanged.
type Task struct {
	// Op is the operation name, as passed to [RegisterOp].
	Op string

	// Payload is the operation's input, in whatever encoding the
	// operation defines. Backends treat it as opaque bytes.
	Payload []byte
}

// Handle tracks one submitted Task. A task's failure is captured in
// its handle rather than raised at the submission site; the
// orchestrator decides what to do with it when it awaits.
type Handle interface {
	// Await blocks until the task finishes or `ctx` is done, and
	// returns the task's result bytes or its captured failure.
	// Await may be called more than once; every call returns the
	// same outcome.
	Await(ctx context.Context) ([]byte, error)
}

// Backend is the capability set every execution backend provides.
// Implementations own their workers' lifecycle completely; callers
// only ever hold handles.
//
// Submission never blocks: backends queue pending work internally.
// Results must be reassembled by submission order (completion order
// is arbitrary). Backends may cancel queued-but-unstarted tasks when
// the submitting context is canceled; tasks already running are
// allowed to finish.
type Backend interface {
	// Submit schedules one task and returns its handle.
	Submit(ctx context.Context, task Task) (Handle, error)

	// SubmitAll schedules tasks in order and returns their handles
	// in the same order. If submission fails partway, the handles
	// accepted so far are returned along with the error.
	SubmitAll(ctx context.Context, tasks []Task) ([]Handle, error)

	// Close stops accepting work, waits for in-flight tasks, and
	// releases the backend's workers. Close is idempotent.
	Close() error
}

// AwaitAll collects every handle's outcome, in handle order. The
// result slice always has one entry per handle; entries for failed
// tasks are nil and their failures are aggregated into the returned
// error.
func AwaitAll(ctx context.Context, handles []Handle) ([][]byte, error) {
	results := make([][]byte, len(handles))
	var failures *multierror.Error
	for i, handle := range handles {
		result, err := handle.Await(ctx)
		if err != nil {
			failures = multierror.Append(failures, fmt.Errorf("task %d: %w", i, err))
			continue
		}
		results[i] = result
	}
	return results, failures.ErrorOrNil()
}

// SubmitTasks is a convenience for backends implementing SubmitAll as
// a plain loop over Submit.
func SubmitTasks(ctx context.Context, be Backend, tasks []Task) ([]Handle, error) {
	handles := make([]Handle, 0, len(tasks))
	for _, task := range tasks {
		handle, err := be.Submit(ctx, task)
		if err != nil {
			return handles, err
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

// ReadyHandle returns a handle whose outcome is already decided.
// Synchronous backends and tests use it to satisfy the capture-in-
// handle failure contract.
func ReadyHandle(result []byte, err error) Handle {
	return readyHandle{result: result, err: err}
}

type readyHandle struct {
	result []byte
	err    error
}

func (h readyHandle) Await(context.Context) ([]byte, error) {
	return h.result, h.err
}
