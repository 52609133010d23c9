package bitpress

import (
	"context"
	"sync"
)

// Serial is the degenerate [Backend]: it runs every task in the
// submitting goroutine, at submission time. There is no parallelism
// and no queue, which makes it the reference implementation the
// parallel backends are tested against, and the sensible choice for
// tiny inputs where worker startup would cost more than the work.
//
// The zero value is ready to use.
type Serial struct {
	mutex  sync.Mutex
	closed bool
}

// NewSerial returns a ready-to-use serial backend.
func NewSerial() *Serial {
	return &Serial{}
}

// Submit runs the task immediately and returns a handle holding its
// outcome. Failures still surface through the handle, never here;
// Submit itself only fails if the backend is closed.
func (be *Serial) Submit(ctx context.Context, task Task) (Handle, error) {
	be.mutex.Lock()
	closed := be.closed
	be.mutex.Unlock()
	if closed {
		return nil, ErrBackendClosed
	}

	if err := ctx.Err(); err != nil {
		return ReadyHandle(nil, err), nil
	}
	result, err := RunTask(ctx, task)
	return ReadyHandle(result, err), nil
}

// SubmitAll runs the tasks in order, one at a time.
func (be *Serial) SubmitAll(ctx context.Context, tasks []Task) ([]Handle, error) {
	return SubmitTasks(ctx, be, tasks)
}

// Close marks the backend closed. There are never in-flight tasks to
// wait for.
func (be *Serial) Close() error {
	be.mutex.Lock()
	be.closed = true
	be.mutex.Unlock()
	return nil
}
