package bitpress

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// OpFunc is the implementation behind one operation name: it takes the
// task's payload bytes and returns the result bytes. Implementations
// must be pure with respect to shared state -- backends run them from
// many goroutines, and the isolated-memory backend runs them in other
// processes entirely.
type OpFunc func(ctx context.Context, payload []byte) ([]byte, error)

var (
	opsMutex sync.RWMutex
	ops      = make(map[string]OpFunc)
)

// RegisterOp makes an operation available to every backend under
// `name`. It is intended to be called from package init functions, the
// same way image formats register their codecs; it panics if the name
// is empty, the function is nil, or the name is already taken.
//
// Registration is what ties the two halves of the execution model
// together: a Task carries only the name, so any process that has
// imported the registering package can run it.
func RegisterOp(name string, fn OpFunc) {
	if name == "" {
		panic("bitpress: RegisterOp with an empty operation name")
	}
	if fn == nil {
		panic(fmt.Sprintf("bitpress: RegisterOp(%q) with a nil function", name))
	}

	opsMutex.Lock()
	defer opsMutex.Unlock()
	if _, exists := ops[name]; exists {
		panic(fmt.Sprintf("bitpress: operation %q registered twice", name))
	}
	ops[name] = fn
}

// LookupOp returns the function registered under `name`, or
// [ErrUnknownOp] if there is none.
func LookupOp(name string) (OpFunc, error) {
	opsMutex.RLock()
	fn, exists := ops[name]
	opsMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, name)
	}
	return fn, nil
}

// RunTask executes a task in the calling goroutine. Backends use it as
// their innermost step; it is also the entire implementation of the
// [Serial] backend.
func RunTask(ctx context.Context, task Task) ([]byte, error) {
	fn, err := LookupOp(task.Op)
	if err != nil {
		return nil, err
	}
	return fn(ctx, task.Payload)
}

// OpNames returns the names of all registered operations, sorted.
func OpNames() []string {
	opsMutex.RLock()
	defer opsMutex.RUnlock()

	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
