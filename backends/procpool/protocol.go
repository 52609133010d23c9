package procpool

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dargueta/bitpress"
	"github.com/fxamacker/cbor/v2"
)

// The wire protocol between the pool and a worker process is a CBOR
// stream over the worker's stdin/stdout: one request down, one
// response back, strictly alternating. CBOR items are self-delimiting,
// so there is no framing beyond the encoding itself.

// request is one task crossing the process boundary.
type request struct {
	// ID pairs the response with its request. The protocol is
	// lock-step per worker, so this is a consistency check rather
	// than a multiplexing key.
	ID      uint64 `cbor:"id"`
	Op      string `cbor:"op"`
	Payload []byte `cbor:"payload,omitempty"`
}

// response reports one task's outcome back to the pool. Errors cross
// the boundary as text; the original error values cannot.
type response struct {
	ID     uint64 `cbor:"id"`
	OK     bool   `cbor:"ok"`
	Error  string `cbor:"error,omitempty"`
	Result []byte `cbor:"result,omitempty"`
}

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding: the same request always produces identical bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder accepting standard CBOR.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("procpool: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("procpool: CBOR decoder initialization failed: " + err.Error())
	}
}

// ServeConn runs the worker side of the protocol: it decodes requests
// from `r`, executes them through the operation registry, and encodes
// one response per request to `w`, until `r` returns EOF. The pool
// closes the worker's stdin to shut it down, so EOF is the clean exit
// and returns nil.
//
// The host binary calls this from its hidden worker mode with the
// process's stdin and stdout; tests drive it in-process over pipes.
func ServeConn(ctx context.Context, r io.Reader, w io.Writer) error {
	decoder := decMode.NewDecoder(r)
	encoder := encMode.NewEncoder(w)

	for {
		var req request
		if err := decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("procpool: reading request: %w", err)
		}

		resp := response{ID: req.ID}
		result, err := bitpress.RunTask(
			ctx, bitpress.Task{Op: req.Op, Payload: req.Payload})
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.OK = true
			resp.Result = result
		}

		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("procpool: writing response: %w", err)
		}
	}
}
