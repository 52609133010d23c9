package bitpress

import (
	"errors"
	"fmt"
)

// Errors raised by the codec. They are sentinel values so callers can
// classify failures with errors.Is regardless of the wrapping context
// added on the way up.
var ErrInvalidRunLength = errors.New("run byte encodes a zero-length run")
var ErrRowLengthMismatch = errors.New("decoded bits do not line up with the row width")
var ErrTruncatedContainer = errors.New("container ends before the last row is complete")
var ErrTrailingData = errors.New("container has extra bytes past the last row")
var ErrImageTooLarge = errors.New("image dimensions exceed the 16-bit container limit")

// Errors raised by the execution layer.
var ErrUnknownOp = errors.New("no operation registered under this name")
var ErrBackendClosed = errors.New("execution backend is closed")
var ErrTaskCanceled = errors.New("task canceled before it started")

// IsDecodeError reports whether `err` is one of the malformed-stream
// conditions a decoder can produce. These indicate bad input data, as
// opposed to I/O failures or misuse of the API.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrInvalidRunLength) ||
		errors.Is(err, ErrRowLengthMismatch) ||
		errors.Is(err, ErrTruncatedContainer)
}

// DecodeErrorAt wraps a decode sentinel with the byte offset where the
// defect was found, preserving errors.Is classification.
func DecodeErrorAt(sentinel error, offset int64) error {
	return fmt.Errorf("%w (container offset %d)", sentinel, offset)
}
