package rbi

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/dargueta/bitpress"
	"github.com/dargueta/bitpress/backends/pool"
	"github.com/dargueta/bitpress/raster"
)

// Names of the operations this package registers. They are the units
// the batch layer submits: one task per file, payloads carrying file
// names rather than pixels, so they stay cheap to ship to worker
// subprocesses.
const (
	OpCompressFile   = "rbi/compress-file"
	OpDecompressFile = "rbi/decompress-file"
)

// Row backend specs accepted in a [FileRequest]. The row backend runs
// inside whatever process executes the file task, so only in-process
// choices exist here; nesting another layer of subprocesses under a
// worker would multiply processes without adding parallelism.
const (
	RowBackendSerial = "serial"
	RowBackendPool   = "pool"
)

func init() {
	bitpress.RegisterOp(OpCompressFile, compressFileOp)
	bitpress.RegisterOp(OpDecompressFile, decompressFileOp)
}

// FileRequest is the payload of the file operations, CBOR-encoded so
// it crosses the process boundary as-is.
type FileRequest struct {
	// InputPath and OutputPath name the files to read and write. The
	// output's format follows its extension.
	InputPath  string `cbor:"in"`
	OutputPath string `cbor:"out"`

	// RowBackend picks how rows are compressed within this task:
	// [RowBackendSerial] (the default) or [RowBackendPool].
	RowBackend string `cbor:"row_backend,omitempty"`

	// RowWorkers sizes the row pool; zero or less means one worker
	// per CPU. Ignored for the serial backend.
	RowWorkers int `cbor:"row_workers,omitempty"`

	// BlackBelow overrides the luminance threshold for grayscale and
	// color inputs; zero means the raster default.
	BlackBelow uint8 `cbor:"black_below,omitempty"`
}

// FileResult is what the file operations return, CBOR-encoded. The
// duration is measured inside the operation, so it stays meaningful
// when tasks run concurrently.
type FileResult struct {
	InputBytes    int64 `cbor:"in_bytes"`
	OutputBytes   int64 `cbor:"out_bytes"`
	Width         int   `cbor:"width"`
	Height        int   `cbor:"height"`
	TrailingBytes int   `cbor:"trailing,omitempty"`
	DurationMS    int64 `cbor:"duration_ms,omitempty"`
}

// CompressFileTask builds the task that compresses one raster file
// into a container file.
func CompressFileTask(request FileRequest) (bitpress.Task, error) {
	return fileTask(OpCompressFile, request)
}

// DecompressFileTask builds the task that expands one container file
// back into a raster file.
func DecompressFileTask(request FileRequest) (bitpress.Task, error) {
	return fileTask(OpDecompressFile, request)
}

func fileTask(op string, request FileRequest) (bitpress.Task, error) {
	payload, err := cbor.Marshal(&request)
	if err != nil {
		return bitpress.Task{}, fmt.Errorf("%s: encoding request: %w", op, err)
	}
	return bitpress.Task{Op: op, Payload: payload}, nil
}

func decodeFileRequest(op string, payload []byte) (FileRequest, error) {
	var request FileRequest
	if err := cbor.Unmarshal(payload, &request); err != nil {
		return FileRequest{}, fmt.Errorf("%s: decoding request: %w", op, err)
	}
	if request.InputPath == "" || request.OutputPath == "" {
		return FileRequest{}, fmt.Errorf("%s: request needs both file paths", op)
	}
	return request, nil
}

func newRowBackend(request FileRequest) (bitpress.Backend, error) {
	switch request.RowBackend {
	case "", RowBackendSerial:
		return bitpress.NewSerial(), nil
	case RowBackendPool:
		return pool.New(request.RowWorkers), nil
	default:
		return nil, fmt.Errorf("unknown row backend %q", request.RowBackend)
	}
}

func compressFileOp(ctx context.Context, payload []byte) ([]byte, error) {
	started := time.Now()
	request, err := decodeFileRequest(OpCompressFile, payload)
	if err != nil {
		return nil, err
	}

	var options *raster.Options
	if request.BlackBelow != 0 {
		options = &raster.Options{BlackBelow: request.BlackBelow}
	}
	img, err := raster.Load(request.InputPath, options)
	if err != nil {
		return nil, err
	}

	backend, err := newRowBackend(request)
	if err != nil {
		return nil, err
	}
	defer backend.Close()

	output, err := os.Create(request.OutputPath)
	if err != nil {
		return nil, err
	}
	written, err := Encode(ctx, output, img, backend)
	if err != nil {
		output.Close()
		return nil, fmt.Errorf("%s: %w", request.OutputPath, err)
	}
	if err := output.Close(); err != nil {
		return nil, err
	}

	return encodeFileResult(FileResult{
		InputBytes:  fileSizeOrZero(request.InputPath),
		OutputBytes: written,
		Width:       img.Width(),
		Height:      img.Height(),
		DurationMS:  time.Since(started).Milliseconds(),
	})
}

func decompressFileOp(_ context.Context, payload []byte) ([]byte, error) {
	started := time.Now()
	request, err := decodeFileRequest(OpDecompressFile, payload)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(request.InputPath)
	if err != nil {
		return nil, err
	}
	img, trailing, err := DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", request.InputPath, err)
	}

	if err := raster.Save(img, request.OutputPath); err != nil {
		return nil, err
	}

	return encodeFileResult(FileResult{
		InputBytes:    int64(len(data)),
		OutputBytes:   fileSizeOrZero(request.OutputPath),
		Width:         img.Width(),
		Height:        img.Height(),
		TrailingBytes: trailing,
		DurationMS:    time.Since(started).Milliseconds(),
	})
}

func encodeFileResult(result FileResult) ([]byte, error) {
	encoded, err := cbor.Marshal(&result)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return encoded, nil
}

// DecodeFileResult unpacks a file operation's result bytes.
func DecodeFileResult(encoded []byte) (FileResult, error) {
	var result FileResult
	if err := cbor.Unmarshal(encoded, &result); err != nil {
		return FileResult{}, fmt.Errorf("decoding file task result: %w", err)
	}
	return result, nil
}

func fileSizeOrZero(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
