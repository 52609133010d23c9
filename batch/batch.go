// Package batch runs the codec over whole directories: one task per
// file submitted to an outer execution backend, with each file task
// free to run its own row backend internally.
//
// The outer and inner backends multiply. A process pool of N workers
// whose file tasks each open an M-worker row pool occupies N*M
// goroutines' worth of CPU; the arrangement that pays best is an
// isolated-memory outer backend (tasks name files, so payloads stay
// tiny) over a shared-memory inner one. Callers picking both sizes by
// hand should size for N*M near the machine's core count.
//
// One file's failure never stops its siblings: each failure lands in
// that file's [Result] and in the aggregate error, and every other
// file still gets written.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/dargueta/bitpress"
	"github.com/dargueta/bitpress/raster"
	"github.com/dargueta/bitpress/rbi"
)

// CompressedExtension is the file extension of container files.
const CompressedExtension = ".rbi"

// decompressedExtension is what DecompressDir writes. PBM is the
// native bi-level format, so it is the lossless default.
const decompressedExtension = ".pbm"

// Runner compresses or decompresses every eligible file directly
// inside a directory. The zero value runs every file on the calling
// goroutine with no logging.
type Runner struct {
	// Outer is the backend file tasks are submitted to; nil runs them
	// serially. The runner does not close it.
	Outer bitpress.Backend

	// RowBackend and RowWorkers configure the row backend inside each
	// file task. See [rbi.FileRequest].
	RowBackend string
	RowWorkers int

	// BlackBelow overrides the luminance threshold for grayscale and
	// color inputs. Zero keeps the raster default.
	BlackBelow uint8

	// Log receives per-file outcomes. Nil disables logging.
	Log *zap.Logger
}

// Result records one file's outcome. The csv tags shape the manifest
// written by [WriteReport].
type Result struct {
	InputPath   string `csv:"input"`
	OutputPath  string `csv:"output"`
	InputBytes  int64  `csv:"input_bytes"`
	OutputBytes int64  `csv:"output_bytes"`
	Width       int    `csv:"width"`
	Height      int    `csv:"height"`
	DurationMS  int64  `csv:"duration_ms"`
	Warning     string `csv:"warning"`
	Error       string `csv:"error"`
}

// PerFileError ties one failure to the input file that caused it.
// Callers dig them out of the aggregate error with errors.As.
type PerFileError struct {
	Path string
	Err  error
}

func (e *PerFileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e *PerFileError) Unwrap() error {
	return e.Err
}

// CompressDir compresses every raster file in `inputDir` into
// `outputDir`, one container per input with the extension swapped to
// [CompressedExtension]. Results come back in directory order, one
// per file, failed or not; the aggregate error collects the failures.
func (r *Runner) CompressDir(
	ctx context.Context, inputDir, outputDir string,
) ([]Result, error) {
	inputs, err := listFiles(inputDir, isRasterFile)
	if err != nil {
		return nil, err
	}

	jobs := make([]fileJob, 0, len(inputs))
	for _, name := range inputs {
		request := rbi.FileRequest{
			InputPath:  filepath.Join(inputDir, name),
			OutputPath: filepath.Join(outputDir, swapExtension(name, CompressedExtension)),
			RowBackend: r.RowBackend,
			RowWorkers: r.RowWorkers,
			BlackBelow: r.BlackBelow,
		}
		task, err := rbi.CompressFileTask(request)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, fileJob{Request: request, Task: task})
	}
	return r.run(ctx, outputDir, jobs)
}

// DecompressDir is the mirror image of [CompressDir]: every container
// file in `inputDir` is expanded into `outputDir` as a PBM file.
func (r *Runner) DecompressDir(
	ctx context.Context, inputDir, outputDir string,
) ([]Result, error) {
	inputs, err := listFiles(inputDir, isContainerFile)
	if err != nil {
		return nil, err
	}

	jobs := make([]fileJob, 0, len(inputs))
	for _, name := range inputs {
		request := rbi.FileRequest{
			InputPath:  filepath.Join(inputDir, name),
			OutputPath: filepath.Join(outputDir, swapExtension(name, decompressedExtension)),
		}
		task, err := rbi.DecompressFileTask(request)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, fileJob{Request: request, Task: task})
	}
	return r.run(ctx, outputDir, jobs)
}

type fileJob struct {
	Request rbi.FileRequest
	Task    bitpress.Task
}

func (r *Runner) run(
	ctx context.Context, outputDir string, jobs []fileJob,
) ([]Result, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	backend := r.Outer
	if backend == nil {
		backend = bitpress.NewSerial()
	}
	log := r.log()

	tasks := make([]bitpress.Task, len(jobs))
	for i, job := range jobs {
		tasks[i] = job.Task
	}
	handles, err := backend.SubmitAll(ctx, tasks)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(jobs))
	var failures *multierror.Error
	for i, handle := range handles {
		job := jobs[i]
		result := Result{
			InputPath:  job.Request.InputPath,
			OutputPath: job.Request.OutputPath,
		}

		encoded, err := handle.Await(ctx)
		if err == nil {
			var taskResult rbi.FileResult
			if taskResult, err = rbi.DecodeFileResult(encoded); err == nil {
				result.InputBytes = taskResult.InputBytes
				result.OutputBytes = taskResult.OutputBytes
				result.Width = taskResult.Width
				result.Height = taskResult.Height
				result.DurationMS = taskResult.DurationMS
				if taskResult.TrailingBytes > 0 {
					result.Warning = fmt.Sprintf(
						"%d trailing bytes ignored", taskResult.TrailingBytes)
				}

				log.Info("file processed",
					zap.String("input", result.InputPath),
					zap.String("output", result.OutputPath),
					zap.Int64("input_bytes", result.InputBytes),
					zap.Int64("output_bytes", result.OutputBytes))
			}
		}
		if err != nil {
			failures = multierror.Append(
				failures, &PerFileError{Path: job.Request.InputPath, Err: err})
			result.Error = err.Error()

			log.Warn("file failed",
				zap.String("input", result.InputPath),
				zap.Error(err))
		}
		results[i] = result
	}
	return results, failures.ErrorOrNil()
}

func (r *Runner) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

// listFiles returns the names of the regular files in `dir` that pass
// the filter, in directory (sorted) order.
func listFiles(dir string, include func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !include(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func isRasterFile(name string) bool {
	_, err := raster.FormatForPath(name)
	return err == nil
}

func isContainerFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), CompressedExtension)
}

func swapExtension(name, newExtension string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + newExtension
}
