// Command bitpress compresses bi-level images into .rbi containers and
// expands them back, either one file at a time or whole directories in
// parallel.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/dargueta/bitpress"
	"github.com/dargueta/bitpress/backends/pool"
	"github.com/dargueta/bitpress/backends/procpool"
	"github.com/dargueta/bitpress/batch"
	"github.com/dargueta/bitpress/raster"
	"github.com/dargueta/bitpress/rbi"
)

// Exit codes. I/O and usage problems exit 1; the rest give scripts a
// way to tell what kind of failure they hit.
const (
	exitUsage        = 1
	exitImageTooBig  = 2
	exitBadContainer = 3
	exitPartialBatch = 4
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "bitpress: %s\n", err)
		os.Exit(exitUsage)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "bitpress",
		Usage: "Compress bi-level images with run-length encoding",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "worker count for the selected backend (0 = one per CPU)",
			},
			&cli.StringFlag{
				Name:  "backend",
				Value: "pool",
				Usage: "execution backend: serial, pool, or procs",
			},
			&cli.StringFlag{
				Name:  "row-backend",
				Value: rbi.RowBackendSerial,
				Usage: "row backend inside each file task: serial or pool",
			},
			&cli.IntFlag{
				Name:  "row-workers",
				Usage: "worker count for the row backend (0 = one per CPU)",
			},
			&cli.UintFlag{
				Name:  "threshold",
				Usage: "luminance cutoff 1-255 for grayscale and color inputs (0 = default)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log per-file progress to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "compress",
				Usage:     "Compress one raster image into a container",
				ArgsUsage: "INPUT OUTPUT",
				Action:    compressAction,
			},
			{
				Name:      "decompress",
				Usage:     "Expand one container back into a raster image",
				ArgsUsage: "INPUT OUTPUT",
				Action:    decompressAction,
			},
			{
				Name:      "compress-dir",
				Usage:     "Compress every raster image in a directory",
				ArgsUsage: "INPUT_DIR OUTPUT_DIR",
				Flags:     []cli.Flag{reportFlag()},
				Action:    compressDirAction,
			},
			{
				Name:      "decompress-dir",
				Usage:     "Expand every container in a directory",
				ArgsUsage: "INPUT_DIR OUTPUT_DIR",
				Flags:     []cli.Flag{reportFlag()},
				Action:    decompressDirAction,
			},
			{
				Name:      "info",
				Usage:     "Show a container's dimensions and size statistics",
				ArgsUsage: "FILE",
				Action:    infoAction,
			},
			{
				// Not for people: procpool re-executes this binary with
				// this command to get a worker subprocess.
				Name:   procpool.WorkerCommandName,
				Hidden: true,
				Action: workerAction,
			},
		},
	}
}

func reportFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "report",
		Usage: "write a CSV manifest of per-file results to `FILE`",
	}
}

////////////////////////////////////////////////////////////////////////////////
// Single files

func compressAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: bitpress compress INPUT OUTPUT", exitUsage)
	}
	inputPath := c.Args().Get(0)
	outputPath := c.Args().Get(1)

	options, err := rasterOptions(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	img, err := raster.Load(inputPath, options)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	backend, err := newBackend(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer backend.Close()

	output, err := os.Create(outputPath)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	written, err := rbi.Encode(c.Context, output, img, backend)
	if err != nil {
		output.Close()
		if errors.Is(err, bitpress.ErrImageTooLarge) {
			return cli.Exit(err.Error(), exitImageTooBig)
		}
		return cli.Exit(err.Error(), exitUsage)
	}
	if err := output.Close(); err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	fmt.Fprintf(c.App.Writer, "%s: %dx%d compressed to %d bytes\n",
		outputPath, img.Width(), img.Height(), written)
	return nil
}

func decompressAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: bitpress decompress INPUT OUTPUT", exitUsage)
	}
	inputPath := c.Args().Get(0)
	outputPath := c.Args().Get(1)

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	img, trailing, err := rbi.DecodeBytes(data)
	if err != nil {
		if bitpress.IsDecodeError(err) {
			return cli.Exit(fmt.Sprintf("%s: %s", inputPath, err), exitBadContainer)
		}
		return cli.Exit(err.Error(), exitUsage)
	}
	if trailing > 0 {
		fmt.Fprintf(c.App.ErrWriter,
			"warning: %s: %v (%d bytes ignored)\n", inputPath, bitpress.ErrTrailingData, trailing)
	}

	if err := raster.Save(img, outputPath); err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	fmt.Fprintf(c.App.Writer, "%s: %dx%d restored from %d bytes\n",
		outputPath, img.Width(), img.Height(), len(data))
	return nil
}

func infoAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: bitpress info FILE", exitUsage)
	}
	path := c.Args().Get(0)

	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer f.Close()

	header, err := rbi.ReadHeader(f)
	if err != nil {
		if bitpress.IsDecodeError(err) {
			return cli.Exit(fmt.Sprintf("%s: %s", path, err), exitBadContainer)
		}
		return cli.Exit(err.Error(), exitUsage)
	}

	info, err := f.Stat()
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	pixels := header.Width * header.Height
	packedBytes := int64((pixels+7)/8) + rbi.HeaderSize

	fmt.Fprintf(c.App.Writer, "%s:\n", path)
	fmt.Fprintf(c.App.Writer, "  dimensions:      %dx%d (%d pixels)\n",
		header.Width, header.Height, pixels)
	fmt.Fprintf(c.App.Writer, "  container bytes: %d\n", info.Size())
	fmt.Fprintf(c.App.Writer, "  packed raw size: %d\n", packedBytes)
	fmt.Fprintf(c.App.Writer, "  ratio:           %.3f\n", float64(info.Size())/float64(packedBytes))
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Directories

func compressDirAction(c *cli.Context) error {
	return runBatch(c, "compress-dir", func(runner *batch.Runner, in, out string) ([]batch.Result, error) {
		return runner.CompressDir(c.Context, in, out)
	})
}

func decompressDirAction(c *cli.Context) error {
	return runBatch(c, "decompress-dir", func(runner *batch.Runner, in, out string) ([]batch.Result, error) {
		return runner.DecompressDir(c.Context, in, out)
	})
}

func runBatch(
	c *cli.Context,
	name string,
	run func(*batch.Runner, string, string) ([]batch.Result, error),
) error {
	if c.NArg() != 2 {
		return cli.Exit(fmt.Sprintf("usage: bitpress %s INPUT_DIR OUTPUT_DIR", name), exitUsage)
	}

	options, err := rasterOptions(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	backend, err := newBackend(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer backend.Close()

	runner := &batch.Runner{
		Outer:      backend,
		RowBackend: c.String("row-backend"),
		RowWorkers: c.Int("row-workers"),
		Log:        newLogger(c),
	}
	if options != nil {
		runner.BlackBelow = options.BlackBelow
	}

	results, runErr := run(runner, c.Args().Get(0), c.Args().Get(1))
	if results == nil && runErr != nil {
		return cli.Exit(runErr.Error(), exitUsage)
	}

	for _, result := range results {
		switch {
		case result.Error != "":
			fmt.Fprintf(c.App.Writer, "%s: FAILED: %s\n", result.InputPath, result.Error)
		case result.Warning != "":
			fmt.Fprintf(c.App.Writer, "%s -> %s (%d -> %d bytes, %s)\n",
				result.InputPath, result.OutputPath,
				result.InputBytes, result.OutputBytes, result.Warning)
		default:
			fmt.Fprintf(c.App.Writer, "%s -> %s (%d -> %d bytes)\n",
				result.InputPath, result.OutputPath,
				result.InputBytes, result.OutputBytes)
		}
	}

	if reportPath := c.String("report"); reportPath != "" {
		if err := batch.WriteReport(reportPath, results); err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}
	}

	if runErr != nil {
		return cli.Exit(
			fmt.Sprintf("%d of %d files failed", countFailures(results), len(results)),
			exitPartialBatch)
	}
	return nil
}

func countFailures(results []batch.Result) int {
	failures := 0
	for _, result := range results {
		if result.Error != "" {
			failures++
		}
	}
	return failures
}

////////////////////////////////////////////////////////////////////////////////
// Worker mode

func workerAction(c *cli.Context) error {
	// Speak the protocol on stdio until the parent closes our stdin.
	return procpool.ServeConn(c.Context, os.Stdin, os.Stdout)
}

////////////////////////////////////////////////////////////////////////////////
// Shared plumbing

func newBackend(c *cli.Context) (bitpress.Backend, error) {
	switch c.String("backend") {
	case "serial":
		return bitpress.NewSerial(), nil
	case "pool":
		return pool.New(c.Int("workers")), nil
	case "procs":
		return procpool.New(c.Int("workers"), procpool.Options{})
	default:
		return nil, fmt.Errorf(
			"unknown backend %q (choose serial, pool, or procs)", c.String("backend"))
	}
}

func rasterOptions(c *cli.Context) (*raster.Options, error) {
	threshold := c.Uint("threshold")
	if threshold == 0 {
		return nil, nil
	}
	if threshold > 255 {
		return nil, fmt.Errorf("threshold %d out of range (1-255)", threshold)
	}
	return &raster.Options{BlackBelow: uint8(threshold)}, nil
}

func newLogger(c *cli.Context) *zap.Logger {
	if !c.Bool("verbose") {
		return zap.NewNop()
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
