package batch_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/bitpress"
	"github.com/dargueta/bitpress/backends/pool"
	"github.com/dargueta/bitpress/batch"
	"github.com/dargueta/bitpress/raster"
	"github.com/dargueta/bitpress/rbi"
	"github.com/dargueta/bitpress/testutil"
)

func TestCompressDirThenDecompressDir(t *testing.T) {
	originals := map[string]*bitpress.Image{
		"alpha": testutil.RandomImage(t, 41, 64, 40),
		"beta":  testutil.Checkerboard(t, 31, 7),
		"gamma": testutil.SolidImage(t, 130, 9, true),
	}
	inputDir := testutil.WriteImageDir(t, originals)

	// A stray non-raster file must not become a task.
	require.NoError(t, os.WriteFile(
		filepath.Join(inputDir, "notes.txt"), []byte("skip me"), 0o644))

	compressedDir := filepath.Join(t.TempDir(), "compressed")
	restoredDir := filepath.Join(t.TempDir(), "restored")
	runner := &batch.Runner{}
	ctx := context.Background()

	results, err := runner.CompressDir(ctx, inputDir, compressedDir)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Directory enumeration is sorted, so results are too.
	assert.Equal(t, filepath.Join(inputDir, "alpha.pbm"), results[0].InputPath)
	assert.Equal(t, filepath.Join(compressedDir, "alpha.rbi"), results[0].OutputPath)
	assert.Equal(t, 64, results[0].Width)
	assert.Equal(t, 40, results[0].Height)

	for _, result := range results {
		assert.Empty(t, result.Error)
		assert.Empty(t, result.Warning)

		info, err := os.Stat(result.OutputPath)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), result.OutputBytes)
	}

	restoredResults, err := runner.DecompressDir(ctx, compressedDir, restoredDir)
	require.NoError(t, err)
	require.Len(t, restoredResults, 3)

	for name, original := range originals {
		restored, err := raster.Load(filepath.Join(restoredDir, name+".pbm"), nil)
		require.NoError(t, err, name)
		assert.True(t, restored.Equal(original), "%s changed in the round trip", name)
	}
}

func TestOneBadFileDoesNotStopTheBatch(t *testing.T) {
	originals := map[string]*bitpress.Image{
		"good1": testutil.RandomImage(t, 1, 40, 8),
		"good2": testutil.RandomImage(t, 2, 40, 8),
		"good3": testutil.RandomImage(t, 3, 40, 8),
		"good4": testutil.RandomImage(t, 4, 40, 8),
	}
	inputDir := testutil.WriteImageDir(t, originals)
	brokenPath := filepath.Join(inputDir, "broken.pbm")
	require.NoError(t, os.WriteFile(brokenPath, []byte("not a bitmap"), 0o644))

	runner := &batch.Runner{}
	results, err := runner.CompressDir(
		context.Background(), inputDir, filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	require.Len(t, results, 5)

	var perFile *batch.PerFileError
	require.ErrorAs(t, err, &perFile)
	assert.Equal(t, brokenPath, perFile.Path)

	failed := 0
	for _, result := range results {
		if result.Error != "" {
			failed++
			assert.Equal(t, brokenPath, result.InputPath)
			continue
		}
		_, statErr := os.Stat(result.OutputPath)
		assert.NoError(t, statErr, "sibling output missing for %s", result.InputPath)
	}
	assert.Equal(t, 1, failed)
}

func TestDecompressDirIsolatesCorruptContainer(t *testing.T) {
	originals := map[string]*bitpress.Image{
		"fine":  testutil.Checkerboard(t, 19, 5),
		"other": testutil.SolidImage(t, 8, 8, false),
	}
	inputDir := testutil.WriteImageDir(t, originals)

	compressedDir := filepath.Join(t.TempDir(), "compressed")
	runner := &batch.Runner{}
	ctx := context.Background()

	_, err := runner.CompressDir(ctx, inputDir, compressedDir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(
		filepath.Join(compressedDir, "mangled.rbi"), []byte{0x05, 0x00}, 0o644))

	restoredDir := filepath.Join(t.TempDir(), "restored")
	results, err := runner.DecompressDir(ctx, compressedDir, restoredDir)
	require.Error(t, err)
	require.Len(t, results, 3)

	// In-process backends keep error identity, so the defect is still
	// classifiable from the aggregate.
	assert.ErrorIs(t, err, bitpress.ErrTruncatedContainer)

	for name, original := range originals {
		restored, loadErr := raster.Load(filepath.Join(restoredDir, name+".pbm"), nil)
		require.NoError(t, loadErr, name)
		assert.True(t, restored.Equal(original), name)
	}
}

func TestTrailingBytesAreAWarningNotAFailure(t *testing.T) {
	img := testutil.ImageFromRows(t, "0110")
	padded := append(testutil.CompressedImage(t, img), 0x00, 0x00)

	inputDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(inputDir, "padded.rbi"), padded, 0o644))

	results, err := (&batch.Runner{}).DecompressDir(
		context.Background(), inputDir, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Empty(t, results[0].Error)
	assert.Contains(t, results[0].Warning, "2 trailing bytes")
}

func TestPoolBackendProducesIdenticalContainers(t *testing.T) {
	originals := map[string]*bitpress.Image{
		"one":   testutil.RandomImage(t, 71, 200, 31),
		"two":   testutil.Checkerboard(t, 127, 12),
		"three": testutil.RandomImage(t, 72, 64, 64),
	}
	inputDir := testutil.WriteImageDir(t, originals)
	ctx := context.Background()

	serialDir := filepath.Join(t.TempDir(), "serial")
	_, err := (&batch.Runner{}).CompressDir(ctx, inputDir, serialDir)
	require.NoError(t, err)

	backend := pool.New(2)
	defer backend.Close()
	pooled := &batch.Runner{
		Outer:      backend,
		RowBackend: rbi.RowBackendPool,
		RowWorkers: 2,
	}
	pooledDir := filepath.Join(t.TempDir(), "pooled")
	_, err = pooled.CompressDir(ctx, inputDir, pooledDir)
	require.NoError(t, err)

	for name := range originals {
		serialBytes, err := os.ReadFile(filepath.Join(serialDir, name+".rbi"))
		require.NoError(t, err)
		pooledBytes, err := os.ReadFile(filepath.Join(pooledDir, name+".rbi"))
		require.NoError(t, err)
		assert.Equal(t, serialBytes, pooledBytes, name)
	}
}

func TestCompressDirEmptyDirectory(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "made")

	results, err := (&batch.Runner{}).CompressDir(
		context.Background(), t.TempDir(), outputDir)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = os.Stat(outputDir)
	assert.NoError(t, err, "output directory should exist even for an empty run")
}

func TestCompressDirMissingInputDirectory(t *testing.T) {
	results, err := (&batch.Runner{}).CompressDir(
		context.Background(),
		filepath.Join(t.TempDir(), "does-not-exist"),
		t.TempDir())
	assert.Error(t, err)
	assert.Nil(t, results)
}

func TestWriteReport(t *testing.T) {
	img := testutil.Checkerboard(t, 16, 4)
	inputDir := testutil.WriteImageDir(t, map[string]*bitpress.Image{"page": img})

	results, err := (&batch.Runner{}).CompressDir(
		context.Background(), inputDir, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	results = append(results, batch.Result{
		InputPath: "imaginary.pbm",
		Error:     "boom",
	})

	reportPath := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, batch.WriteReport(reportPath, results))

	f, err := os.Open(reportPath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(results)+1)

	assert.Equal(t,
		[]string{
			"input", "output", "input_bytes", "output_bytes",
			"width", "height", "duration_ms", "warning", "error",
		},
		rows[0])
	assert.Equal(t, results[0].InputPath, rows[1][0])
	assert.Equal(t, "boom", rows[2][8])
}
