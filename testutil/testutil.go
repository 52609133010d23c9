// Package testutil holds fixtures shared by the codec's tests: ready
// made images, compressed containers, and temporary directories of
// raster files.
package testutil

import (
	"context"
	"io"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/dargueta/bitpress"
	"github.com/dargueta/bitpress/raster"
	"github.com/dargueta/bitpress/rbi"
)

// ImageFromRows builds an image from rows of '1' (black) and '0'
// (white) characters. Every row must be the same length.
func ImageFromRows(t *testing.T, rows ...string) *bitpress.Image {
	t.Helper()

	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}

	pixels := make([]bool, 0, width*len(rows))
	for _, row := range rows {
		require.Len(t, row, width, "all rows must be the same width")
		for _, c := range row {
			pixels = append(pixels, c == '1')
		}
	}

	img, err := bitpress.NewImageFromBools(width, len(rows), pixels)
	require.NoError(t, err)
	return img
}

// SolidImage builds an image of a single color.
func SolidImage(t *testing.T, width, height int, black bool) *bitpress.Image {
	t.Helper()

	pixels := make([]bool, width*height)
	for i := range pixels {
		pixels[i] = black
	}
	img, err := bitpress.NewImageFromBools(width, height, pixels)
	require.NoError(t, err)
	return img
}

// Checkerboard builds the run-length coder's worst case: no run is
// longer than one bit.
func Checkerboard(t *testing.T, width, height int) *bitpress.Image {
	t.Helper()

	pixels := make([]bool, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pixels[y*width+x] = (x+y)%2 == 0
		}
	}
	img, err := bitpress.NewImageFromBools(width, height, pixels)
	require.NoError(t, err)
	return img
}

// RandomImage builds reproducible noise from `seed`.
func RandomImage(t *testing.T, seed int64, width, height int) *bitpress.Image {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	pixels := make([]bool, width*height)
	for i := range pixels {
		pixels[i] = rng.Intn(2) == 1
	}
	img, err := bitpress.NewImageFromBools(width, height, pixels)
	require.NoError(t, err)
	return img
}

// CompressedImage compresses `img` on the calling goroutine and
// returns the container bytes.
func CompressedImage(t *testing.T, img *bitpress.Image) []byte {
	t.Helper()

	data, err := rbi.EncodeBytes(context.Background(), img, nil)
	require.NoError(t, err)
	return data
}

// ContainerStream compresses `img` and returns the container as a
// fixed-size seekable stream, the shape file-based callers read.
// Writes to the stream do not grow it.
func ContainerStream(t *testing.T, img *bitpress.Image) io.ReadWriteSeeker {
	t.Helper()
	return bytesextra.NewReadWriteSeeker(CompressedImage(t, img))
}

// WriteImageDir saves every image into a fresh temporary directory as
// a PBM file named `<key>.pbm` and returns the directory path.
func WriteImageDir(t *testing.T, images map[string]*bitpress.Image) string {
	t.Helper()

	dir := t.TempDir()
	for name, img := range images {
		require.NoError(t, raster.Save(img, filepath.Join(dir, name+".pbm")))
	}
	return dir
}
