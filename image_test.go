package bitpress_test

import (
	"testing"

	"github.com/dargueta/bitpress"
	"github.com/dargueta/bitpress/bitseq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageChecksPixelCount(t *testing.T) {
	bits := bitseq.FromBools(make([]bool, 12))

	_, err := bitpress.NewImage(4, 3, bits)
	assert.NoError(t, err)

	_, err = bitpress.NewImage(4, 4, bits)
	assert.Error(t, err, "12 pixels cannot fill a 4x4 image")

	_, err = bitpress.NewImage(-1, 3, bits)
	assert.Error(t, err)
}

func TestImageZeroDimensions(t *testing.T) {
	img, err := bitpress.NewImageFromBools(0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, img.Width())
	assert.Equal(t, 0, img.Height())

	// A zero width with nonzero height is legal too; there are no
	// pixels either way.
	img, err = bitpress.NewImageFromBools(0, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, img.Height())
}

func TestImageAtAndRow(t *testing.T) {
	// 3x2 image:
	//   1 0 1
	//   0 1 0
	img, err := bitpress.NewImageFromBools(
		3, 2, []bool{true, false, true, false, true, false})
	require.NoError(t, err)

	assert.True(t, img.At(0, 0))
	assert.False(t, img.At(1, 0))
	assert.True(t, img.At(2, 0))
	assert.False(t, img.At(0, 1))
	assert.True(t, img.At(1, 1))

	row1 := img.Row(1)
	require.Equal(t, 3, row1.Len())
	assert.Equal(t, []bool{false, true, false}, row1.Bools())

	assert.Panics(t, func() { img.At(3, 0) })
	assert.Panics(t, func() { img.Row(2) })
}

func TestImageEqual(t *testing.T) {
	a, err := bitpress.NewImageFromBools(2, 2, []bool{true, false, false, true})
	require.NoError(t, err)
	b, err := bitpress.NewImageFromBools(2, 2, []bool{true, false, false, true})
	require.NoError(t, err)
	c, err := bitpress.NewImageFromBools(2, 2, []bool{true, false, false, false})
	require.NoError(t, err)
	d, err := bitpress.NewImageFromBools(4, 1, []bool{true, false, false, true})
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d), "same pixels but different shape")
}
