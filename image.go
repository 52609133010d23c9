package bitpress

import (
	"fmt"

	"github.com/dargueta/bitpress/bitseq"
)

// Image is a bi-level raster: Width*Height pixels stored row-major as
// a single bit sequence, one bit per pixel, set = black. Images are
// value-like; the codec never modifies one it was given and always
// returns a freshly built one from a decode.
type Image struct {
	width  int
	height int
	bits   bitseq.Sequence
}

// NewImage wraps a pixel sequence as an image. The sequence must hold
// exactly width*height bits.
func NewImage(width, height int, bits bitseq.Sequence) (*Image, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("bitpress: negative image dimensions %dx%d", width, height)
	}
	if bits.Len() != width*height {
		return nil, fmt.Errorf(
			"bitpress: %dx%d image needs %d pixels, sequence has %d",
			width, height, width*height, bits.Len())
	}
	return &Image{width: width, height: height, bits: bits}, nil
}

// NewImageFromBools builds an image from a row-major pixel slice.
func NewImageFromBools(width, height int, pixels []bool) (*Image, error) {
	return NewImage(width, height, bitseq.FromBools(pixels))
}

// Width returns the image width in pixels.
func (img *Image) Width() int {
	return img.width
}

// Height returns the image height in pixels.
func (img *Image) Height() int {
	return img.height
}

// Bits returns the row-major pixel sequence.
func (img *Image) Bits() bitseq.Sequence {
	return img.bits
}

// At returns the pixel at (x, y). It panics if the coordinates are
// outside the image.
func (img *Image) At(x, y int) bool {
	if x < 0 || x >= img.width || y < 0 || y >= img.height {
		panic(fmt.Sprintf("bitpress: pixel (%d, %d) out of range %dx%d", x, y, img.width, img.height))
	}
	return img.bits.Get(y*img.width + x)
}

// Row returns row `y` as a view into the pixel sequence. No bits are
// copied.
func (img *Image) Row(y int) bitseq.Sequence {
	if y < 0 || y >= img.height {
		panic(fmt.Sprintf("bitpress: row %d out of range [0, %d)", y, img.height))
	}
	return img.bits.Slice(y*img.width, (y+1)*img.width)
}

// Equal reports whether two images have identical dimensions and
// pixels.
func (img *Image) Equal(other *Image) bool {
	return img.width == other.width &&
		img.height == other.height &&
		img.bits.Equal(other.bits)
}
