// Package raster loads and saves the bi-level images the codec works
// on. It speaks PBM natively (the portable bitmap format is itself
// one bit per pixel) and adapts PNG and BMP by thresholding their
// pixels on luminance.
//
// The compressor proper never sees any of this: it takes a
// [bitpress.Image] and neither knows nor cares what file format the
// pixels came from.
package raster

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dargueta/bitpress"
)

// Format identifies a supported raster file format.
type Format string

const (
	FormatPBM Format = "pbm"
	FormatPNG Format = "png"
	FormatBMP Format = "bmp"
)

// DefaultBlackBelow is the luminance cutoff used when [Options] is nil
// or leaves BlackBelow zero: 8-bit luminance below one half loads as
// black.
const DefaultBlackBelow uint8 = 128

// Options controls how grayscale and color sources are reduced to one
// bit per pixel. A nil *Options uses the defaults, like the stdlib
// jpeg encoder.
type Options struct {
	// BlackBelow is the 8-bit luminance cutoff: pixels strictly darker
	// than it load as black. Zero means [DefaultBlackBelow].
	BlackBelow uint8
}

func (o *Options) blackBelow() uint8 {
	if o == nil || o.BlackBelow == 0 {
		return DefaultBlackBelow
	}
	return o.BlackBelow
}

// FormatForPath determines the format for a file path by its
// extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pbm":
		return FormatPBM, nil
	case ".png":
		return FormatPNG, nil
	case ".bmp":
		return FormatBMP, nil
	default:
		return "", fmt.Errorf(
			"raster: no format known for %q (supported: .pbm .png .bmp)",
			filepath.Base(path))
	}
}

// Decode reads one image in the given format.
func Decode(r io.Reader, format Format, options *Options) (*bitpress.Image, error) {
	switch format {
	case FormatPBM:
		return decodePBM(r)
	case FormatPNG, FormatBMP:
		return decodeStdImage(r, format, options)
	default:
		return nil, fmt.Errorf("raster: cannot decode format %q", format)
	}
}

// Encode writes `img` in the given format. PBM is written as packed
// P4; PNG and BMP are written as 8-bit grayscale.
func Encode(w io.Writer, img *bitpress.Image, format Format) error {
	switch format {
	case FormatPBM:
		return encodePBM(w, img)
	case FormatPNG, FormatBMP:
		return encodeStdImage(w, img, format)
	default:
		return fmt.Errorf("raster: cannot encode format %q", format)
	}
}

// Load reads the image file at `path`, picking the format from the
// file extension.
func Load(path string, options *Options) (*bitpress.Image, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Decode(f, format, options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Save writes `img` to `path`, picking the format from the file
// extension.
func Save(img *bitpress.Image, path string) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Encode(f, img, format); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
