package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/bmp"

	"github.com/dargueta/bitpress"
	"github.com/dargueta/bitpress/bitseq"
)

// FromImage reduces a grayscale or color image to one bit per pixel. A
// pixel becomes black when its 8-bit luminance is strictly below
// `blackBelow`, so a threshold of 128 splits the range down the middle
// and a threshold of 0 produces an all-white image.
func FromImage(src image.Image, blackBelow uint8) (*bitpress.Image, error) {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	builder := bitseq.NewBuilder(width * height)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray := color.GrayModel.Convert(src.At(x, y)).(color.Gray)
			builder.AppendBit(gray.Y < blackBelow)
		}
	}
	return bitpress.NewImage(width, height, builder.Sequence())
}

// ToGray renders a bi-level image as 8-bit grayscale, black pixels as
// 0x00 and white pixels as 0xFF.
func ToGray(img *bitpress.Image) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, img.Width(), img.Height()))

	// NewGray zero-fills, which is already black everywhere. Only the
	// white pixels need touching.
	for y := 0; y < img.Height(); y++ {
		row := img.Row(y)
		for x := 0; x < img.Width(); x++ {
			if !row.Get(x) {
				gray.SetGray(x, y, color.Gray{Y: 0xFF})
			}
		}
	}
	return gray
}

func decodeStdImage(r io.Reader, format Format, options *Options) (*bitpress.Image, error) {
	var src image.Image
	var err error

	switch format {
	case FormatPNG:
		src, err = png.Decode(r)
	case FormatBMP:
		src, err = bmp.Decode(r)
	default:
		return nil, fmt.Errorf("raster: cannot decode format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("raster: decoding %s: %w", format, err)
	}
	return FromImage(src, options.blackBelow())
}

func encodeStdImage(w io.Writer, img *bitpress.Image, format Format) error {
	gray := ToGray(img)

	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(w, gray)
	case FormatBMP:
		err = bmp.Encode(w, gray)
	default:
		return fmt.Errorf("raster: cannot encode format %q", format)
	}
	if err != nil {
		return fmt.Errorf("raster: encoding %s: %w", format, err)
	}
	return nil
}
