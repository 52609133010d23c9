package raster

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/dargueta/bitpress"
	"github.com/dargueta/bitpress/bitseq"
)

// PBM is the native interchange format here: one bit per pixel, 1
// meaning black, same as the codec's own convention. Both the packed
// P4 flavor and the ASCII P1 flavor are read; P4 is what gets
// written.
//
// P4 packs each row MSB-first and pads it to a whole byte, so rows of
// a width not divisible by eight carry dead bits that must be dropped
// on read and zeroed on write.

// Caps on parsed dimensions. PBM itself has no limits, but headers
// are untrusted input and the decoder allocates from them.
const (
	maxPBMDimension = 1 << 20
	maxPBMPixels    = 1 << 30
)

func decodePBM(r io.Reader) (*bitpress.Image, error) {
	br := bufio.NewReader(r)

	magic, err := readPBMToken(br)
	if err != nil {
		return nil, fmt.Errorf("pbm: reading magic number: %w", err)
	}
	if magic != "P1" && magic != "P4" {
		return nil, fmt.Errorf("pbm: %q is not a PBM magic number", magic)
	}

	width, err := readPBMDimension(br, "width")
	if err != nil {
		return nil, err
	}
	height, err := readPBMDimension(br, "height")
	if err != nil {
		return nil, err
	}
	if width*height > maxPBMPixels {
		return nil, fmt.Errorf("pbm: %dx%d image is too large to load", width, height)
	}

	if magic == "P1" {
		return decodeP1(br, width, height)
	}
	return decodeP4(br, width, height)
}

// decodeP4 reads packed rows. The header's height field is followed by
// exactly one whitespace byte, then the raster.
func decodeP4(br *bufio.Reader, width, height int) (*bitpress.Image, error) {
	separator, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("pbm: header ends before the raster: %w", err)
	}
	if !isPBMSpace(separator) {
		return nil, fmt.Errorf("pbm: header not terminated by whitespace")
	}

	rowBytes := (width + 7) / 8
	rowBuffer := make([]byte, rowBytes)
	builder := bitseq.NewBuilder(width * height)

	for y := 0; y < height; y++ {
		if _, err := io.ReadFull(br, rowBuffer); err != nil {
			return nil, fmt.Errorf("pbm: raster ends inside row %d: %w", y, err)
		}
		for x := 0; x < width; x++ {
			builder.AppendBit(rowBuffer[x/8]&(0x80>>(x%8)) != 0)
		}
	}
	return bitpress.NewImage(width, height, builder.Sequence())
}

// decodeP1 reads ASCII 0/1 digits separated by arbitrary whitespace.
func decodeP1(br *bufio.Reader, width, height int) (*bitpress.Image, error) {
	builder := bitseq.NewBuilder(width * height)
	need := width * height

	for builder.Len() < need {
		c, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf(
				"pbm: raster ends after %d of %d pixels: %w", builder.Len(), need, err)
		}

		switch {
		case c == '0':
			builder.AppendBit(false)
		case c == '1':
			builder.AppendBit(true)
		case c == '#':
			if err := skipPBMComment(br); err != nil {
				return nil, err
			}
		case isPBMSpace(c):
		default:
			return nil, fmt.Errorf("pbm: unexpected byte %#02x in P1 raster", c)
		}
	}
	return bitpress.NewImage(width, height, builder.Sequence())
}

func encodePBM(w io.Writer, img *bitpress.Image) error {
	if _, err := fmt.Fprintf(w, "P4\n%d %d\n", img.Width(), img.Height()); err != nil {
		return err
	}

	rowBuffer := make([]byte, (img.Width()+7)/8)
	for y := 0; y < img.Height(); y++ {
		for i := range rowBuffer {
			rowBuffer[i] = 0
		}

		row := img.Row(y)
		for x := 0; x < img.Width(); x++ {
			if row.Get(x) {
				rowBuffer[x/8] |= 0x80 >> (x % 8)
			}
		}
		if _, err := w.Write(rowBuffer); err != nil {
			return err
		}
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Header scanning

func isPBMSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func skipPBMComment(br *bufio.Reader) error {
	if _, err := br.ReadString('\n'); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// readPBMToken returns the next whitespace-delimited token, skipping
// comments.
func readPBMToken(br *bufio.Reader) (string, error) {
	for {
		c, err := br.ReadByte()
		if err != nil {
			return "", err
		}
		if c == '#' {
			if err := skipPBMComment(br); err != nil {
				return "", err
			}
			continue
		}
		if !isPBMSpace(c) {
			if err := br.UnreadByte(); err != nil {
				return "", err
			}
			break
		}
	}

	var token []byte
	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if isPBMSpace(c) || c == '#' {
			br.UnreadByte()
			break
		}
		token = append(token, c)
	}
	return string(token), nil
}

func readPBMDimension(br *bufio.Reader, name string) (int, error) {
	token, err := readPBMToken(br)
	if err != nil {
		return 0, fmt.Errorf("pbm: reading %s: %w", name, err)
	}
	value, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("pbm: %s %q is not a number", name, token)
	}
	if value < 0 || value > maxPBMDimension {
		return 0, fmt.Errorf("pbm: %s %d out of range", name, value)
	}
	return value, nil
}
