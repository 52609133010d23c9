// Package rbi reads and writes the .rbi container format for
// run-length-compressed bi-level images.
//
// A container is a four-byte header, the image width and then height
// as little-endian 16-bit integers, followed by every row's run bytes
// concatenated top to bottom. There are no row markers and no length
// fields: the decoder knows where each row's bytes end because it
// replays the same fixed chunking the encoder used, consuming run
// bytes until the row is full.
//
// Encoding compresses rows as independent tasks on a
// [bitpress.Backend], so an image can be spread over a goroutine pool
// or worker processes. The container bytes come out identical no
// matter which backend ran the rows, or in what order they finished,
// because the writer reassembles results in row order. Decoding is
// inherently sequential per image; parallel decode means decoding
// many images at once, which is the batch layer's job.
package rbi

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dargueta/bitpress"
	"github.com/dargueta/bitpress/bitseq"
	"github.com/dargueta/bitpress/rle"
)

// HeaderSize is the byte length of the container header.
const HeaderSize = 4

// MaxDimension is the largest width or height the header can record.
const MaxDimension = 0xFFFF

// Header is the decoded fixed-size container prefix.
type Header struct {
	Width  int
	Height int
}

// ReadHeader reads just the container header from `r`, leaving the
// reader positioned at the first run byte.
func ReadHeader(r io.Reader) (Header, error) {
	var raw [HeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, fmt.Errorf("reading header: %w", bitpress.ErrTruncatedContainer)
	}
	return parseHeader(raw[:]), nil
}

func parseHeader(raw []byte) Header {
	return Header{
		Width:  int(binary.LittleEndian.Uint16(raw[0:2])),
		Height: int(binary.LittleEndian.Uint16(raw[2:4])),
	}
}

// Encode compresses `img` into the container format, writing to `w`,
// and returns the number of bytes written. Rows are compressed as one
// task each on `backend`; a nil backend runs them on the calling
// goroutine.
//
// Images wider or taller than [MaxDimension] do not fit the header's
// 16-bit fields and fail with [bitpress.ErrImageTooLarge].
func Encode(
	ctx context.Context,
	w io.Writer,
	img *bitpress.Image,
	backend bitpress.Backend,
) (int64, error) {
	if img.Width() > MaxDimension || img.Height() > MaxDimension {
		return 0, fmt.Errorf(
			"%w: %dx%d exceeds %dx%d",
			bitpress.ErrImageTooLarge, img.Width(), img.Height(), MaxDimension, MaxDimension)
	}
	if backend == nil {
		backend = bitpress.NewSerial()
	}

	var written int64
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint16(header[0:2], uint16(img.Width()))
	binary.LittleEndian.PutUint16(header[2:4], uint16(img.Height()))

	n, err := w.Write(header[:])
	written += int64(n)
	if err != nil {
		return written, err
	}

	tasks := make([]bitpress.Task, img.Height())
	for y := range tasks {
		task, err := rle.RowTask(img.Row(y))
		if err != nil {
			return written, fmt.Errorf("row %d: %w", y, err)
		}
		tasks[y] = task
	}

	handles, err := backend.SubmitAll(ctx, tasks)
	if err != nil {
		return written, err
	}

	// Awaiting in submission order is what makes the output
	// deterministic regardless of completion order.
	for y, handle := range handles {
		rowBytes, err := handle.Await(ctx)
		if err != nil {
			return written, fmt.Errorf("compressing row %d: %w", y, err)
		}

		n, err := w.Write(rowBytes)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// EncodeBytes is [Encode] into a fresh byte slice.
func EncodeBytes(
	ctx context.Context, img *bitpress.Image, backend bitpress.Backend,
) ([]byte, error) {
	buffer := &bytes.Buffer{}
	if _, err := Encode(ctx, buffer, img, backend); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// DecodeBytes decompresses one container and additionally returns the
// number of unconsumed bytes found past the last row. Trailing bytes
// are not an error; callers that care, like the CLI, surface them as
// a warning.
func DecodeBytes(data []byte) (*bitpress.Image, int, error) {
	if len(data) < HeaderSize {
		return nil, 0, fmt.Errorf(
			"header needs %d bytes, container has %d: %w",
			HeaderSize, len(data), bitpress.ErrTruncatedContainer)
	}
	header := parseHeader(data)

	builder := bitseq.NewBuilder(header.Width * header.Height)
	cursor := HeaderSize
	for y := 0; y < header.Height; y++ {
		n, err := rle.DecodeRow(data[cursor:], header.Width, builder)
		cursor += n
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				// The stream ran out mid-row. Within a single row that
				// reads as a length mismatch; at container level it
				// means the container itself was cut short.
				err = bitpress.ErrTruncatedContainer
			}
			return nil, 0, fmt.Errorf(
				"row %d: %w", y, bitpress.DecodeErrorAt(err, int64(cursor)))
		}
	}

	img, err := bitpress.NewImage(header.Width, header.Height, builder.Sequence())
	if err != nil {
		return nil, 0, err
	}
	return img, len(data) - cursor, nil
}

// Decode decompresses one container from `r`. Bytes past the last row
// are read and ignored; use [DecodeBytes] to detect them.
func Decode(r io.Reader) (*bitpress.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	img, _, err := DecodeBytes(data)
	return img, err
}
