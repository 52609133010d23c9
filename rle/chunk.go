package rle

import (
	"fmt"
	"io"

	"github.com/dargueta/bitpress"
	"github.com/dargueta/bitpress/bitseq"
)

// MaxChunkBits is the largest number of bits one chunk may hold. It
// equals the largest run length a run byte can express, so a run can
// never outgrow its length field.
const MaxChunkBits = 127

const (
	runValueMask  = 0x80
	runLengthMask = 0x7F
)

// packRun builds the run byte for `length` pixels of `value`. The
// length must already be in [1, MaxChunkBits].
func packRun(value bool, length int) byte {
	packed := byte(length)
	if value {
		packed |= runValueMask
	}
	return packed
}

// EncodeChunk compresses one chunk of a row into run bytes. The chunk
// must hold between 1 and [MaxChunkBits] bits.
//
// The output holds at least one byte and at most Len() bytes; the
// worst case, one byte per bit, happens only when every pixel differs
// from its neighbor.
func EncodeChunk(chunk bitseq.Sequence) ([]byte, error) {
	length := chunk.Len()
	if length < 1 || length > MaxChunkBits {
		return nil, fmt.Errorf(
			"rle: chunk must hold 1-%d bits, got %d", MaxChunkBits, length)
	}

	// Most chunks of scanned material reduce to a handful of runs.
	output := make([]byte, 0, 8)

	runValue := chunk.Get(0)
	runLength := 1
	for i := 1; i < length; i++ {
		if chunk.Get(i) == runValue {
			runLength++
			continue
		}
		output = append(output, packRun(runValue, runLength))
		runValue = chunk.Get(i)
		runLength = 1
	}
	return append(output, packRun(runValue, runLength)), nil
}

// DecodeChunk replays run bytes from the front of `data` until exactly
// `want` bits have been appended to `builder`, and returns the number
// of bytes consumed. `want` is the chunk's size as dictated by the
// chunking rule, not anything read from the stream -- the stream has
// no markers, so the caller must already know it.
//
// A zero run length fails with [bitpress.ErrInvalidRunLength]. A run
// that would push past `want` fails with
// [bitpress.ErrRowLengthMismatch]: chunk boundaries are hard, so a
// well-formed stream ends every run inside its chunk. Running out of
// bytes early fails with ErrRowLengthMismatch wrapping
// [io.ErrUnexpectedEOF] so container-level callers can tell
// truncation apart from garbage.
func DecodeChunk(data []byte, want int, builder *bitseq.Builder) (int, error) {
	if want < 1 || want > MaxChunkBits {
		return 0, fmt.Errorf(
			"rle: chunk size must be 1-%d bits, got %d", MaxChunkBits, want)
	}

	consumed := 0
	produced := 0
	for produced < want {
		if consumed >= len(data) {
			return consumed, fmt.Errorf(
				"%w: %w after %d of %d bits",
				bitpress.ErrRowLengthMismatch, io.ErrUnexpectedEOF, produced, want)
		}

		runByte := data[consumed]
		consumed++

		runLength := int(runByte & runLengthMask)
		if runLength == 0 {
			return consumed, fmt.Errorf(
				"%w: run byte %#02x", bitpress.ErrInvalidRunLength, runByte)
		}
		if produced+runLength > want {
			return consumed, fmt.Errorf(
				"%w: run of %d bits overshoots the chunk (%d of %d bits filled)",
				bitpress.ErrRowLengthMismatch, runLength, produced, want)
		}

		builder.AppendRun(runByte&runValueMask != 0, runLength)
		produced += runLength
	}
	return consumed, nil
}
