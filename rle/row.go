package rle

import (
	"fmt"

	"github.com/dargueta/bitpress/bitseq"
)

// ChunkCount returns the number of chunks a row of `width` bits splits
// into under the [MaxChunkBits] chunking rule.
func ChunkCount(width int) int {
	return (width + MaxChunkBits - 1) / MaxChunkBits
}

// EncodeRow compresses one row: it splits the row into consecutive
// chunks of [MaxChunkBits] bits (the final chunk takes whatever is
// left), encodes each chunk on its own, and concatenates the results
// in order. A zero-width row encodes to nothing.
//
// Splitting first and encoding second is what makes the chunks
// independent: encoding them here one after another, or spreading
// them over a pool of workers, produces byte-identical output as long
// as the results are joined in chunk order.
func EncodeRow(row bitseq.Sequence) ([]byte, error) {
	width := row.Len()
	if width == 0 {
		return nil, nil
	}

	output := make([]byte, 0, ChunkCount(width)*8)
	for start := 0; start < width; start += MaxChunkBits {
		end := start + MaxChunkBits
		if end > width {
			end = width
		}

		encoded, err := EncodeChunk(row.Slice(start, end))
		if err != nil {
			return nil, err
		}
		output = append(output, encoded...)
	}
	return output, nil
}

// DecodeRow replays run bytes from the front of `data` until `width`
// bits have been appended to `builder`, walking the same chunk
// budgets the encoder used, and returns the number of bytes consumed.
// The caller advances its cursor by that count; this is how an image
// decoder steps through a container that has no row markers.
//
// Failures are those of [DecodeChunk], annotated with the bit offset
// of the chunk that failed.
func DecodeRow(data []byte, width int, builder *bitseq.Builder) (int, error) {
	if width < 0 {
		return 0, fmt.Errorf("rle: negative row width %d", width)
	}

	consumed := 0
	for start := 0; start < width; start += MaxChunkBits {
		chunkBits := width - start
		if chunkBits > MaxChunkBits {
			chunkBits = MaxChunkBits
		}

		n, err := DecodeChunk(data[consumed:], chunkBits, builder)
		consumed += n
		if err != nil {
			return consumed, fmt.Errorf("chunk at bit %d: %w", start, err)
		}
	}
	return consumed, nil
}
