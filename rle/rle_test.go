package rle_test

import (
	"bytes"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/dargueta/bitpress"
	"github.com/dargueta/bitpress/bitseq"
	"github.com/dargueta/bitpress/rle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chunkTestCase struct {
	Name     string
	Bits     string
	Expected []byte
}

func TestEncodeChunk__Basic(t *testing.T) {
	tests := []chunkTestCase{
		{"single zero bit", "0", []byte{0x01}},
		{"single one bit", "1", []byte{0x81}},
		{"worked example", "0000 1100 0", []byte{0x04, 0x82, 0x03}},
		{"leading ones", "1110 01", []byte{0x83, 0x02, 0x81}},
		{"alternating", "0101", []byte{0x01, 0x81, 0x01, 0x81}},
		{"solid zeros", "0000 0000", []byte{0x08}},
		{"solid ones", "1111 1111", []byte{0x88}},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			encoded, err := rle.EncodeChunk(bitsFromString(test.Bits))
			require.NoError(t, err)
			assert.Equal(t, test.Expected, encoded)
		})
	}
}

func TestEncodeChunk__FullSolidChunk(t *testing.T) {
	// A solid 127-bit chunk is the longest run a single byte can carry.
	encoded, err := rle.EncodeChunk(solidBits(true, rle.MaxChunkBits))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, encoded)

	encoded, err = rle.EncodeChunk(solidBits(false, rle.MaxChunkBits))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7F}, encoded)
}

func TestEncodeChunk__RejectsBadSizes(t *testing.T) {
	_, err := rle.EncodeChunk(bitseq.Sequence{})
	assert.Error(t, err, "empty chunk")

	_, err = rle.EncodeChunk(solidBits(false, rle.MaxChunkBits+1))
	assert.Error(t, err, "oversized chunk")
}

func TestEncodeChunk__WorstCaseNeverExceedsOneBytePerBit(t *testing.T) {
	bits := alternatingBits(rle.MaxChunkBits)
	encoded, err := rle.EncodeChunk(bits)
	require.NoError(t, err)
	assert.Len(t, encoded, rle.MaxChunkBits)
}

func TestDecodeChunk__WorkedExample(t *testing.T) {
	builder := bitseq.NewBuilder(9)
	consumed, err := rle.DecodeChunk([]byte{0x04, 0x82, 0x03}, 9, builder)
	require.NoError(t, err)

	assert.Equal(t, 3, consumed)
	assert.True(t, builder.Sequence().Equal(bitsFromString("0000 1100 0")))
}

func TestDecodeChunk__LeavesTrailingBytesAlone(t *testing.T) {
	// Only the bytes belonging to this chunk may be consumed; the rest
	// of the stream belongs to the chunks after it.
	data := []byte{0x04, 0x82, 0x03, 0xAA, 0xBB}
	builder := bitseq.NewBuilder(9)

	consumed, err := rle.DecodeChunk(data, 9, builder)
	require.NoError(t, err)
	assert.Equal(t, 3, consumed)
}

func TestDecodeChunk__ZeroRunLength(t *testing.T) {
	builder := bitseq.NewBuilder(8)
	_, err := rle.DecodeChunk([]byte{0x80}, 8, builder)
	assert.ErrorIs(t, err, bitpress.ErrInvalidRunLength)
}

func TestDecodeChunk__RunOvershootsChunk(t *testing.T) {
	// A 9-bit run into a 8-bit chunk crosses a hard boundary.
	builder := bitseq.NewBuilder(8)
	_, err := rle.DecodeChunk([]byte{0x09}, 8, builder)

	assert.ErrorIs(t, err, bitpress.ErrRowLengthMismatch)
	assert.NotErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeChunk__StreamExhausted(t *testing.T) {
	builder := bitseq.NewBuilder(9)
	consumed, err := rle.DecodeChunk([]byte{0x04}, 9, builder)

	require.Equal(t, 1, consumed)
	assert.ErrorIs(t, err, bitpress.ErrRowLengthMismatch)
	assert.ErrorIs(
		t, err, io.ErrUnexpectedEOF,
		"truncation must be distinguishable from garbage")
}

////////////////////////////////////////////////////////////////////////////////
// Rows

func TestEncodeRow__ChunkBoundaries(t *testing.T) {
	// Exactly 127 bits is one chunk; 128 bits is a 127-bit chunk plus a
	// 1-bit chunk.
	oneChunk, err := rle.EncodeRow(solidBits(false, 127))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7F}, oneChunk)

	twoChunks, err := rle.EncodeRow(solidBits(false, 128))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7F, 0x01}, twoChunks)

	assert.Equal(t, 1, rle.ChunkCount(127))
	assert.Equal(t, 2, rle.ChunkCount(128))
}

func TestEncodeRow__ZeroWidth(t *testing.T) {
	encoded, err := rle.EncodeRow(bitseq.Sequence{})
	require.NoError(t, err)
	assert.Empty(t, encoded)
}

func TestEncodeRow__RunsSplitAtChunkBoundary(t *testing.T) {
	// A single 300-bit run still restarts its count in every chunk:
	// 127 + 127 + 46.
	encoded, err := rle.EncodeRow(solidBits(true, 300))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x80 | 46}, encoded)
}

func TestEveryRunByteHasValidLength(t *testing.T) {
	rows := []bitseq.Sequence{
		solidBits(true, 1000),
		alternatingBits(513),
		randomBits(777, 0x5EED),
	}

	for _, row := range rows {
		encoded, err := rle.EncodeRow(row)
		require.NoError(t, err)
		for i, runByte := range encoded {
			count := runByte & 0x7F
			if count < 1 {
				t.Fatalf("run byte %d (%#02x) has a zero length", i, runByte)
			}
		}
	}
}

func TestRowRoundTrip(t *testing.T) {
	rows := map[string]bitseq.Sequence{
		"single bit":        bitsFromString("1"),
		"worked example":    bitsFromString("0000 1100 0"),
		"one chunk exactly": randomBits(127, 1),
		"two chunks":        randomBits(128, 2),
		"many chunks":       randomBits(5000, 3),
		"worst case":        alternatingBits(400),
		"solid":             solidBits(true, 953),
	}

	for name, row := range rows {
		t.Run(name, func(t *testing.T) {
			encoded, err := rle.EncodeRow(row)
			require.NoError(t, err)

			builder := bitseq.NewBuilder(row.Len())
			consumed, err := rle.DecodeRow(encoded, row.Len(), builder)
			require.NoError(t, err)

			assert.Equal(t, len(encoded), consumed, "the whole row must be consumed")
			assert.True(t, builder.Sequence().Equal(row), "decoded bits differ")
		})
	}
}

func TestDecodeRow__ZeroWidth(t *testing.T) {
	builder := bitseq.NewBuilder(0)
	consumed, err := rle.DecodeRow([]byte{0xAA}, 0, builder)

	require.NoError(t, err)
	assert.Equal(t, 0, consumed)
	assert.Equal(t, 0, builder.Len())
}

func TestDecodeRow__TruncatedStream(t *testing.T) {
	row := randomBits(200, 4)
	encoded, err := rle.EncodeRow(row)
	require.NoError(t, err)

	builder := bitseq.NewBuilder(200)
	_, err = rle.DecodeRow(encoded[:len(encoded)-1], 200, builder)

	assert.ErrorIs(t, err, bitpress.ErrRowLengthMismatch)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeRow__NegativeWidth(t *testing.T) {
	_, err := rle.DecodeRow(nil, -1, bitseq.NewBuilder(0))
	assert.Error(t, err)
}

func TestRowEncodingMatchesParallelChunkEncoding(t *testing.T) {
	row := randomBits(1000, 0xACE)

	sequential, err := rle.EncodeRow(row)
	require.NoError(t, err)

	// Encode every chunk on its own goroutine and join the results in
	// chunk order: the output must be byte-identical to one pass.
	chunkCount := rle.ChunkCount(row.Len())
	parts := make([][]byte, chunkCount)
	errs := make([]error, chunkCount)

	var wg sync.WaitGroup
	for i := 0; i < chunkCount; i++ {
		start := i * rle.MaxChunkBits
		end := start + rle.MaxChunkBits
		if end > row.Len() {
			end = row.Len()
		}

		wg.Add(1)
		go func(i, start, end int) {
			defer wg.Done()
			parts[i], errs[i] = rle.EncodeChunk(row.Slice(start, end))
		}(i, start, end)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "chunk %d", i)
	}
	assert.Equal(t, sequential, bytes.Join(parts, nil))
}

////////////////////////////////////////////////////////////////////////////////
// Helper functions

func bitsFromString(s string) bitseq.Sequence {
	values := make([]bool, 0, len(s))
	for _, c := range s {
		switch c {
		case '0':
			values = append(values, false)
		case '1':
			values = append(values, true)
		}
	}
	return bitseq.FromBools(values)
}

func solidBits(value bool, length int) bitseq.Sequence {
	values := make([]bool, length)
	for i := range values {
		values[i] = value
	}
	return bitseq.FromBools(values)
}

func alternatingBits(length int) bitseq.Sequence {
	values := make([]bool, length)
	for i := range values {
		values[i] = i%2 == 0
	}
	return bitseq.FromBools(values)
}

func randomBits(length int, seed int64) bitseq.Sequence {
	rng := rand.New(rand.NewSource(seed))
	values := make([]bool, length)
	for i := range values {
		values[i] = rng.Intn(2) == 1
	}
	return bitseq.FromBools(values)
}
