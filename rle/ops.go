package rle

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dargueta/bitpress"
	"github.com/dargueta/bitpress/bitseq"
)

// Names of the operations this package registers. Encoding work is
// submitted to backends as tasks under these names; importing this
// package (even blank) is what makes them runnable in a process.
const (
	OpEncodeRow   = "rle/encode-row"
	OpEncodeChunk = "rle/encode-chunk"
)

func init() {
	bitpress.RegisterOp(OpEncodeRow, encodeRowOp)
	bitpress.RegisterOp(OpEncodeChunk, encodeChunkOp)
}

// RowTask builds the task that runs [EncodeRow] over `row` on a
// backend. The payload is the bit count as a little-endian uint16
// followed by the packed bits; the task's result is the encoded run
// bytes.
func RowTask(row bitseq.Sequence) (bitpress.Task, error) {
	payload, err := packBitsPayload(row)
	if err != nil {
		return bitpress.Task{}, err
	}
	return bitpress.Task{Op: OpEncodeRow, Payload: payload}, nil
}

// ChunkTask builds the task that runs [EncodeChunk] over `chunk` on a
// backend. Same payload framing as [RowTask].
func ChunkTask(chunk bitseq.Sequence) (bitpress.Task, error) {
	payload, err := packBitsPayload(chunk)
	if err != nil {
		return bitpress.Task{}, err
	}
	return bitpress.Task{Op: OpEncodeChunk, Payload: payload}, nil
}

func encodeRowOp(_ context.Context, payload []byte) ([]byte, error) {
	row, err := unpackBitsPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpEncodeRow, err)
	}
	return EncodeRow(row)
}

func encodeChunkOp(_ context.Context, payload []byte) ([]byte, error) {
	chunk, err := unpackBitsPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpEncodeChunk, err)
	}
	return EncodeChunk(chunk)
}

func packBitsPayload(bits bitseq.Sequence) ([]byte, error) {
	if bits.Len() > math.MaxUint16 {
		return nil, fmt.Errorf(
			"rle: %d bits will not fit a task payload (limit %d)",
			bits.Len(), math.MaxUint16)
	}

	packed := bits.Packed()
	payload := make([]byte, 2+len(packed))
	binary.LittleEndian.PutUint16(payload, uint16(bits.Len()))
	copy(payload[2:], packed)
	return payload, nil
}

func unpackBitsPayload(payload []byte) (bitseq.Sequence, error) {
	if len(payload) < 2 {
		return bitseq.Sequence{}, fmt.Errorf(
			"payload of %d bytes is too short for the bit-count prefix", len(payload))
	}
	length := int(binary.LittleEndian.Uint16(payload))
	return bitseq.FromPacked(payload[2:], length)
}
