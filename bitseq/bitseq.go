// Package bitseq provides immutable views over packed streams of
// single-bit values, plus a growable Builder for constructing them.
//
// A Sequence is the currency of the whole codec: images store their
// pixels as one long row-major Sequence, the row codec carves rows and
// chunks out of it with Slice (no copying), and decoders reassemble
// pixels through a Builder. Bits are packed eight to a byte, low bit
// first, matching the layout of [bitmap.Bitmap].
package bitseq

import (
	"fmt"
	"strings"

	"github.com/boljen/go-bitmap"
)

// Sequence is an immutable view over a stream of bits. The zero value
// is an empty sequence.
//
// A Sequence never modifies its backing storage, but it may share that
// storage with other views; callers that hand a byte slice to
// [FromPacked] must not modify the slice afterwards.
type Sequence struct {
	data   []byte
	offset int
	length int
}

// FromBools builds a Sequence holding the given bit values. The input
// slice is copied.
func FromBools(values []bool) Sequence {
	packed := bitmap.New(len(values))
	for i, v := range values {
		if v {
			packed.Set(i, true)
		}
	}
	return Sequence{data: packed, length: len(values)}
}

// FromPacked wraps an already-packed byte slice as a Sequence of
// `length` bits without copying. The slice must hold at least
// (length+7)/8 bytes; bits are taken low-bit-first from each byte.
func FromPacked(data []byte, length int) (Sequence, error) {
	if length < 0 {
		return Sequence{}, fmt.Errorf("bitseq: negative length %d", length)
	}
	if need := bytesForBits(length); len(data) < need {
		return Sequence{}, fmt.Errorf(
			"bitseq: %d bytes cannot hold %d bits (need %d)", len(data), length, need)
	}
	return Sequence{data: data, length: length}, nil
}

// Len returns the number of bits in the sequence.
func (s Sequence) Len() int {
	return s.length
}

// Get returns the value of bit `i`. It panics if `i` is out of range,
// exactly like indexing a slice.
func (s Sequence) Get(i int) bool {
	if i < 0 || i >= s.length {
		panic(fmt.Sprintf("bitseq: index %d out of range [0, %d)", i, s.length))
	}
	return bitmap.Get(s.data, s.offset+i)
}

// Slice returns the sub-sequence [lo, hi). The view shares storage
// with `s`; no bits are copied, regardless of alignment.
func (s Sequence) Slice(lo, hi int) Sequence {
	if lo < 0 || hi < lo || hi > s.length {
		panic(fmt.Sprintf("bitseq: slice bounds [%d, %d) out of range [0, %d)", lo, hi, s.length))
	}
	return Sequence{data: s.data, offset: s.offset + lo, length: hi - lo}
}

// Packed returns the sequence packed eight bits per byte, low bit
// first, in a freshly allocated slice of exactly (Len()+7)/8 bytes.
// Any trailing pad bits in the final byte are zero.
func (s Sequence) Packed() []byte {
	out := bitmap.New(s.length)
	if s.offset%8 == 0 {
		// Aligned view: copy whole bytes, then clear the pad bits so
		// the result is canonical even if the backing store was not.
		copy(out, s.data[s.offset/8:s.offset/8+len(out)])
		if rem := s.length % 8; rem != 0 && len(out) > 0 {
			out[len(out)-1] &= byte(1<<uint(rem)) - 1
		}
		return out
	}
	for i := 0; i < s.length; i++ {
		if bitmap.Get(s.data, s.offset+i) {
			bitmap.Set(out, i, true)
		}
	}
	return out
}

// Bools expands the sequence into a []bool.
func (s Sequence) Bools() []bool {
	out := make([]bool, s.length)
	for i := range out {
		out[i] = s.Get(i)
	}
	return out
}

// Equal reports whether two sequences have the same length and bits.
func (s Sequence) Equal(other Sequence) bool {
	if s.length != other.length {
		return false
	}
	for i := 0; i < s.length; i++ {
		if s.Get(i) != other.Get(i) {
			return false
		}
	}
	return true
}

// String renders the bits as a "0"/"1" string for debugging, truncated
// past 64 bits.
func (s Sequence) String() string {
	var sb strings.Builder
	shown := s.length
	if shown > 64 {
		shown = 64
	}
	for i := 0; i < shown; i++ {
		if s.Get(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	if shown < s.length {
		fmt.Fprintf(&sb, "... (%d bits)", s.length)
	}
	return sb.String()
}

func bytesForBits(n int) int {
	return (n + 7) / 8
}
