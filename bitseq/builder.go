package bitseq

import (
	"fmt"

	"github.com/boljen/go-bitmap"
)

// Builder accumulates bits into a growable buffer and freezes them
// into a [Sequence]. It is the write-side counterpart of Sequence,
// used by decoders that reconstruct pixels run by run.
//
// A Builder must not be used by more than one goroutine at a time.
type Builder struct {
	data   bitmap.Bitmap
	length int
}

// NewBuilder returns a Builder with capacity for `capacityBits` bits
// preallocated. The capacity is only a hint; the builder grows as
// needed.
func NewBuilder(capacityBits int) *Builder {
	if capacityBits < 0 {
		capacityBits = 0
	}
	return &Builder{data: bitmap.New(capacityBits)}
}

// Len returns the number of bits appended so far.
func (b *Builder) Len() int {
	return b.length
}

// AppendBit appends a single bit.
func (b *Builder) AppendBit(v bool) {
	b.grow(1)
	if v {
		b.data.Set(b.length, true)
	}
	b.length++
}

// AppendRun appends `count` copies of `v`. It panics on a negative
// count; a zero count is a no-op.
func (b *Builder) AppendRun(v bool, count int) {
	if count < 0 {
		panic(fmt.Sprintf("bitseq: negative run length %d", count))
	}
	b.grow(count)
	end := b.length + count

	if !v {
		// Storage past the current length has never been written and
		// grow() zero-extends, so a zero run is just a length bump.
		b.length = end
		return
	}

	// Set bit by bit up to the next byte boundary, then whole bytes,
	// then the tail. Runs dominate decode time, so the byte fill
	// matters for wide solid regions.
	i := b.length
	for ; i < end && i%8 != 0; i++ {
		b.data.Set(i, true)
	}
	for ; i+8 <= end; i += 8 {
		b.data[i/8] = 0xFF
	}
	for ; i < end; i++ {
		b.data.Set(i, true)
	}
	b.length = end
}

// AppendSequence appends every bit of `s`.
func (b *Builder) AppendSequence(s Sequence) {
	b.grow(s.Len())
	for i := 0; i < s.Len(); i++ {
		if s.Get(i) {
			b.data.Set(b.length, true)
		}
		b.length++
	}
}

// Sequence freezes the builder's contents into an immutable Sequence.
// The builder must not be appended to afterwards; the returned
// Sequence shares the builder's storage.
func (b *Builder) Sequence() Sequence {
	return Sequence{data: b.data, length: b.length}
}

// grow ensures capacity for `extra` more bits.
func (b *Builder) grow(extra int) {
	need := bytesForBits(b.length + extra)
	if need <= len(b.data) {
		return
	}
	capacity := len(b.data) * 2
	if capacity < need {
		capacity = need
	}
	bigger := make(bitmap.Bitmap, capacity)
	copy(bigger, b.data)
	b.data = bigger
}
