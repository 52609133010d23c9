// Package bitpress is a lossless compressor for bi-level (one bit per
// pixel) raster images, together with a pluggable execution layer for
// spreading the work across goroutine pools or worker processes.
//
// # Encoding scheme
//
// Pixels are run-length encoded. Every row of the image is cut into
// chunks of at most 127 bits (row boundaries are hard chunk
// boundaries), and each chunk is reduced to a series of run bytes:
// bit 7 holds the pixel value, bits 0-6 hold the run length. Capping
// chunks at 127 bits is what makes every run length fit in those seven
// bits by construction -- no run can outgrow its chunk. A run length
// of zero never appears in a valid stream.
//
// For example, the nine bits 000011000 compress to three run bytes:
//
//	0x04  four 0-pixels
//	0x82  two 1-pixels (0x80 | 2)
//	0x03  three 0-pixels
//
// Scanned text and line art are mostly long solid runs, so rows
// typically shrink to a small fraction of their raw size. The worst
// case -- alternating pixels -- produces one byte per pixel.
//
// The container written by the [rbi] subpackage is a 4-byte header
// (uint16 width, uint16 height, little-endian) followed by the run
// bytes of every chunk in row-major order. There are no chunk markers
// and no end marker: a decoder recovers the chunk boundaries by
// replaying the 127-bit chunking rule against the width in the header.
//
// # Execution model
//
// Chunks and rows are pure functions of their input bits, so they can
// be encoded independently and in any order, as long as the results
// are reassembled in submission order. This package defines the
// [Task], [Handle], and [Backend] types that express that contract,
// an operation registry that names the functions a Task may invoke,
// and [Serial], the synchronous reference backend. Two parallel
// implementations live under backends/: a shared-memory goroutine
// pool (backends/pool) for many small tasks such as rows, and an
// isolated-memory subprocess pool (backends/procpool) for
// coarse-grained work such as whole files, where the payload crossing
// the process boundary is only a couple of path strings.
package bitpress
