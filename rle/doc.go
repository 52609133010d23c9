// Package rle implements the run-length codec at the bottom of the
// compression pipeline: encoding chunks (up to 127 bits of one row)
// and rows (a whole scanline, split into chunks) to and from packed
// run bytes.
//
// A run byte stores one run of identical pixels: bit 7 carries the
// pixel value, bits 0-6 carry the run length. Seven bits can count to
// 127, which is exactly why chunks are capped at [MaxChunkBits] -- a
// run is confined to its chunk, so no run can ever need a length the
// field cannot hold. The cap costs a little compression (a run of
// 1000 identical bits spans eight chunks and therefore eight run
// bytes) and buys two things: run lengths can never overflow, and
// every chunk is encodable with no knowledge of its neighbors.
//
// That independence is the point. Chunks of the same row, and rows of
// the same image, can be encoded in any order on any worker, and the
// caller just concatenates the results in input order. Both encoders
// here are pure functions -- they read their arguments, allocate their
// result, and touch nothing else -- so running many of them at once
// needs no locks.
//
// Decoding has no such freedom. The byte stream carries no chunk or
// row markers, so a decoder must replay the same chunking rule the
// encoder used, bit-budget by bit-budget, to know where each chunk's
// bytes end. [DecodeChunk] and [DecodeRow] therefore consume from the
// front of a byte stream and report how many bytes they used, letting
// the caller advance its cursor.
package rle
