// Package hashindex derives the k cell indices a key maps to in a bloom
// filter of size m, using Kirsch-Mitzenmacher double hashing over a single
// 128-bit hash invocation.
package hashindex

import "github.com/zeebo/xxh3"

// Indices computes the k indices in [0, m) for key, appending them to
// dst[:0] and returning the slice written; dst's storage is reused when its
// capacity is at least k, and a nil dst is allowed. A single
// 128-bit hash of key is taken; the two 64-bit halves are combined as
// index_i = (h1 + i*h2) mod m.
//
// If h2 mod m is zero the k indices would otherwise collapse onto a single
// cell; this degrades error but not correctness, so h2 is rotated by one
// bit when detected, matching the spec's documented escape hatch.
func Indices(key []byte, k, m uint64, dst []uint64) []uint64 {
	h := xxh3.Hash128(key)
	h1, h2 := h.Hi, h.Lo

	if m != 0 && h2%m == 0 {
		h2 = (h2 << 1) | (h2 >> 63)
	}

	dst = dst[:0]
	for i := uint64(0); i < k; i++ {
		dst = append(dst, (h1+i*h2)%m)
	}
	return dst
}
