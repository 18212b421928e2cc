// Package cellarray implements the sized cell array shared by the counting
// and timing bloom filter substrates: the sizing math from capacity and
// target error, and the raw byte-cell storage both build on.
package cellarray

import "math"

// Sizing holds the derived parameters for a cell array built to hold
// capacity keys at the given target false-positive rate.
type Sizing struct {
	Capacity uint64
	Error    float64
	M        uint64 // number of cells
	K        uint64 // number of hash indices per key
}

// NewSizing derives m and k from capacity and error per the standard
// bloom filter sizing formulas.
//
//	m = ceil(-capacity * ln(error) / ln(2)^2) + 1
//	k = ceil(m/capacity * ln(2)) + 1
func NewSizing(capacity uint64, error float64) Sizing {
	m := uint64(math.Ceil(-float64(capacity)*math.Log(error)/(math.Ln2*math.Ln2))) + 1
	k := uint64(math.Ceil(float64(m)/float64(capacity)*math.Ln2)) + 1
	return Sizing{Capacity: capacity, Error: error, M: m, K: k}
}

// Array is a contiguous array of one-octet cells. It owns its storage
// exclusively; callers must not alias the returned slices across arrays.
type Array struct {
	cells []byte
}

// New allocates a zeroed cell array with m cells.
func New(m uint64) *Array {
	return &Array{cells: make([]byte, m)}
}

// FromBytes wraps an existing byte slice as a cell array without copying.
// Used by deserialization once the raw cell bytes have been read.
func FromBytes(b []byte) *Array {
	return &Array{cells: b}
}

// Len returns the number of cells, m.
func (a *Array) Len() int { return len(a.cells) }

// Get returns the value of cell i.
func (a *Array) Get(i uint64) byte { return a.cells[i] }

// Set writes v into cell i.
func (a *Array) Set(i uint64, v byte) { a.cells[i] = v }

// Bytes returns the backing storage, for serialization. The returned
// slice aliases the array; callers must not retain it across mutation.
func (a *Array) Bytes() []byte { return a.cells }

// CountNonZero recomputes the number of non-zero cells by full scan.
// Deserialization does not call it: tbf.ReadFrom keeps num_non_zero as
// written, and the next Decay recomputes it.
func (a *Array) CountNonZero() uint64 {
	var n uint64
	for _, c := range a.cells {
		if c != 0 {
			n++
		}
	}
	return n
}
