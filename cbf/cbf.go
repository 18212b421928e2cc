// Package cbf implements the counting bloom filter substrate: a sized
// cell array plus add/remove/contains/bulk-decrement over it. It shares
// its sizing (package cellarray) and index derivation (package hashindex)
// with the timing bloom filter in package tbf, which builds on those two
// packages directly rather than on this one.
package cbf

import (
	"github.com/Alfex4936/timingbloom/cellarray"
	"github.com/Alfex4936/timingbloom/errs"
	"github.com/Alfex4936/timingbloom/hashindex"
)

const (
	// DefaultError is the target false-positive rate used when a
	// constructor is not given one explicitly.
	DefaultError = 0.005

	maxCell = 0xFF
)

// Filter is a counting bloom filter over a fixed-size cell array.
type Filter struct {
	sizing cellarray.Sizing
	cells  *cellarray.Array

	idxbuf []uint64 // reused per-operation index scratch space
}

// New builds a Filter sized for capacity keys at the given target error.
func New(capacity uint64, error float64) (*Filter, error) {
	if capacity == 0 {
		return nil, errs.New(errs.InvalidConfiguration, "capacity must be > 0")
	}
	if error <= 0 || error >= 1 {
		return nil, errs.New(errs.InvalidConfiguration, "error must be in (0,1)")
	}
	sizing := cellarray.NewSizing(capacity, error)
	return &Filter{
		sizing: sizing,
		cells:  cellarray.New(sizing.M),
		idxbuf: make([]uint64, sizing.K),
	}, nil
}

// Capacity returns the configured capacity n.
func (f *Filter) Capacity() uint64 { return f.sizing.Capacity }

// Error returns the configured target false-positive rate.
func (f *Filter) Error() float64 { return f.sizing.Error }

// M returns the number of cells.
func (f *Filter) M() uint64 { return f.sizing.M }

// K returns the number of hash indices examined per key.
func (f *Filter) K() uint64 { return f.sizing.K }

// Cells exposes the backing cell array.
func (f *Filter) Cells() *cellarray.Array { return f.cells }

// Indices derives the k cell indices for key.
func (f *Filter) Indices(key []byte) []uint64 {
	return hashindex.Indices(key, f.sizing.K, f.sizing.M, f.idxbuf)
}

func requireKey(key []byte) error {
	if key == nil {
		return errs.New(errs.InvalidKey, "key must be a non-nil byte string")
	}
	return nil
}

// Add increments each of the key's k cells by n, saturating at the
// cell-type max. Silent saturation is acceptable: the remove path guards
// against underflow regardless of whether a cell saturated.
func (f *Filter) Add(key []byte, n uint8) error {
	if err := requireKey(key); err != nil {
		return err
	}
	for _, idx := range f.Indices(key) {
		v := f.cells.Get(idx)
		if int(v)+int(n) > maxCell {
			f.cells.Set(idx, maxCell)
		} else {
			f.cells.Set(idx, v+n)
		}
	}
	return nil
}

// Remove decrements each of the key's k cells by n, but only if every
// cell holds a value >= n; otherwise the whole operation is a no-op. This
// pre-check-then-commit avoids underflow and avoids spuriously deleting a
// key that collided with another key's cells.
func (f *Filter) Remove(key []byte, n uint8) error {
	if err := requireKey(key); err != nil {
		return err
	}
	indices := f.Indices(key)
	for _, idx := range indices {
		if f.cells.Get(idx) < n {
			return nil
		}
	}
	for _, idx := range indices {
		f.cells.Set(idx, f.cells.Get(idx)-n)
	}
	return nil
}

// RemoveAll decrements every cell holding >= n by n, leaving others
// unchanged. Useful for bulk expiration sweeps; unused by the timing
// subsystem, which expires via tick decay instead.
func (f *Filter) RemoveAll(n uint8) {
	for i := uint64(0); i < f.sizing.M; i++ {
		if v := f.cells.Get(i); v >= n {
			f.cells.Set(i, v-n)
		}
	}
}

// Contains reports whether every one of the key's k cells is non-zero.
func (f *Filter) Contains(key []byte) (bool, error) {
	if err := requireKey(key); err != nil {
		return false, err
	}
	for _, idx := range f.Indices(key) {
		if f.cells.Get(idx) == 0 {
			return false, nil
		}
	}
	return true, nil
}
