package cellarray

import "testing"

func TestNewSizing(t *testing.T) {
	s := NewSizing(100000, 0.005)
	if s.M == 0 {
		t.Fatal("expected non-zero m")
	}
	if s.K == 0 {
		t.Fatal("expected non-zero k")
	}
	// Sanity bound: for these parameters m should be on the order of a
	// million cells (about 1.1 million), not wildly off.
	if s.M < 100000 || s.M > 5_000_000 {
		t.Errorf("m = %d looks out of the expected range", s.M)
	}
}

func TestArrayGetSet(t *testing.T) {
	a := New(10)
	if a.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", a.Len())
	}
	a.Set(3, 42)
	if got := a.Get(3); got != 42 {
		t.Errorf("Get(3) = %d, want 42", got)
	}
	if n := a.CountNonZero(); n != 1 {
		t.Errorf("CountNonZero() = %d, want 1", n)
	}
}

func TestFromBytes(t *testing.T) {
	b := []byte{0, 1, 0, 2, 0}
	a := FromBytes(b)
	if a.CountNonZero() != 2 {
		t.Errorf("CountNonZero() = %d, want 2", a.CountNonZero())
	}
	a.Set(0, 9)
	if b[0] != 9 {
		t.Error("expected FromBytes to alias the backing slice")
	}
}
