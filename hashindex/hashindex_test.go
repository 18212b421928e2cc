package hashindex

import "testing"

func TestIndicesInBounds(t *testing.T) {
	m := uint64(1009)
	k := uint64(7)
	dst := make([]uint64, 0, k)
	idx := Indices([]byte("hello"), k, m, dst)
	if len(idx) != int(k) {
		t.Fatalf("len(idx) = %d, want %d", len(idx), k)
	}
	for _, i := range idx {
		if i >= m {
			t.Errorf("index %d out of bounds [0, %d)", i, m)
		}
	}
}

func TestIndicesDeterministic(t *testing.T) {
	m, k := uint64(1009), uint64(7)
	a := Indices([]byte("hello"), k, m, nil)
	b := Indices([]byte("hello"), k, m, nil)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("index %d differs across calls: %d != %d", i, a[i], b[i])
		}
	}
}

func TestIndicesDifferForDifferentKeys(t *testing.T) {
	m, k := uint64(1009), uint64(7)
	a := Indices([]byte("hello"), k, m, nil)
	b := Indices([]byte("world"), k, m, nil)
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different keys to produce different index sets")
	}
}
