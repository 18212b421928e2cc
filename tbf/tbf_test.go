package tbf

import (
	"bytes"
	"fmt"
	"testing"
	"time"
)

// fakeClock lets tests advance time deterministically instead of sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestFilter(t *testing.T, capacity uint64, decayTime float64) (*Filter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	f, err := New(capacity, decayTime, WithClock(clock.now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f, clock
}

func TestAddAndHit(t *testing.T) {
	f, _ := newTestFilter(t, 500, 4)
	if err := f.Add([]byte("hello")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ok, err := f.Contains([]byte("hello"))
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !ok {
		t.Error("expected Contains(hello) == true immediately after Add")
	}
}

func TestDecayAndMiss(t *testing.T) {
	f, clock := newTestFilter(t, 500, 4)
	if err := f.Add([]byte("hello")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Advance well past the decay interval T and run decay.
	clock.advance(time.Duration((f.DecayTime() + f.SecondsPerTick()) * float64(time.Second)))
	f.Decay()

	ok, err := f.Contains([]byte("hello"))
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if ok {
		t.Error("expected Contains(hello) == false after decay past T")
	}
}

func TestRefresh(t *testing.T) {
	f, clock := newTestFilter(t, 100, 2)
	if err := f.Add([]byte("x")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	clock.advance(1500 * time.Millisecond)
	if err := f.Add([]byte("x")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	clock.advance(1 * time.Second)
	ok, err := f.Contains([]byte("x"))
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !ok {
		t.Error("refreshing a key should reset its live window")
	}
}

func TestNumNonZeroTracksCellArray(t *testing.T) {
	f, _ := newTestFilter(t, 1000, 10)
	for i := 0; i < 50; i++ {
		if err := f.Add([]byte(fmt.Sprintf("k%d", i))); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	var trueCount uint64
	m := f.cells.Len()
	for i := 0; i < m; i++ {
		if f.cells.Get(uint64(i)) != 0 {
			trueCount++
		}
	}
	if f.Size() != trueCount {
		t.Errorf("num_non_zero = %d, want %d", f.Size(), trueCount)
	}

	f.Decay()
	trueCount = 0
	for i := 0; i < m; i++ {
		if f.cells.Get(uint64(i)) != 0 {
			trueCount++
		}
	}
	if f.Size() != trueCount {
		t.Errorf("after decay: num_non_zero = %d, want %d", f.Size(), trueCount)
	}
}

func TestFalsePositiveBound(t *testing.T) {
	n := 2000
	f, err := New(uint64(n), 10, WithError(0.01))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("idx_%d", i))
		if err := f.Add(key); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("idx_%d", i))
		ok, err := f.Contains(key)
		if err != nil {
			t.Fatalf("Contains: %v", err)
		}
		if !ok {
			t.Fatalf("false negative on inserted key idx_%d", i)
		}
	}
	fp := 0
	for i := n; i < 2*n; i++ {
		key := []byte(fmt.Sprintf("idx_%d", i))
		ok, err := f.Contains(key)
		if err != nil {
			t.Fatalf("Contains: %v", err)
		}
		if ok {
			fp++
		}
	}
	maxFP := int(f.Error() * float64(n) * 3) // generous slack for test stability
	if fp > maxFP {
		t.Errorf("false positives = %d, want <= %d", fp, maxFP)
	}
}

func TestRejectsInvalidConfiguration(t *testing.T) {
	if _, err := New(0, 10); err == nil {
		t.Error("expected error for zero capacity")
	}
	if _, err := New(100, 0); err == nil {
		t.Error("expected error for zero decay_time")
	}
	if _, err := New(100, 10, WithError(0)); err == nil {
		t.Error("expected error for zero error rate")
	}
	if _, err := New(100, 10, WithError(1)); err == nil {
		t.Error("expected error for error rate >= 1")
	}
}

func TestNilKeyIsInvalid(t *testing.T) {
	f, _ := newTestFilter(t, 100, 10)
	if err := f.Add(nil); err == nil {
		t.Error("expected InvalidKey error for nil key")
	}
	if _, err := f.Contains(nil); err == nil {
		t.Error("expected InvalidKey error for nil key")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	f, _ := newTestFilter(t, 1000, 10)
	for i := 0; i < 20; i++ {
		f.Add([]byte(fmt.Sprintf("k%d", i)))
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := ReadFrom(&buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	if got.M() != f.M() || got.K() != f.K() || got.Size() != f.Size() {
		t.Errorf("round trip mismatch: m=%d/%d k=%d/%d size=%d/%d", got.M(), f.M(), got.K(), f.K(), got.Size(), f.Size())
	}
	for i := 0; i < f.cells.Len(); i++ {
		if got.cells.Get(uint64(i)) != f.cells.Get(uint64(i)) {
			t.Fatalf("cell %d mismatch: got %d want %d", i, got.cells.Get(uint64(i)), f.cells.Get(uint64(i)))
		}
	}
}

func TestReadFromRejectsUnknownDtype(t *testing.T) {
	f, _ := newTestFilter(t, 100, 10)
	var buf bytes.Buffer
	f.WriteTo(&buf)
	corrupted := bytes.Replace(buf.Bytes(), []byte{' ', 'B', '\n'}, []byte{' ', 'Z', '\n'}, 1)
	if _, err := ReadFrom(bytes.NewReader(corrupted)); err == nil {
		t.Error("expected SerializationError for unknown cell_dtype")
	}
}

func TestStartStopDriverMisuse(t *testing.T) {
	f, _ := newTestFilter(t, 100, 10)
	if err := f.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.Start(); err == nil {
		t.Error("expected DriverStateError starting an already-running driver")
	}
	if err := f.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := f.Stop(); err == nil {
		t.Error("expected DriverStateError stopping an already-stopped driver")
	}
}
