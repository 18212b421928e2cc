package tbf

import (
	"bufio"
	"fmt"
	"io"

	"github.com/Alfex4936/timingbloom/cellarray"
	"github.com/Alfex4936/timingbloom/errs"
)

// cellDtypeOctet is the single-byte tag denoting one-octet cells, 'B'
// (0x42), the only cell width the timing bloom filter supports.
const cellDtypeOctet = 'B'

// WriteTo serializes the filter to w in the format documented in §6:
// two ASCII header lines followed by m raw cell bytes.
//
//	line 1: <decay_time:f64> <num_non_zero:u64>
//	line 2: <capacity:u64> <error:f64> <m:u64> <k:u64> <cell_dtype:u8>
//	raw cell bytes: m bytes, contiguous
//
// WriteTo takes f's lock for the duration of the write, the same lock
// Add, Contains, Decay and Size take, so a concurrent Decay/Add cannot observe or produce
// a torn snapshot of decayTime/numNonZero/cells.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bw := bufio.NewWriter(w)
	var written int64

	line1 := fmt.Sprintf("%g %d\n", f.decayTime, f.numNonZero)
	n, err := bw.WriteString(line1)
	written += int64(n)
	if err != nil {
		return written, errs.Wrap(errs.SerializationError, "writing header line 1", err)
	}

	line2 := fmt.Sprintf("%d %g %d %d %c\n", f.sizing.Capacity, f.sizing.Error, f.sizing.M, f.sizing.K, cellDtypeOctet)
	n, err = bw.WriteString(line2)
	written += int64(n)
	if err != nil {
		return written, errs.Wrap(errs.SerializationError, "writing header line 2", err)
	}

	n, err = bw.Write(f.cells.Bytes())
	written += int64(n)
	if err != nil {
		return written, errs.Wrap(errs.SerializationError, "writing cell bytes", err)
	}

	if err := bw.Flush(); err != nil {
		return written, errs.Wrap(errs.SerializationError, "flushing writer", err)
	}
	return written, nil
}

// ReadFrom reconstructs a Filter from r, written by WriteTo. The returned
// filter is re-attached to opts' clock/driver (or the defaults) and its
// num_non_zero is trusted as-written: the decay driver reconciles it on
// its first pass.
func ReadFrom(r io.Reader, opts ...Option) (*Filter, error) {
	br := bufio.NewReader(r)

	line1, err := br.ReadString('\n')
	if err != nil {
		return nil, errs.Wrap(errs.SerializationError, "reading header line 1", err)
	}
	var decayTime float64
	var numNonZero uint64
	if _, err := fmt.Sscanf(line1, "%g %d\n", &decayTime, &numNonZero); err != nil {
		return nil, errs.Wrap(errs.SerializationError, "parsing header line 1", err)
	}

	line2, err := br.ReadString('\n')
	if err != nil {
		return nil, errs.Wrap(errs.SerializationError, "reading header line 2", err)
	}
	var capacity, m, k uint64
	var errRate float64
	var dtype byte
	if _, err := fmt.Sscanf(line2, "%d %g %d %d %c\n", &capacity, &errRate, &m, &k, &dtype); err != nil {
		return nil, errs.Wrap(errs.SerializationError, "parsing header line 2", err)
	}
	if dtype != cellDtypeOctet {
		return nil, errs.New(errs.SerializationError, fmt.Sprintf("unsupported cell_dtype %q: only octet cells are rigorously supported", dtype))
	}

	buf := make([]byte, m)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, errs.Wrap(errs.SerializationError, "reading cell bytes: truncated stream", err)
	}

	c := &config{error: errRate, now: defaultNow}
	for _, opt := range opts {
		opt(c)
	}
	if c.driver == nil {
		c.driver = defaultDriver()
	}

	sizing := cellarray.Sizing{Capacity: capacity, Error: errRate, M: m, K: k}
	f := &Filter{
		sizing:         sizing,
		cells:          cellarray.FromBytes(buf),
		idxbuf:         make([]uint64, k),
		decayTime:      decayTime,
		secondsPerTick: decayTime / liveWindow,
		numNonZero:     numNonZero,
		now:            c.now,
		driver:         c.driver,
	}
	return f, nil
}
