package stbf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Alfex4936/timingbloom/decaydriver"
	"github.com/Alfex4936/timingbloom/errs"
	"github.com/Alfex4936/timingbloom/tbf"
)

// WriteTo serializes the filter to w: a params line, a u32 child count,
// then each child's tbf.Filter serialization in insertion order.
func (s *Filter) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64

	params := fmt.Sprintf("%d %g %g %g\n", s.capacity, s.error, s.ratio, s.growth)
	n, err := bw.WriteString(params)
	written += int64(n)
	if err != nil {
		return written, errs.Wrap(errs.SerializationError, "writing params line", err)
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(s.children))); err != nil {
		return written, errs.Wrap(errs.SerializationError, "writing child count", err)
	}
	written += 4

	if err := bw.Flush(); err != nil {
		return written, errs.Wrap(errs.SerializationError, "flushing writer", err)
	}

	for _, child := range s.children {
		n64, err := child.WriteTo(w)
		written += n64
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// ReadFrom reconstructs a Filter from r, written by WriteTo. Every child
// is re-attached to a fresh decay driver (or the one factory produces);
// none are started automatically.
func ReadFrom(r io.Reader, opts ...Option) (*Filter, error) {
	br := bufio.NewReader(r)

	line, err := br.ReadString('\n')
	if err != nil {
		return nil, errs.Wrap(errs.SerializationError, "reading params line", err)
	}
	var capacity uint64
	var errRate, ratio, growth float64
	if _, err := fmt.Sscanf(line, "%d %g %g %g\n", &capacity, &errRate, &ratio, &growth); err != nil {
		return nil, errs.Wrap(errs.SerializationError, "parsing params line", err)
	}

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, errs.Wrap(errs.SerializationError, "reading child count", err)
	}

	c := &config{
		ratio:  ratio,
		growth: growth,
		clock:  defaultClock,
		driver: func() decaydriver.Driver { return decaydriver.NewTicker() },
	}
	for _, opt := range opts {
		opt(c)
	}

	s := &Filter{
		capacity:  capacity,
		error:     errRate,
		ratio:     c.ratio,
		growth:    c.growth,
		maxIDs:    c.maxIDs,
		clock:     c.clock,
		driver:    c.driver,
	}

	for i := uint32(0); i < count; i++ {
		child, err := tbf.ReadFrom(br, tbf.WithClock(s.clock), tbf.WithDriver(s.driver()))
		if err != nil {
			return nil, err
		}
		if s.decayTime == 0 {
			s.decayTime = child.DecayTime()
		}
		s.children = append(s.children, child)
		s.childErrs = append(s.childErrs, child.Error())
		s.nextGen++
	}
	if len(s.children) == 0 {
		return nil, errs.New(errs.SerializationError, "stbf stream had zero children")
	}
	return s, nil
}
