// Package stbf implements the scaling timing bloom filter: an ordered
// collection of tbf.Filter instances with geometrically tightening
// per-filter error budgets, so that the aggregate error stays bounded
// regardless of how many children get spawned.
package stbf

import (
	"time"

	"github.com/Alfex4936/timingbloom/decaydriver"
	"github.com/Alfex4936/timingbloom/errs"
	"github.com/Alfex4936/timingbloom/tbf"
)

const (
	// DefaultErrorTighteningRatio is r, the default per-filter error
	// shrink factor.
	DefaultErrorTighteningRatio = 0.5
	// DefaultGrowthFactor is s, the default per-filter capacity growth.
	DefaultGrowthFactor = 2.0
)

// Filter is a scaling timing bloom filter: it routes inserts to the
// youngest unsaturated child, unions lookups across all children, and
// prunes empty children after each decay sweep.
type Filter struct {
	capacity  uint64
	error     float64
	decayTime float64
	ratio     float64
	growth    float64
	maxIDs    uint64

	clock  func() time.Time
	driver func() decaydriver.Driver

	children  []*tbf.Filter
	childErrs []float64 // eps_i actually assigned to children[j], parallel slice
	nextGen   int       // count of children ever created, for eps_i/capacity geometric series
	numAdded  uint64

	started bool
}

// Option configures a Filter at construction time.
type Option func(*config)

type config struct {
	ratio  float64
	growth float64
	maxIDs uint64
	clock  func() time.Time
	driver func() decaydriver.Driver
}

// WithErrorTighteningRatio overrides r (default 0.5).
func WithErrorTighteningRatio(r float64) Option {
	return func(c *config) { c.ratio = r }
}

// WithGrowthFactor overrides s (default 2).
func WithGrowthFactor(s float64) Option {
	return func(c *config) { c.growth = s }
}

// WithMaxIDCount caps the number of insertions routed to the current write
// target: once max inserts have gone to it, the next Add starts a new child
// regardless of measured density, and the count restarts for that child.
func WithMaxIDCount(max uint64) Option {
	return func(c *config) { c.maxIDs = max }
}

// WithClock overrides the wall-clock source propagated to every child
// filter. Tests use this for deterministic tick progression.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.clock = now }
}

// WithChildDriverFactory overrides how each child filter's decay driver is
// constructed. Defaults to a fresh decaydriver.Ticker per child; tests
// inject a factory that hands out decaydriver.Manual instances instead.
func WithChildDriverFactory(factory func() decaydriver.Driver) Option {
	return func(c *config) { c.driver = factory }
}

// New builds a Filter targeting capacity keys with aggregate error budget
// error and entries expiring after decayTime seconds.
func New(capacity uint64, error, decayTime float64, opts ...Option) (*Filter, error) {
	if capacity == 0 {
		return nil, errs.New(errs.InvalidConfiguration, "capacity must be > 0")
	}
	if error <= 0 || error >= 1 {
		return nil, errs.New(errs.InvalidConfiguration, "error must be in (0,1)")
	}
	if decayTime <= 0 {
		return nil, errs.New(errs.InvalidConfiguration, "decay_time must be > 0")
	}

	c := &config{
		ratio:  DefaultErrorTighteningRatio,
		growth: DefaultGrowthFactor,
		clock:  time.Now,
		driver: func() decaydriver.Driver { return decaydriver.NewTicker() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ratio <= 0 || c.ratio >= 1 {
		return nil, errs.New(errs.InvalidConfiguration, "error_tightening_ratio must be in (0,1)")
	}
	if c.growth < 1 {
		return nil, errs.New(errs.InvalidConfiguration, "growth_factor must be >= 1")
	}

	s := &Filter{
		capacity:  capacity,
		error:     error,
		decayTime: decayTime,
		ratio:     c.ratio,
		growth:    c.growth,
		maxIDs:    c.maxIDs,
		clock:     c.clock,
		driver:    c.driver,
	}
	if _, err := s.addChild(); err != nil {
		return nil, err
	}
	return s, nil
}

// childError returns eps_i = eps * (1-r) * r^i for the i-th child.
func (s *Filter) childError(i int) float64 {
	return s.error * (1 - s.ratio) * pow(s.ratio, i)
}

// childCapacity returns n * s^i for the i-th child.
func (s *Filter) childCapacity(i int) uint64 {
	return uint64(float64(s.capacity) * pow(s.growth, i))
}

func defaultClock() time.Time { return time.Now() }

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func (s *Filter) addChild() (*tbf.Filter, error) {
	i := s.nextGen
	eps := s.childError(i)
	child, err := tbf.New(
		s.childCapacity(i),
		s.decayTime,
		tbf.WithError(eps),
		tbf.WithClock(s.clock),
		tbf.WithDriver(s.driver()),
	)
	if err != nil {
		return nil, err
	}
	if s.started {
		if err := child.Start(); err != nil {
			return nil, err
		}
	}
	s.children = append(s.children, child)
	s.childErrs = append(s.childErrs, eps)
	s.nextGen++
	return child, nil
}

func (s *Filter) last() *tbf.Filter {
	return s.children[len(s.children)-1]
}

// Add routes key to the current write target, growing a new child filter
// first if the target is saturated (by density, or by max_id_count).
func (s *Filter) Add(key []byte) error {
	target := s.last()
	saturated := target.Saturated() || (s.maxIDs > 0 && s.numAdded >= s.maxIDs)
	if saturated {
		var err error
		target, err = s.addChild()
		if err != nil {
			return err
		}
		s.numAdded = 0
	}
	if err := target.Add(key); err != nil {
		return err
	}
	s.numAdded++
	return nil
}

// Contains returns true iff any child filter contains key, short-circuiting
// on the first positive.
func (s *Filter) Contains(key []byte) (bool, error) {
	for _, child := range s.children {
		ok, err := child.Contains(key)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Decay sweeps every child filter, then prunes any child (other than the
// most recently created one) whose num_non_zero has reached zero.
func (s *Filter) Decay() {
	for _, child := range s.children {
		child.Decay()
	}
	s.prune()
}

func (s *Filter) prune() {
	if len(s.children) <= 1 {
		return
	}
	newest := s.children[len(s.children)-1]
	keptChildren := s.children[:0]
	keptErrs := s.childErrs[:0]
	for j, child := range s.children {
		if child == newest || child.Size() > 0 {
			keptChildren = append(keptChildren, child)
			keptErrs = append(keptErrs, s.childErrs[j])
		}
	}
	s.children = keptChildren
	s.childErrs = keptErrs
}

// Start begins the decay driver on every child filter.
func (s *Filter) Start() error {
	for _, child := range s.children {
		if err := child.Start(); err != nil {
			return err
		}
	}
	s.started = true
	return nil
}

// Stop halts the decay driver on every child filter.
func (s *Filter) Stop() error {
	for _, child := range s.children {
		if err := child.Stop(); err != nil {
			return err
		}
	}
	s.started = false
	return nil
}

// NumFilters returns the number of currently live child filters.
func (s *Filter) NumFilters() int { return len(s.children) }

// ExpectedError returns 1 - product(1 - eps_i) over live children, the
// aggregate false-positive estimate used for observability and tests.
func (s *Filter) ExpectedError() float64 {
	product := 1.0
	for _, eps := range s.childErrs {
		product *= 1 - eps
	}
	return 1 - product
}
