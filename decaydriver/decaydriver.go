// Package decaydriver provides the periodic-invocation capability the
// timing bloom filter uses to run its decay sweep, inverted out of the
// filter itself so tests can step decay deterministically instead of
// racing a wall-clock timer.
//
// This is the re-architected form of the teacher's ticker-driven
// goroutine: the same start/stop/WaitGroup shutdown idiom, generalized
// into an injectable capability with a Start(interval, fn)/Stop pair.
package decaydriver

import (
	"sync"
	"time"

	"github.com/Alfex4936/timingbloom/errs"
)

// Driver is a periodic-task scheduler capability: start calling fn every
// interval, until stopped. Implementations must serialize invocations of
// fn (no concurrent fn calls racing each other).
type Driver interface {
	// Start begins invoking fn every interval. It is a programming error
	// (DriverStateError) to Start a Driver that is already running.
	Start(interval time.Duration, fn func()) error
	// Stop halts invocations. It is a programming error
	// (DriverStateError) to Stop a Driver that is not running.
	Stop() error
}

// Ticker is the production Driver: a time.Ticker-backed goroutine, the
// ambient default for real wall-clock decay.
type Ticker struct {
	mu       sync.Mutex
	ticker   *time.Ticker
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// NewTicker builds a stopped Ticker driver.
func NewTicker() *Ticker {
	return &Ticker{}
}

// Start implements Driver.
func (d *Ticker) Start(interval time.Duration, fn func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errs.New(errs.DriverStateError, "decay driver already running")
	}
	d.ticker = time.NewTicker(interval)
	d.stopChan = make(chan struct{})
	d.running = true

	d.wg.Add(1)
	go func(ticker *time.Ticker, stop chan struct{}) {
		defer d.wg.Done()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stop:
				return
			}
		}
	}(d.ticker, d.stopChan)
	return nil
}

// Stop implements Driver.
func (d *Ticker) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return errs.New(errs.DriverStateError, "decay driver not running")
	}
	d.ticker.Stop()
	close(d.stopChan)
	d.running = false
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}

// Manual is a test Driver that never fires on its own: Step invokes fn
// exactly once, synchronously, standing in for one tick of wall-clock
// time. Tests that need deterministic decay timing use this instead of
// Ticker.
type Manual struct {
	mu      sync.Mutex
	fn      func()
	running bool
}

// NewManual builds a stopped Manual driver.
func NewManual() *Manual {
	return &Manual{}
}

// Start implements Driver.
func (d *Manual) Start(_ time.Duration, fn func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errs.New(errs.DriverStateError, "decay driver already running")
	}
	d.fn = fn
	d.running = true
	return nil
}

// Stop implements Driver.
func (d *Manual) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return errs.New(errs.DriverStateError, "decay driver not running")
	}
	d.running = false
	d.fn = nil
	return nil
}

// Step invokes the scheduled function once, as if one decay cadence had
// elapsed. It is a no-op if the driver is not running.
func (d *Manual) Step() {
	d.mu.Lock()
	fn := d.fn
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}
