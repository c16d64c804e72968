// Package debounce submits a value only after it has stopped changing for a
// quiet period.
package debounce

import (
	"sync"
	"time"
)

// Dispatcher calls fire with the latest value once no Update has arrived for
// the quiet period. Every Update cancels the pending timer; empty values are
// never dispatched. fire runs on the timer goroutine and should not block.
type Dispatcher struct {
	quiet time.Duration
	fire  func(string)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	latest  string
	settled string
	stopped bool
}

func New(quiet time.Duration, fire func(string)) *Dispatcher {
	return &Dispatcher{quiet: quiet, fire: fire}
}

// Update records value and rearms the quiet timer from zero.
func (d *Dispatcher) Update(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.latest = value
	if value == "" {
		return
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.quiet, func() { d.settle(gen) })
}

func (d *Dispatcher) settle(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	value := d.latest
	d.settled = value
	d.mu.Unlock()

	d.fire(value)
}

// Pending reports whether a timer is armed.
func (d *Dispatcher) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Settled returns the last value that was dispatched.
func (d *Dispatcher) Settled() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled
}

// Stop cancels any pending dispatch; later updates are ignored.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
