package reflex

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of Trigger calls into a single call of fn,
// made once wait has passed without a new trigger.
type Debouncer struct {
	mu      sync.Mutex
	wait    time.Duration
	fn      func()
	timer   *time.Timer
	stopped bool
}

// NewDebouncer returns a debouncer calling fn on its own goroutine.
func NewDebouncer(wait time.Duration, fn func()) *Debouncer {
	return &Debouncer{wait: wait, fn: fn}
}

// Trigger (re)starts the wait.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, d.fn)
}

// Stop cancels a scheduled call and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
