package watch

import (
	"strings"
	"sync"
	"time"
)

// Debouncer collects changed paths and hands them over in one batch once no
// new change arrived for the delay. A batch lists every path once, in the
// order it first changed, so updates are scheduled in edit order.
type Debouncer struct {
	delay    time.Duration
	delayFor func(pending int) time.Duration
	fire     func(paths []string)

	mu      sync.Mutex
	timer   *time.Timer
	order   []string
	seen    map[string]struct{}
	stopped bool
}

func NewDebouncer(delay time.Duration, fire func(paths []string)) *Debouncer {
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	return &Debouncer{
		delay: delay,
		fire:  fire,
		seen:  map[string]struct{}{},
	}
}

// SetDelayFunc makes the quiet period depend on the number of pending paths.
func (d *Debouncer) SetDelayFunc(fn func(pending int) time.Duration) {
	d.mu.Lock()
	d.delayFor = fn
	d.mu.Unlock()
}

func (d *Debouncer) delayLocked() time.Duration {
	if d.delayFor == nil {
		return d.delay
	}
	if delay := d.delayFor(len(d.order)); delay > 0 {
		return delay
	}
	return d.delay
}

func (d *Debouncer) Push(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if _, ok := d.seen[path]; !ok {
		d.seen[path] = struct{}{}
		d.order = append(d.order, path)
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delayLocked(), d.Flush)
}

// Pending is the number of paths waiting for the next batch.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// Flush hands the pending batch over now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	batch := d.order
	d.order = nil
	d.seen = map[string]struct{}{}
	fire := d.fire
	d.mu.Unlock()

	if fire != nil && len(batch) > 0 {
		fire(batch)
	}
}

// Stop cancels the pending batch and rejects further pushes. It returns the
// paths that were dropped.
func (d *Debouncer) Stop() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	dropped := d.order
	d.order = nil
	d.seen = map[string]struct{}{}
	return dropped
}
