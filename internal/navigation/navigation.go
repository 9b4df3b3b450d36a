// Package navigation turns raw browser signals into navigation events for
// the route guard.
package navigation

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period after the last signal before an
// event fires.
const DefaultDebounce = 100 * time.Millisecond

type Kind string

const (
	// KindHistory is native back/forward navigation.
	KindHistory Kind = "history"
	// KindMutation is a URL change seen after a DOM mutation.
	KindMutation Kind = "mutation"
	// KindRouter is a navigation reported directly by a client-side router.
	KindRouter Kind = "router"
)

type Event struct {
	Kind Kind
	URL  string
	At   time.Time
}

// Source emits navigation events. The channel is closed when the source
// shuts down.
type Source interface {
	Events() <-chan Event
}

// Debouncer runs fn once after no Trigger call has happened for the window.
// Each Trigger cancels and restarts the pending timer.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	fn     func()
	timer  *time.Timer
	gen    uint64
}

func NewDebouncer(window time.Duration, fn func()) *Debouncer {
	return &Debouncer{window: window, fn: fn}
}

func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		// A Trigger after this timer fired but before it took the lock wins.
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fn()
	})
}

// Stop cancels any pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// SetWindow changes the quiet period for later triggers.
func (d *Debouncer) SetWindow(window time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window = window
}
