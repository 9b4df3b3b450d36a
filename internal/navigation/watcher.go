package navigation

import (
	"sync"
	"time"
)

// Watcher is a Source fed by a host page. History and mutation signals are
// debounced together; router signals fire immediately.
type Watcher struct {
	mu       sync.Mutex
	href     string
	lastKind Kind
	closed   bool

	events   chan Event
	debounce *Debouncer
}

// NewWatcher starts with the page's current href. A window <= 0 uses
// DefaultDebounce.
func NewWatcher(href string, window time.Duration) *Watcher {
	if window <= 0 {
		window = DefaultDebounce
	}
	w := &Watcher{
		href:   href,
		events: make(chan Event, 16),
	}
	w.debounce = NewDebouncer(window, w.fire)
	return w
}

func (w *Watcher) Events() <-chan Event {
	return w.events
}

// History records a native back/forward navigation.
func (w *Watcher) History(href string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.href = href
	w.lastKind = KindHistory
	w.mu.Unlock()
	w.debounce.Trigger()
}

// Mutation records the href observed after a DOM mutation. Mutations that
// leave the href unchanged are ignored.
func (w *Watcher) Mutation(href string) {
	w.mu.Lock()
	if w.closed || href == w.href {
		w.mu.Unlock()
		return
	}
	w.href = href
	w.lastKind = KindMutation
	w.mu.Unlock()
	w.debounce.Trigger()
}

// Router records a navigation reported by a router integration.
func (w *Watcher) Router(href string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.href = href
	w.emitLocked(Event{Kind: KindRouter, URL: href, At: time.Now()})
}

// Href returns the most recently observed href.
func (w *Watcher) Href() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.href
}

// SetDebounce changes the quiet period for later signals.
func (w *Watcher) SetDebounce(window time.Duration) {
	if window <= 0 {
		window = DefaultDebounce
	}
	w.debounce.SetWindow(window)
}

// Close stops pending timers and closes the event channel.
func (w *Watcher) Close() {
	w.debounce.Stop()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.events)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.emitLocked(Event{Kind: w.lastKind, URL: w.href, At: time.Now()})
}

// emitLocked drops the oldest queued event when the buffer is full.
func (w *Watcher) emitLocked(ev Event) {
	select {
	case w.events <- ev:
		return
	default:
	}
	select {
	case <-w.events:
	default:
	}
	select {
	case w.events <- ev:
	default:
	}
}
