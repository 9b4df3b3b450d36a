// Package pagetest provides recording fakes for package page.
package pagetest

import (
	"net/url"
	"sync"
)

// Window records navigations and alerts. Navigate also moves Location.
type Window struct {
	mu          sync.Mutex
	loc         *url.URL
	navigations []string
	alerts      []string
}

// NewWindow starts the window at rawURL. It panics on a malformed URL.
func NewWindow(rawURL string) *Window {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic(err)
	}
	return &Window{loc: u}
}

func (w *Window) Location() *url.URL {
	w.mu.Lock()
	defer w.mu.Unlock()
	u := *w.loc
	return &u
}

// Go changes the location without recording a navigation, as a client-side
// router would.
func (w *Window) Go(rawURL string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loc = w.loc.ResolveReference(mustParse(rawURL))
}

func (w *Window) Navigate(target string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.navigations = append(w.navigations, target)
	w.loc = w.loc.ResolveReference(mustParse(target))
}

func (w *Window) Alert(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.alerts = append(w.alerts, message)
}

func (w *Window) Navigations() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.navigations...)
}

func (w *Window) Alerts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.alerts...)
}

// Control is a fake login button.
type Control struct {
	mu       sync.Mutex
	label    string
	disabled bool
	history  []string
}

func NewControl(label string) *Control {
	return &Control{label: label}
}

func (c *Control) Label() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label
}

func (c *Control) SetLabel(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.label = label
	c.history = append(c.history, label)
}

func (c *Control) SetDisabled(disabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = disabled
}

func (c *Control) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// Labels returns every label set, in order.
func (c *Control) Labels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.history...)
}

// Event records cancellation calls.
type Event struct {
	DefaultPrevented   bool
	PropagationStopped bool
	ImmediatelyStopped bool
}

func (e *Event) PreventDefault()           { e.DefaultPrevented = true }
func (e *Event) StopPropagation()          { e.PropagationStopped = true }
func (e *Event) StopImmediatePropagation() { e.ImmediatelyStopped = true }

func mustParse(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
