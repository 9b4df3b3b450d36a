package cmd

import (
	"fmt"
	"io"
	"net/url"
	"sync"
)

// console is a page.Window and page.Control that reports to a terminal.
type console struct {
	out io.Writer

	mu     sync.Mutex
	loc    *url.URL
	label  string
	alerts []string
}

func newConsole(out io.Writer, rawURL string) (*console, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page url %q: %w", rawURL, err)
	}
	return &console{out: out, loc: u, label: "Sign in"}, nil
}

func (c *console) Location() *url.URL {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := *c.loc
	return &u
}

func (c *console) Navigate(target string) {
	c.mu.Lock()
	if ref, err := url.Parse(target); err == nil {
		c.loc = c.loc.ResolveReference(ref)
	}
	c.mu.Unlock()
	fmt.Fprintf(c.out, "navigate: %s\n", target)
}

func (c *console) Alert(message string) {
	c.mu.Lock()
	c.alerts = append(c.alerts, message)
	c.mu.Unlock()
	fmt.Fprintf(c.out, "alert: %s\n", message)
}

func (c *console) Label() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label
}

func (c *console) SetLabel(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.label = label
}

func (c *console) SetDisabled(bool) {}

// lastAlert returns the most recent alert, or "".
func (c *console) lastAlert() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.alerts) == 0 {
		return ""
	}
	return c.alerts[len(c.alerts)-1]
}
