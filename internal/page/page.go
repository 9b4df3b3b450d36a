// Package page describes the parts of a browser page that the login handler
// and the route guard act on. Hosts supply implementations.
package page

import (
	"net/url"
	"strings"
)

// Window is the current tab's location and its user-visible side effects.
type Window interface {
	Location() *url.URL
	Navigate(target string)
	Alert(message string)
}

// Control is the login trigger button.
type Control interface {
	Label() string
	SetLabel(label string)
	SetDisabled(disabled bool)
}

// Fields finds input values by their marker attribute.
type Fields interface {
	Lookup(marker string) (value string, ok bool)
}

// Event is a DOM event that can be cancelled.
type Event interface {
	PreventDefault()
	StopPropagation()
	StopImmediatePropagation()
}

// FieldMap is a Fields backed by a map. A marker missing from the map is an
// element that does not exist on the page.
type FieldMap map[string]string

func (m FieldMap) Lookup(marker string) (string, bool) {
	v, ok := m[marker]
	return v, ok
}

// Origin returns scheme://host for u, or "" for a relative URL.
func Origin(u *url.URL) string {
	if u == nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Path returns u's path, "/" when empty.
func Path(u *url.URL) string {
	if u == nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// SameOriginPath reports whether target is an absolute path on the current
// origin ("/x", not "//host/x").
func SameOriginPath(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//")
}
