package host

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEntry is one captured log record, served by /api/log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Attrs   string    `json:"attrs,omitempty"`
}

// LogBuffer keeps the most recent log entries in a fixed-size ring.
type LogBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
}

func NewLogBuffer(size int) *LogBuffer {
	if size < 1 {
		size = 1
	}
	return &LogBuffer{entries: make([]LogEntry, size)}
}

func (lb *LogBuffer) add(e LogEntry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.entries[lb.next] = e
	lb.next = (lb.next + 1) % len(lb.entries)
	if lb.next == 0 {
		lb.full = true
	}
}

// Entries returns a copy of the buffered entries, oldest first.
func (lb *LogBuffer) Entries() []LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if !lb.full {
		return append([]LogEntry{}, lb.entries[:lb.next]...)
	}
	out := make([]LogEntry, 0, len(lb.entries))
	out = append(out, lb.entries[lb.next:]...)
	return append(out, lb.entries[:lb.next]...)
}

// LogHandler forwards records to inner and copies them into a LogBuffer.
type LogHandler struct {
	inner  slog.Handler
	buf    *LogBuffer
	prefix string
	group  string
}

func NewLogHandler(inner slog.Handler, buf *LogBuffer) *LogHandler {
	return &LogHandler{inner: inner, buf: buf}
}

func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})

	h.buf.add(LogEntry{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
		Attrs:   b.String(),
	})
	return h.inner.Handle(ctx, r)
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, a := range attrs {
		writeAttr(&b, h.group, a)
	}
	return &LogHandler{inner: h.inner.WithAttrs(attrs), buf: h.buf, prefix: b.String(), group: h.group}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &LogHandler{inner: h.inner.WithGroup(name), buf: h.buf, prefix: h.prefix, group: group}
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	if group != "" {
		b.WriteString(group)
		b.WriteByte('.')
	}
	fmt.Fprintf(b, "%s=%v", a.Key, a.Value.Resolve())
}
