package navigation

import (
	"sync/atomic"
	"testing"
	"time"
)

const testWindow = 50 * time.Millisecond

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(testWindow, func() { calls.Add(1) })

	for range 10 {
		d.Trigger()
		time.Sleep(testWindow / 10)
	}
	time.Sleep(3 * testWindow)

	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestDebouncer_SeparateQuietPeriods(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(testWindow, func() { calls.Add(1) })

	d.Trigger()
	time.Sleep(3 * testWindow)
	d.Trigger()
	time.Sleep(3 * testWindow)

	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(testWindow, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	time.Sleep(3 * testWindow)

	if got := calls.Load(); got != 0 {
		t.Errorf("calls = %d, want 0 after Stop", got)
	}
}

func receive(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no navigation event")
	}
	return Event{}
}

func expectNone(t *testing.T, w *Watcher, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(wait):
	}
}

func TestWatcher_MutationBurstEmitsOnceWithLatestURL(t *testing.T) {
	w := NewWatcher("https://site.example/", testWindow)
	defer w.Close()

	w.Mutation("https://site.example/a")
	w.Mutation("https://site.example/b")
	w.Mutation("https://site.example/c")

	ev := receive(t, w)
	if ev.URL != "https://site.example/c" {
		t.Errorf("URL = %q, want the URL current when the window closed", ev.URL)
	}
	if ev.Kind != KindMutation {
		t.Errorf("Kind = %q, want mutation", ev.Kind)
	}
	expectNone(t, w, 3*testWindow)
}

func TestWatcher_UnchangedMutationIgnored(t *testing.T) {
	w := NewWatcher("https://site.example/", testWindow)
	defer w.Close()

	w.Mutation("https://site.example/")
	expectNone(t, w, 3*testWindow)
}

func TestWatcher_HistoryIsDebounced(t *testing.T) {
	w := NewWatcher("https://site.example/a", testWindow)
	defer w.Close()

	w.History("https://site.example/b")
	w.Mutation("https://site.example/c")
	w.History("https://site.example/b")

	ev := receive(t, w)
	if ev.URL != "https://site.example/b" || ev.Kind != KindHistory {
		t.Errorf("event = %+v", ev)
	}
	expectNone(t, w, 3*testWindow)
}

func TestWatcher_RouterFiresImmediately(t *testing.T) {
	w := NewWatcher("https://site.example/", time.Hour)
	defer w.Close()

	w.Router("https://site.example/account")
	ev := receive(t, w)
	if ev.Kind != KindRouter || ev.URL != "https://site.example/account" {
		t.Errorf("event = %+v", ev)
	}
	if w.Href() != "https://site.example/account" {
		t.Errorf("Href() = %q", w.Href())
	}
}

func TestWatcher_CloseClosesChannel(t *testing.T) {
	w := NewWatcher("https://site.example/", testWindow)
	w.Mutation("https://site.example/x")
	w.Close()
	w.Close()

	// Signals after close are ignored.
	w.Mutation("https://site.example/y")
	w.History("https://site.example/z")
	w.Router("https://site.example/w")

	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-w.Events():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("events channel not closed")
		}
	}
}

func TestWatcher_DropsOldestWhenFull(t *testing.T) {
	w := NewWatcher("https://site.example/", testWindow)
	defer w.Close()

	for i := range cap(w.events) + 5 {
		w.Router("https://site.example/" + string(rune('a'+i)))
	}
	if n := len(w.events); n != cap(w.events) {
		t.Fatalf("queued = %d, want %d", n, cap(w.events))
	}
	var last Event
	for len(w.events) > 0 {
		last = <-w.events
	}
	if last.URL != w.Href() {
		t.Errorf("last queued URL = %q, want %q", last.URL, w.Href())
	}
}
