package ui

import (
	"sync"
	"testing"
	"time"
)

type statusRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *statusRecorder) set(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *statusRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return ""
	}
	return r.msgs[len(r.msgs)-1]
}

func newStatusLine(r *statusRecorder) *statusLine {
	return &statusLine{ready: "Ready", set: r.set}
}

func waitFor(t *testing.T, r *statusRecorder, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.last() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status = %q, want %q", r.last(), want)
}

func TestStatusLineResetsAfterTimeout(t *testing.T) {
	r := &statusRecorder{}
	s := newStatusLine(r)

	s.show("Copied answer #1 to clipboard", 20*time.Millisecond)
	if got := r.last(); got != "Copied answer #1 to clipboard" {
		t.Fatalf("status = %q", got)
	}
	waitFor(t, r, "Ready")
}

func TestStatusLineWithoutTimeoutStays(t *testing.T) {
	r := &statusRecorder{}
	s := newStatusLine(r)

	s.show("Processing selected area...", 0)
	time.Sleep(50 * time.Millisecond)
	if got := r.last(); got != "Processing selected area..." {
		t.Fatalf("status = %q, want it to stay", got)
	}
}

func TestStatusLineNewerMessageCancelsReset(t *testing.T) {
	r := &statusRecorder{}
	s := newStatusLine(r)

	s.show("History cleared - Ready for capture", 20*time.Millisecond)
	s.show("Select an area on your screen...", 0)
	time.Sleep(60 * time.Millisecond)
	if got := r.last(); got != "Select an area on your screen..." {
		t.Fatalf("stale reset overwrote the status: %q", got)
	}

	s.show("Busy", 40*time.Millisecond)
	s.show("Nothing to copy yet", 10*time.Millisecond)
	waitFor(t, r, "Ready")
	r.mu.Lock()
	n := len(r.msgs)
	r.mu.Unlock()
	time.Sleep(60 * time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) != n {
		t.Errorf("an older timer fired again: %v", r.msgs[n:])
	}
}
