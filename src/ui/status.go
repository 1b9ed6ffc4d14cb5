package ui

import (
	"sync"
	"time"
)

// statusLine shows a message and puts the ready text back after a timeout.
// A newer message cancels the pending reset of an older one.
type statusLine struct {
	ready string
	set   func(string)

	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
}

func (s *statusLine) show(msg string, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.set(msg)
	if timeout <= 0 {
		return
	}
	gen := s.gen
	s.timer = time.AfterFunc(timeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen == s.gen {
			s.set(s.ready)
		}
	})
}
