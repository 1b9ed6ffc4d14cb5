package singleinstance

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
)

// Server owns the coordination port for the lifetime of the application.
type Server struct {
	addr string

	mu   sync.Mutex
	lis  net.Listener
	done chan struct{}
}

// NewServer returns a server for addr. Nothing is bound until Start.
func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// Start binds the port and accepts in the background. A bind failure is
// returned to the caller, which is free to carry on without the signal.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}

	lis, err := listen(ctx, s.addr)
	if err != nil {
		log.Printf("singleinstance: failed to bind %s: %v", s.addr, err)
		return err
	}
	s.lis = lis
	s.done = make(chan struct{})
	log.Printf("singleinstance: listening on %s", lis.Addr())

	go s.acceptLoop(lis, s.done)
	go func(done chan struct{}) {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-done:
		}
	}(s.done)
	return nil
}

func (s *Server) acceptLoop(lis net.Listener, done chan struct{}) {
	for {
		c, err := lis.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Printf("singleinstance: accept stopped: %v", err)
			}
			return
		}
		log.Printf("singleinstance: probe from %s", c.RemoteAddr())
		_ = c.Close()

		select {
		case <-done:
			return
		default:
		}
	}
}

// Stop releases the port. It is idempotent and safe to call before Start.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	err := s.lis.Close()
	close(s.done)
	s.lis = nil
	log.Printf("singleinstance: released %s", s.addr)
	return err
}

// Addr returns the bound address, or the configured one when not started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return s.lis.Addr().String()
	}
	return s.addr
}

// Port returns the bound TCP port (0 if not started).
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return 0
	}
	if a, ok := s.lis.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

func listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: controlListener}
	return lc.Listen(ctx, "tcp", addr)
}
