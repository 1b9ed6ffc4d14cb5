package singleinstance

import (
	"context"
	"net"
	"testing"
	"time"
)

// freeAddr reserves an ephemeral loopback port and releases it again.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestProbeWithoutListener(t *testing.T) {
	addr := freeAddr(t)
	start := time.Now()
	if Probe(context.Background(), addr, 500*time.Millisecond) {
		t.Fatalf("expected probe of %s to fail", addr)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("probe took %v, expected to finish within its timeout", elapsed)
	}
}

func TestProbeCancelledContext(t *testing.T) {
	srv := NewServer("127.0.0.1:0")
	if err := srv.Start(context.Background()); err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	defer srv.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if Probe(ctx, srv.Addr(), time.Second) {
		t.Error("expected cancelled probe to report false")
	}
}

func TestServerStartProbeStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0")
	if err := srv.Start(context.Background()); err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	addr := srv.Addr()
	if srv.Port() == 0 {
		t.Fatal("expected a bound port")
	}

	// Several probes in a row: every accepted connection is closed immediately.
	for i := 0; i < 3; i++ {
		if !Probe(context.Background(), addr, time.Second) {
			t.Fatalf("probe %d: expected running instance on %s", i, addr)
		}
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if srv.Port() != 0 {
		t.Error("expected port 0 after stop")
	}

	deadline := time.Now().Add(3 * time.Second)
	for Probe(context.Background(), addr, 200*time.Millisecond) {
		if time.Now().After(deadline) {
			t.Fatalf("probe still succeeds after stop")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestServerStopIdempotent(t *testing.T) {
	srv := NewServer(freeAddr(t))
	if err := srv.Stop(); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestServerBindConflict(t *testing.T) {
	first := NewServer("127.0.0.1:0")
	if err := first.Start(context.Background()); err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	defer first.Stop()

	second := NewServer(first.Addr())
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected bind conflict on an owned port")
	}
	if err := second.Stop(); err != nil {
		t.Errorf("stop after failed start: %v", err)
	}
}

func TestServerStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer("127.0.0.1:0")
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Port() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("server did not stop when its context was cancelled")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAcquireLockExclusive(t *testing.T) {
	addr := freeAddr(t)
	lock, err := AcquireLock(context.Background(), addr, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := AcquireLock(ctx, addr, 10*time.Millisecond); err == nil {
		t.Fatal("expected second acquire to time out while the lock is held")
	}

	acquired := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		l, err := AcquireLock(ctx, addr, 10*time.Millisecond)
		if err == nil {
			defer l.Release()
		}
		acquired <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := lock.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if err := <-acquired; err != nil {
		t.Fatalf("waiter did not get the lock after release: %v", err)
	}
}

func TestAddress(t *testing.T) {
	if got := Address(12345); got != "127.0.0.1:12345" {
		t.Errorf("Address(12345) = %q", got)
	}
}
