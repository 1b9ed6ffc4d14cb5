package singleinstance

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Lock is a cross-process mutex backed by an exclusively bound loopback port.
// The OS releases it if the holder dies.
type Lock struct {
	once sync.Once
	lis  net.Listener
}

// AcquireLock binds addr, retrying every retry interval until it succeeds or
// ctx is done.
func AcquireLock(ctx context.Context, addr string, retry time.Duration) (*Lock, error) {
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	for {
		lis, err := listen(ctx, addr)
		if err == nil {
			return &Lock{lis: lis}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w (last bind error: %v)", addr, ctx.Err(), err)
		case <-time.After(retry):
		}
	}
}

// Release frees the lock. Further calls are no-ops.
func (l *Lock) Release() error {
	var err error
	l.once.Do(func() { err = l.lis.Close() })
	return err
}
