package singleinstance

import (
	"context"
	"net"
	"time"
)

// Probe reports whether something accepts TCP connections on addr. Refused
// connections, timeouts and cancellation all count as "nobody listening".
func Probe(ctx context.Context, addr string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
