// Package singleinstance guards the desktop application against duplicate
// instances using a loopback TCP port as the coordination signal.
//
// The resident instance binds the port and accepts connections only to close
// them again; nothing is ever read or written. A starting instance probes the
// port first: a successful connect means somebody already owns it. The probe
// is best effort, not a lock. The launcher, which does need mutual exclusion,
// uses AcquireLock on a second port.
package singleinstance

import (
	"net"
	"strconv"
	"time"
)

const (
	residentHost = "127.0.0.1"

	// DefaultProbeTimeout bounds a single liveness probe.
	DefaultProbeTimeout = time.Second
)

// Address returns the loopback address for port.
func Address(port int) string {
	return net.JoinHostPort(residentHost, strconv.Itoa(port))
}
