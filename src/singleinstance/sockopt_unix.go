//go:build unix

package singleinstance

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlListener enables SO_REUSEADDR so a restarted instance can rebind
// while the previous socket sits in TIME_WAIT. Active listeners still conflict.
func controlListener(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
