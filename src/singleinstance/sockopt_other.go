//go:build !unix && !windows

package singleinstance

import "syscall"

func controlListener(network, address string, c syscall.RawConn) error { return nil }
