//go:build !unix && !windows

package spawn

import "syscall"

func detachedAttr() *syscall.SysProcAttr { return nil }
