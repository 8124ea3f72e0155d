//go:build linux

package threadid

import "golang.org/x/sys/unix"

func currentThreadID() ID {
	return ID(unix.Gettid())
}
