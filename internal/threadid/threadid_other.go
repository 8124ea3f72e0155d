//go:build !linux

package threadid

import (
	"bytes"
	"runtime"
	"strconv"
)

// currentThreadID falls back to the calling goroutine's id on platforms
// without a cheap syscall for the OS thread id. This is weaker than the
// Linux implementation (a goroutine can in principle migrate OS threads
// between the codec call and the error-channel read), but it keeps the
// Error Channel's "one entry per caller" contract on non-Linux dev machines
// where the real codec binding would never be linked anyway.
func currentThreadID() ID {
	var buf [64]byte

	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])

	if len(fields) < 2 {
		return ID(-1)
	}

	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return ID(-1)
	}

	return ID(id)
}
