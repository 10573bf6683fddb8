// Copyright 2025 Mohamed Yasser. All rights reserved.

//go:build unix && !linux

package sync

import (
	"os"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"
)

// wait polls the state cell until it no longer holds ifValue or the timeout
// elapses. There is no futex-like facility to park on, so contended lockers
// burn scheduler quanta instead.
func wait(addr *uint32, ifValue uint32, timeout time.Duration) error {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	for atomic.LoadUint32(addr) == ifValue {
		if timeout >= 0 && !time.Now().Before(deadline) {
			return os.NewSyscallError("wait", syscall.ETIMEDOUT)
		}
		runtime.Gosched()
	}
	return nil
}

// wake is a no-op, waiters poll the state cell.
func wake(addr *uint32, count uint32) {
}
