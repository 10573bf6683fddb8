// Copyright 2025 Mohamed Yasser. All rights reserved.

//go:build linux

package sync

import (
	"os"
	"runtime"
	"time"
	"unsafe"

	"github.com/YASSERRMD/nabd/internal/common"
	"golang.org/x/sys/unix"
)

const (
	cFUTEX_WAIT = 0
	cFUTEX_WAKE = 1
)

// FutexWait checks if the value equals the futex's value.
// If it doesn't, FutexWait returns EWOULDBLOCK.
// Otherwise, it waits for a FutexWake call for not longer, than timeout.
// A negative timeout means to wait forever.
func FutexWait(addr unsafe.Pointer, value uint32, timeout time.Duration) error {
	return common.UninterruptedSyscallTimeout(func(curTimeout time.Duration) error {
		ts := common.TimeoutToTimeSpec(curTimeout)
		_, err := futex(addr, cFUTEX_WAIT, value, unsafe.Pointer(ts), nil, 0)
		return err
	}, timeout)
}

// FutexWake wakes count threads waiting on the futex.
// It returns the number of woken threads.
func FutexWake(addr unsafe.Pointer, count uint32) (int, error) {
	var woken int32
	err := common.UninterruptedSyscall(func() error {
		var wakeErr error
		woken, wakeErr = futex(addr, cFUTEX_WAKE, count, nil, nil, 0)
		return wakeErr
	})
	if err != nil {
		return 0, err
	}
	return int(woken), nil
}

// wait parks the caller while the state cell holds ifValue. A concurrent
// change of the cell is not an error, the locker loop rechecks the state.
func wait(addr *uint32, ifValue uint32, timeout time.Duration) error {
	err := FutexWait(unsafe.Pointer(addr), ifValue, timeout)
	if err == nil || common.SyscallErrHasCode(err, unix.EWOULDBLOCK) {
		return nil
	}
	return err
}

func wake(addr *uint32, count uint32) {
	if _, err := FutexWake(unsafe.Pointer(addr), count); err != nil {
		panic(err)
	}
}

func futex(addr unsafe.Pointer, op int32, val uint32, ts, addr2 unsafe.Pointer, val3 uint32) (int32, error) {
	r1, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(addr),
		uintptr(op),
		uintptr(val),
		uintptr(ts),
		uintptr(addr2),
		uintptr(val3))
	runtime.KeepAlive(ts)
	runtime.KeepAlive(addr2)
	if errno != 0 {
		return 0, os.NewSyscallError("FUTEX", errno)
	}
	return int32(r1), nil
}
