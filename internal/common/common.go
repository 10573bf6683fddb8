// Copyright 2025 Mohamed Yasser. All rights reserved.

// Package common contains helpers shared by the shm and sync packages.
package common

import (
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// OpenOrCreate runs the given creator according to the open flags.
// creator is called with create=true to make a new object and with
// create=false to open an existing one. For os.O_CREATE without os.O_EXCL
// it alternates between the two until one of them succeeds, so that
// concurrent openers race safely.
func OpenOrCreate(creator func(create bool) error, flag int) (created bool, err error) {
	switch flag & (os.O_CREATE | os.O_EXCL) {
	case 0:
		return false, creator(false)
	case os.O_CREATE | os.O_EXCL:
		if err = creator(true); err != nil {
			return false, err
		}
		return true, nil
	case os.O_CREATE:
		const attempts = 16
		for i := 0; i < attempts; i++ {
			if err = creator(true); err == nil {
				return true, nil
			}
			if !os.IsExist(errors.Cause(err)) {
				return false, err
			}
			if err = creator(false); err == nil {
				return false, nil
			}
			if !os.IsNotExist(errors.Cause(err)) {
				return false, err
			}
		}
		return false, errors.Wrap(err, "too many attempts to open or create the object")
	default:
		return false, errors.New("os.O_EXCL without os.O_CREATE is not a valid open mode")
	}
}

// TimeoutToTimeSpec converts a timeout into a unix.Timespec pointer.
// Negative timeouts mean infinite wait and convert to nil.
func TimeoutToTimeSpec(timeout time.Duration) *unix.Timespec {
	if timeout < 0 {
		return nil
	}
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	return &ts
}

// UninterruptedSyscall runs f, retrying as long as it fails with EINTR.
func UninterruptedSyscall(f func() error) error {
	for {
		err := f()
		if !IsInterruptedSyscallErr(err) {
			return err
		}
	}
}

// UninterruptedSyscallTimeout runs f, retrying on EINTR with the remaining
// part of the timeout. Negative timeouts mean infinite wait and are passed
// through unchanged.
func UninterruptedSyscallTimeout(f func(time.Duration) error, timeout time.Duration) error {
	for {
		opStart := time.Now()
		err := f(timeout)
		if !IsInterruptedSyscallErr(err) {
			return err
		}
		if timeout >= 0 {
			elapsed := time.Since(opStart)
			if timeout > elapsed {
				timeout -= elapsed
			} else {
				timeout = 0
			}
		}
	}
}

// SyscallErrHasCode reports whether err is an os.SyscallError
// wrapping the given errno.
func SyscallErrHasCode(err error, code syscall.Errno) bool {
	if sysErr, ok := errors.Cause(err).(*os.SyscallError); ok {
		if errno, ok := sysErr.Err.(syscall.Errno); ok {
			return errno == code
		}
	}
	return false
}

// IsInterruptedSyscallErr reports whether err is an interrupted syscall error.
func IsInterruptedSyscallErr(err error) bool {
	return SyscallErrHasCode(err, syscall.EINTR)
}

// IsTimeoutErr reports whether err is a wait timeout error.
func IsTimeoutErr(err error) bool {
	return SyscallErrHasCode(err, syscall.ETIMEDOUT) || SyscallErrHasCode(err, syscall.EAGAIN)
}
