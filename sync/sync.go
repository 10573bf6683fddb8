// Copyright 2025 Mohamed Yasser. All rights reserved.

// Package sync provides synchronization primitives which work across
// process boundaries through shared memory.
package sync

import (
	"sync"
	"time"
)

// IPCLocker is a minimal interface, which must be satisfied by any
// process-shared synchronization primitive on any platform.
type IPCLocker interface {
	sync.Locker
	// TryLock makes a single attempt to lock the locker.
	TryLock() bool
}

// TimedIPCLocker is a locker, whose lock operation can be limited with duration.
type TimedIPCLocker interface {
	IPCLocker
	// LockTimeout tries to lock the locker, waiting for not more, than timeout.
	LockTimeout(timeout time.Duration) bool
}
