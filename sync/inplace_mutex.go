// Copyright 2025 Mohamed Yasser. All rights reserved.

package sync

import (
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/YASSERRMD/nabd/internal/common"
)

const (
	cSpinCount = 100

	cMutexUnlocked          = uint32(0)
	cMutexLockedNoWaiters   = uint32(1)
	cMutexLockedHaveWaiters = uint32(2)
)

// InplaceMutexSize is the number of bytes an InplaceMutex state cell occupies.
const InplaceMutexSize = int(unsafe.Sizeof(uint32(0)))

// InplaceMutex must implement TimedIPCLocker on all platforms.
var _ TimedIPCLocker = (*InplaceMutex)(nil)

// InplaceMutex is a mutex, which can be placed into a shared memory region.
// All processes mapping the region share its state. Contended lockers park
// on a futex on linux and poll the state cell elsewhere.
type InplaceMutex struct {
	ptr *uint32
}

// NewInplaceMutex creates a new mutex based on a memory location.
//	ptr - memory location for the state. must be 4-byte aligned.
func NewInplaceMutex(ptr unsafe.Pointer) *InplaceMutex {
	return &InplaceMutex{ptr: (*uint32)(ptr)}
}

// Init writes the unlocked state into the mutex's memory location.
// It must be called exactly once, by the creator of the shared region.
func (m *InplaceMutex) Init() {
	atomic.StoreUint32(m.ptr, cMutexUnlocked)
}

// Lock locks the locker.
func (m *InplaceMutex) Lock() {
	if err := m.lockTimeout(-1); err != nil {
		panic(err)
	}
}

// TryLock tries to lock the locker. Returns true, if it was locked.
func (m *InplaceMutex) TryLock() bool {
	return atomic.CompareAndSwapUint32(m.ptr, cMutexUnlocked, cMutexLockedNoWaiters)
}

// LockTimeout tries to lock the locker, waiting for not more, than timeout.
// A negative timeout means to wait forever.
func (m *InplaceMutex) LockTimeout(timeout time.Duration) bool {
	err := m.lockTimeout(timeout)
	if err == nil {
		return true
	}
	if common.IsTimeoutErr(err) {
		return false
	}
	panic(err)
}

// Unlock releases the mutex. It panics on an error, or if the mutex is not locked.
func (m *InplaceMutex) Unlock() {
	if old := atomic.LoadUint32(m.ptr); old == cMutexLockedHaveWaiters {
		atomic.StoreUint32(m.ptr, cMutexUnlocked)
	} else {
		if old == cMutexUnlocked {
			panic("unlock of unlocked mutex")
		}
		if atomic.SwapUint32(m.ptr, cMutexUnlocked) == cMutexLockedNoWaiters {
			return
		}
	}
	// Give an active spinner the chance to grab the mutex without a
	// syscall. Whoever takes it inherits the duty to wake the sleepers.
	for i := 0; i < cSpinCount; i++ {
		if atomic.LoadUint32(m.ptr) != cMutexUnlocked {
			if atomic.CompareAndSwapUint32(m.ptr, cMutexLockedNoWaiters, cMutexLockedHaveWaiters) {
				return
			}
		}
		runtime.Gosched()
	}
	wake(m.ptr, 1)
}

func (m *InplaceMutex) lockTimeout(timeout time.Duration) error {
	for i := 0; i < cSpinCount; i++ {
		if atomic.CompareAndSwapUint32(m.ptr, cMutexUnlocked, cMutexLockedNoWaiters) {
			return nil
		}
		runtime.Gosched()
	}
	old := atomic.LoadUint32(m.ptr)
	if old != cMutexLockedHaveWaiters {
		old = atomic.SwapUint32(m.ptr, cMutexLockedHaveWaiters)
	}
	for old != cMutexUnlocked {
		if err := wait(m.ptr, cMutexLockedHaveWaiters, timeout); err != nil {
			return err
		}
		old = atomic.SwapUint32(m.ptr, cMutexLockedHaveWaiters)
	}
	return nil
}
