// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"github.com/YASSERRMD/nabd/shm"
	"github.com/pkg/errors"
)

// Queue errors. Push and Pop return these sentinels unwrapped, so hot paths
// can compare them directly; lifecycle operations wrap them with context and
// the cause stays reachable through errors.Cause and errors.Is.
var (
	// ErrEmpty is returned by Pop, Peek and Release when the queue holds no messages.
	ErrEmpty = newTemporaryError(errors.New("queue is empty"))
	// ErrFull is returned by Push and Reserve when every slot is occupied.
	ErrFull = newTemporaryError(errors.New("queue is full"))
	// ErrTooBig is returned when a message does not fit into a slot.
	ErrTooBig = errors.New("message exceeds slot size")
	// ErrBufferTooSmall is returned by Pop when the caller's buffer cannot
	// hold the head message. The message stays in the queue.
	ErrBufferTooSmall = errors.New("receive buffer is too small")
	// ErrSizeMismatch is returned when attach-time geometry differs from the
	// queue in shared memory.
	ErrSizeMismatch = errors.New("capacity or slot size differs from the existing queue")
	// ErrNotFound is returned when no queue with the given name exists.
	ErrNotFound = errors.New("queue does not exist")
	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("queue handle is closed")
	// ErrInvalid is returned for bad arguments, flags, or reservation misuse.
	ErrInvalid = errors.New("invalid argument")
	// ErrCorrupted is returned when the control block fails validation.
	ErrCorrupted = errors.New("queue control block is corrupted")
	// ErrVersionMismatch is returned when the segment was written by an
	// incompatible library version.
	ErrVersionMismatch = errors.New("queue layout version mismatch")
)

// ErrNameInvalid is returned for malformed queue names.
var ErrNameInvalid = shm.ErrNameInvalid

type temporaryError struct {
	error
}

func (temporaryError) Temporary() bool { return true }

func newTemporaryError(inner error) error {
	return temporaryError{inner}
}

// IsTemporary reports whether err is transient, meaning the operation may
// succeed if retried. ErrFull and ErrEmpty are temporary.
func IsTemporary(err error) bool {
	tmp, ok := errors.Cause(err).(interface{ Temporary() bool })
	return ok && tmp.Temporary()
}
