// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"github.com/pkg/errors"

	"github.com/YASSERRMD/nabd/mmf"
	ipc_sync "github.com/YASSERRMD/nabd/sync"
)

// QueueState classifies a queue segment for diagnostics.
type QueueState int

const (
	// StateOK means a valid header with pending messages.
	StateOK QueueState = iota
	// StateEmpty means a valid header and no pending messages.
	StateEmpty
	// StateCorrupted means a bad magic, impossible geometry or indices
	// out of range.
	StateCorrupted
	// StateVersionError means a valid magic with an unsupported layout
	// version.
	StateVersionError
	// StateIncomplete means the segment is smaller than a control block,
	// usually a leftover of an interrupted create.
	StateIncomplete
)

func (s QueueState) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateEmpty:
		return "empty"
	case StateCorrupted:
		return "corrupted"
	case StateVersionError:
		return "version-error"
	case StateIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Diagnostic is the result of examining a queue segment.
type Diagnostic struct {
	State     QueueState
	MagicOK   bool
	VersionOK bool
	Head      uint64
	Tail      uint64
	Pending   uint64
	Capacity  uint64
	SlotSize  uint64
}

// Diagnose opens the named queue read-only and classifies its segment.
// A missing name reports StateIncomplete together with ErrNotFound; every
// other classification is an answer, not an error. Diagnose takes no
// locks, results may race live producers and consumers.
func Diagnose(name string) (Diagnostic, error) {
	hdr, objSize, region, err := openHeader(name, mmf.MEM_READ_ONLY)
	if err != nil {
		d := Diagnostic{State: StateIncomplete}
		if errors.Cause(err) == errIncomplete {
			return d, nil
		}
		return d, err
	}
	defer region.Close()

	d := Diagnostic{State: StateCorrupted}
	d.MagicOK = hdr.loadMagic() == queueMagic
	if !d.MagicOK {
		return d, nil
	}
	d.VersionOK = hdr.version == queueVersion
	if !d.VersionOK {
		d.State = StateVersionError
		return d, nil
	}
	d.Head = hdr.loadHead()
	d.Tail = hdr.loadTail()
	d.Pending = hdr.loadCount()
	d.Capacity = hdr.capacity
	d.SlotSize = hdr.slotSize
	if err := checkHeader(hdr, objSize); err != nil {
		return d, nil
	}
	if d.Pending == 0 {
		d.State = StateEmpty
	} else {
		d.State = StateOK
	}
	return d, nil
}

// Recover repairs the named queue after a crash. It must not run
// concurrently with live handles on the same queue.
//
// Without force, a healthy queue is left alone, an incomplete segment is
// unlinked so it can be recreated, and anything else fails with the
// matching sentinel. With force, a structurally valid header gets its
// positions reset to empty and its lock word reinitialized, which frees
// queues whose lock holder died; headers with a foreign magic or version
// are unlinked instead.
func Recover(name string, force bool) error {
	diag, err := Diagnose(name)
	if err != nil {
		return err
	}
	switch diag.State {
	case StateIncomplete:
		return recoverUnlink(name)
	case StateOK, StateEmpty:
		if !force {
			return nil
		}
	case StateVersionError:
		if !force {
			return errors.Wrapf(ErrVersionMismatch, "queue %q needs force to recover", name)
		}
		return recoverUnlink(name)
	case StateCorrupted:
		if !force {
			return errors.Wrapf(ErrCorrupted, "queue %q needs force to recover", name)
		}
		if !diag.MagicOK {
			return recoverUnlink(name)
		}
	}

	hdr, _, region, err := openHeader(name, mmf.MEM_READWRITE)
	if err != nil {
		if errors.Cause(err) == errIncomplete {
			return recoverUnlink(name)
		}
		return err
	}
	defer region.Close()
	ipc_sync.NewInplaceMutex(hdr.lockWord()).Init()
	hdr.storeHead(0)
	hdr.storeTail(0)
	hdr.storeCount(0)
	internalLogger.warnf("force recovered queue %q: positions and lock reset", name)
	return nil
}

// recoverUnlink drops a segment that cannot be repaired in place. Losing
// the race to another recoverer is fine.
func recoverUnlink(name string) error {
	if err := Unlink(name); err != nil && errors.Cause(err) != ErrNotFound {
		return err
	}
	internalLogger.warnf("recovery unlinked queue %q", name)
	return nil
}
