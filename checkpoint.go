// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Checkpoint files are 48 bytes of little-endian uint64s: magic,
// timestamp, pushed, popped, pending, checksum.
const (
	checkpointMagic = uint64(0x434B5054414244)
	checkpointSize  = 48
)

// Checkpoint is a saved view of the queue counters, for consumers that
// want to pick up where they left off after a restart.
type Checkpoint struct {
	Timestamp uint64 // unix nanoseconds at save time
	Pushed    uint64
	Popped    uint64
	Pending   uint64
}

func checkpointSum(ts, pushed, popped, pending uint64) uint64 {
	sum := checkpointMagic ^ ts ^ pushed ^ popped ^ pending
	return sum<<13 | sum>>51
}

// WriteCheckpoint saves the current queue counters to a regular file at
// path, replacing whatever is there.
func (q *Queue) WriteCheckpoint(path string) error {
	r := q.ring
	if r == nil {
		return ErrClosed
	}
	hdr := r.hdr
	c := Checkpoint{
		Timestamp: uint64(time.Now().UnixNano()),
		Pushed:    hdr.loadPushed(),
		Popped:    hdr.loadPopped(),
		Pending:   hdr.loadCount(),
	}
	buf := make([]byte, checkpointSize)
	binary.LittleEndian.PutUint64(buf[0:], checkpointMagic)
	binary.LittleEndian.PutUint64(buf[8:], c.Timestamp)
	binary.LittleEndian.PutUint64(buf[16:], c.Pushed)
	binary.LittleEndian.PutUint64(buf[24:], c.Popped)
	binary.LittleEndian.PutUint64(buf[32:], c.Pending)
	binary.LittleEndian.PutUint64(buf[40:], checkpointSum(c.Timestamp, c.Pushed, c.Popped, c.Pending))
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return errors.Wrap(err, "failed to write checkpoint")
	}
	return nil
}

// LoadCheckpoint reads a checkpoint file and validates its magic and
// checksum. A missing file fails with ErrNotFound, a damaged one with
// ErrCorrupted.
func LoadCheckpoint(path string) (Checkpoint, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, errors.Wrapf(ErrNotFound, "no checkpoint at %q", path)
		}
		return Checkpoint{}, errors.Wrap(err, "failed to read checkpoint")
	}
	if len(buf) != checkpointSize {
		return Checkpoint{}, errors.Wrapf(ErrCorrupted, "checkpoint holds %d bytes, want %d", len(buf), checkpointSize)
	}
	if magic := binary.LittleEndian.Uint64(buf[0:]); magic != checkpointMagic {
		return Checkpoint{}, errors.Wrapf(ErrCorrupted, "bad checkpoint magic %#x", magic)
	}
	c := Checkpoint{
		Timestamp: binary.LittleEndian.Uint64(buf[8:]),
		Pushed:    binary.LittleEndian.Uint64(buf[16:]),
		Popped:    binary.LittleEndian.Uint64(buf[24:]),
		Pending:   binary.LittleEndian.Uint64(buf[32:]),
	}
	if sum := binary.LittleEndian.Uint64(buf[40:]); sum != checkpointSum(c.Timestamp, c.Pushed, c.Popped, c.Pending) {
		return Checkpoint{}, errors.Wrap(ErrCorrupted, "checkpoint checksum mismatch")
	}
	return c, nil
}
