// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"math"
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/YASSERRMD/nabd/internal/allocator"
	"github.com/pkg/errors"
)

// Wire constants of the shared segment. Every process on the host must
// agree on these, they never change within a major version.
const (
	queueMagic   = uint64(0x4442414E00010000)
	queueVersion = uint64(0<<16 | 1)

	cacheLineSize  = 64
	headerSize     = 256
	slotHeaderSize = 8
)

// Geometry defaults applied when Create is given zero values.
const (
	// DefaultCapacity is the slot count used when Open creates a queue
	// with capacity 0.
	DefaultCapacity = 1024
	// DefaultSlotSize is the payload size used when Open creates a queue
	// with slotSize 0.
	DefaultSlotSize = 4096
)

// publishTimeout bounds the wait for a concurrent creator to finish
// publishing the control block of a freshly created segment.
const publishTimeout = 2 * time.Second

const maxInt = int64(^uint(0) >> 1)

// queueHeader is the control block at offset 0 of the segment, four cache
// lines long. Line 0 is immutable after publication. head and tail sit on
// their own lines, so pushers and poppers do not contend on one line.
// The trailing line carries the message count, the lock word and the
// monotonic totals.
type queueHeader struct {
	magic        uint64
	version      uint64
	capacity     uint64
	slotSize     uint64
	bufferOffset uint64
	_            [3]uint64

	head uint64
	_    [cacheLineSize/8 - 1]uint64

	tail uint64
	_    [cacheLineSize/8 - 1]uint64

	count       uint64
	lock        uint32
	_           uint32
	totalPushed uint64
	totalPopped uint64
	_           [4]uint64
}

// The header must occupy exactly headerSize bytes.
var (
	_ [headerSize - unsafe.Sizeof(queueHeader{})]byte
	_ [unsafe.Sizeof(queueHeader{}) - headerSize]byte
)

// slotHeader precedes every payload in the slot array.
type slotHeader struct {
	length   uint32
	sequence uint32
}

// Slot header size is part of the wire format.
var (
	_ [slotHeaderSize - unsafe.Sizeof(slotHeader{})]byte
	_ [unsafe.Sizeof(slotHeader{}) - slotHeaderSize]byte
)

func (h *queueHeader) loadMagic() uint64    { return atomic.LoadUint64(&h.magic) }
func (h *queueHeader) loadHead() uint64     { return atomic.LoadUint64(&h.head) }
func (h *queueHeader) storeHead(v uint64)   { atomic.StoreUint64(&h.head, v) }
func (h *queueHeader) loadTail() uint64     { return atomic.LoadUint64(&h.tail) }
func (h *queueHeader) storeTail(v uint64)   { atomic.StoreUint64(&h.tail, v) }
func (h *queueHeader) loadCount() uint64    { return atomic.LoadUint64(&h.count) }
func (h *queueHeader) storeCount(v uint64)  { atomic.StoreUint64(&h.count, v) }
func (h *queueHeader) incCount()            { atomic.AddUint64(&h.count, 1) }
func (h *queueHeader) decCount()            { atomic.AddUint64(&h.count, ^uint64(0)) }
func (h *queueHeader) loadPushed() uint64   { return atomic.LoadUint64(&h.totalPushed) }
func (h *queueHeader) incPushed() uint64    { return atomic.AddUint64(&h.totalPushed, 1) }
func (h *queueHeader) loadPopped() uint64   { return atomic.LoadUint64(&h.totalPopped) }
func (h *queueHeader) incPopped() uint64    { return atomic.AddUint64(&h.totalPopped, 1) }
func (h *queueHeader) lockWord() unsafe.Pointer {
	return unsafe.Pointer(&h.lock)
}

// headerAt interprets the start of a mapped segment as the control block.
func headerAt(data []byte) *queueHeader {
	return (*queueHeader)(allocator.ByteSliceData(data))
}

// initHeader fills a zeroed control block and publishes it. The magic is
// stored last with release semantics, attachers treat the block as absent
// until it appears.
func initHeader(hdr *queueHeader, capacity, slotSize int) {
	hdr.version = queueVersion
	hdr.capacity = uint64(capacity)
	hdr.slotSize = uint64(slotSize)
	hdr.bufferOffset = headerSize
	hdr.storeHead(0)
	hdr.storeTail(0)
	hdr.storeCount(0)
	atomic.StoreUint64(&hdr.totalPushed, 0)
	atomic.StoreUint64(&hdr.totalPopped, 0)
	atomic.StoreUint64(&hdr.magic, queueMagic)
}

// waitHeaderReady waits for a concurrent creator to publish the control
// block. A fresh segment reads as zero until initHeader stores the magic.
func waitHeaderReady(hdr *queueHeader) error {
	deadline := time.Now().Add(publishTimeout)
	for {
		switch magic := hdr.loadMagic(); magic {
		case queueMagic:
			return nil
		case 0:
			if time.Now().After(deadline) {
				return errors.Wrap(ErrCorrupted, "control block was never published")
			}
			runtime.Gosched()
		default:
			return errors.Wrapf(ErrCorrupted, "bad magic %#x", magic)
		}
	}
}

// checkHeader validates a published control block against the size of the
// mapped segment. mappedSize <= 0 skips the size check, for callers that
// mapped only the header.
func checkHeader(hdr *queueHeader, mappedSize int64) error {
	if magic := hdr.loadMagic(); magic != queueMagic {
		return errors.Wrapf(ErrCorrupted, "bad magic %#x", magic)
	}
	if hdr.version != queueVersion {
		return errors.Wrapf(ErrVersionMismatch, "segment version %#x, library version %#x", hdr.version, queueVersion)
	}
	if hdr.bufferOffset != headerSize {
		return errors.Wrapf(ErrCorrupted, "bad buffer offset %d", hdr.bufferOffset)
	}
	want, err := segmentSize(int64(hdr.capacity), int64(hdr.slotSize))
	if err != nil {
		return errors.Wrapf(ErrCorrupted, "impossible geometry: capacity %d, slot size %d", hdr.capacity, hdr.slotSize)
	}
	if mappedSize > 0 && mappedSize < want {
		return errors.Wrapf(ErrCorrupted, "segment holds %d bytes, geometry needs %d", mappedSize, want)
	}
	if hdr.loadHead() >= hdr.capacity || hdr.loadTail() >= hdr.capacity || hdr.loadCount() > hdr.capacity {
		return errors.Wrap(ErrCorrupted, "indices out of range")
	}
	return nil
}

// segmentSize computes the total segment size for the given geometry.
// It rejects non-positive values and products that cannot be mapped.
func segmentSize(capacity, slotSize int64) (int64, error) {
	if capacity <= 0 {
		return 0, errors.Wrap(ErrInvalid, "capacity must be positive")
	}
	if slotSize <= 0 {
		return 0, errors.Wrap(ErrInvalid, "slot size must be positive")
	}
	stride := slotSize + slotHeaderSize
	if capacity > (math.MaxInt64-headerSize)/stride {
		return 0, errors.Wrap(ErrInvalid, "queue dimensions overflow")
	}
	size := headerSize + capacity*stride
	if size > maxInt {
		return 0, errors.Wrap(ErrInvalid, "segment too large for this platform")
	}
	return size, nil
}

// ring provides typed access to the slot array of a mapped segment.
// Slots hold a slotHeader followed by slotSize payload bytes.
type ring struct {
	hdr      *queueHeader
	base     unsafe.Pointer
	capacity int
	slotSize int
	stride   int
}

func newRing(hdr *queueHeader) *ring {
	return &ring{
		hdr:      hdr,
		base:     allocator.AdvancePointer(unsafe.Pointer(hdr), uintptr(hdr.bufferOffset)),
		capacity: int(hdr.capacity),
		slotSize: int(hdr.slotSize),
		stride:   slotHeaderSize + int(hdr.slotSize),
	}
}

func (r *ring) slot(idx uint64) *slotHeader {
	return (*slotHeader)(allocator.AdvancePointer(r.base, uintptr(idx)*uintptr(r.stride)))
}

func (r *ring) payload(idx uint64) []byte {
	ptr := allocator.AdvancePointer(r.base, uintptr(idx)*uintptr(r.stride)+slotHeaderSize)
	return allocator.ByteSliceFromUnsafePointer(ptr, r.slotSize, r.slotSize)
}

// next returns the successor of a wrapped slot index.
func (r *ring) next(idx uint64) uint64 {
	idx++
	if idx == uint64(r.capacity) {
		return 0
	}
	return idx
}
