// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"testing"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func makeTestSegment(capacity, slotSize int) (*queueHeader, error) {
	size, err := segmentSize(int64(capacity), int64(slotSize))
	if err != nil {
		return nil, err
	}
	hdr := headerAt(make([]byte, size))
	initHeader(hdr, capacity, slotSize)
	return hdr, nil
}

func TestControlBlockLayout(t *testing.T) {
	a := assert.New(t)
	var hdr queueHeader
	a.EqualValues(256, unsafe.Sizeof(hdr))
	a.EqualValues(0, unsafe.Offsetof(hdr.magic))
	a.EqualValues(8, unsafe.Offsetof(hdr.version))
	a.EqualValues(16, unsafe.Offsetof(hdr.capacity))
	a.EqualValues(24, unsafe.Offsetof(hdr.slotSize))
	a.EqualValues(32, unsafe.Offsetof(hdr.bufferOffset))
	a.EqualValues(64, unsafe.Offsetof(hdr.head))
	a.EqualValues(128, unsafe.Offsetof(hdr.tail))
	a.EqualValues(192, unsafe.Offsetof(hdr.count))
	a.EqualValues(200, unsafe.Offsetof(hdr.lock))
	a.EqualValues(208, unsafe.Offsetof(hdr.totalPushed))
	a.EqualValues(216, unsafe.Offsetof(hdr.totalPopped))

	var slot slotHeader
	a.EqualValues(8, unsafe.Sizeof(slot))
	a.EqualValues(0, unsafe.Offsetof(slot.length))
	a.EqualValues(4, unsafe.Offsetof(slot.sequence))
}

func TestSegmentSize(t *testing.T) {
	a := assert.New(t)
	size, err := segmentSize(1, 1)
	a.NoError(err)
	a.EqualValues(265, size)
	size, err = segmentSize(16, 64)
	a.NoError(err)
	a.EqualValues(1408, size)
	size, err = segmentSize(1024, 4096)
	a.NoError(err)
	a.EqualValues(256+1024*(4096+8), size)

	for _, dims := range [][2]int64{
		{0, 64}, {-1, 64}, {16, 0}, {16, -1},
		{1 << 62, 1 << 62}, {1 << 40, 1 << 40},
	} {
		_, err = segmentSize(dims[0], dims[1])
		if a.Error(err, "dims %v", dims) {
			a.Equal(ErrInvalid, errors.Cause(err), "dims %v", dims)
		}
	}
}

func TestInitHeaderPublishes(t *testing.T) {
	a := assert.New(t)
	size, err := segmentSize(16, 64)
	if !a.NoError(err) {
		return
	}
	hdr := headerAt(make([]byte, size))
	a.Zero(hdr.loadMagic())
	initHeader(hdr, 16, 64)
	a.Equal(queueMagic, hdr.loadMagic())
	a.Equal(queueVersion, hdr.version)
	a.EqualValues(16, hdr.capacity)
	a.EqualValues(64, hdr.slotSize)
	a.EqualValues(headerSize, hdr.bufferOffset)
	a.Zero(hdr.loadHead())
	a.Zero(hdr.loadTail())
	a.Zero(hdr.loadCount())
	a.NoError(checkHeader(hdr, size))
}

func TestWaitHeaderReady(t *testing.T) {
	a := assert.New(t)
	hdr, err := makeTestSegment(4, 16)
	if !a.NoError(err) {
		return
	}
	a.NoError(waitHeaderReady(hdr))
}

func TestWaitHeaderReadyBadMagic(t *testing.T) {
	a := assert.New(t)
	hdr, err := makeTestSegment(4, 16)
	if !a.NoError(err) {
		return
	}
	hdr.magic = 0xBADC0FFEE
	start := time.Now()
	err = waitHeaderReady(hdr)
	if a.Error(err) {
		a.Equal(ErrCorrupted, errors.Cause(err))
	}
	a.Less(time.Since(start), publishTimeout)
}

func TestWaitHeaderReadyDelayedPublish(t *testing.T) {
	a := assert.New(t)
	size, err := segmentSize(4, 16)
	if !a.NoError(err) {
		return
	}
	hdr := headerAt(make([]byte, size))
	go func() {
		time.Sleep(50 * time.Millisecond)
		initHeader(hdr, 4, 16)
	}()
	a.NoError(waitHeaderReady(hdr))
	a.NoError(checkHeader(hdr, size))
}

func TestCheckHeaderRejects(t *testing.T) {
	size, err := segmentSize(16, 64)
	if !assert.NoError(t, err) {
		return
	}
	tests := []struct {
		name   string
		mutate func(hdr *queueHeader)
		cause  error
	}{
		{"bad magic", func(hdr *queueHeader) { hdr.magic = 1 }, ErrCorrupted},
		{"bad version", func(hdr *queueHeader) { hdr.version = queueVersion + 1 }, ErrVersionMismatch},
		{"bad buffer offset", func(hdr *queueHeader) { hdr.bufferOffset = 128 }, ErrCorrupted},
		{"zero capacity", func(hdr *queueHeader) { hdr.capacity = 0 }, ErrCorrupted},
		{"zero slot size", func(hdr *queueHeader) { hdr.slotSize = 0 }, ErrCorrupted},
		{"huge geometry", func(hdr *queueHeader) { hdr.capacity = 1 << 62; hdr.slotSize = 1 << 62 }, ErrCorrupted},
		{"head out of range", func(hdr *queueHeader) { hdr.storeHead(16) }, ErrCorrupted},
		{"tail out of range", func(hdr *queueHeader) { hdr.storeTail(99) }, ErrCorrupted},
		{"count above capacity", func(hdr *queueHeader) { hdr.storeCount(17) }, ErrCorrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := assert.New(t)
			hdr, err := makeTestSegment(16, 64)
			if !a.NoError(err) {
				return
			}
			tt.mutate(hdr)
			err = checkHeader(hdr, size)
			if a.Error(err) {
				a.Equal(tt.cause, errors.Cause(err), "got %v", err)
			}
		})
	}
}

func TestCheckHeaderShortSegment(t *testing.T) {
	a := assert.New(t)
	hdr, err := makeTestSegment(16, 64)
	if !a.NoError(err) {
		return
	}
	err = checkHeader(hdr, 512)
	if a.Error(err) {
		a.Equal(ErrCorrupted, errors.Cause(err))
	}
	// size unknown, geometry alone decides
	a.NoError(checkHeader(hdr, 0))
}

func TestRingSlots(t *testing.T) {
	a := assert.New(t)
	hdr, err := makeTestSegment(4, 16)
	if !a.NoError(err) {
		return
	}
	r := newRing(hdr)
	a.Equal(4, r.capacity)
	a.Equal(16, r.slotSize)
	a.Equal(16+slotHeaderSize, r.stride)

	a.EqualValues(1, r.next(0))
	a.EqualValues(3, r.next(2))
	a.EqualValues(0, r.next(3))

	// payloads must not overlap
	for i := uint64(0); i < 4; i++ {
		p := r.payload(i)
		a.Equal(16, len(p))
		a.Equal(16, cap(p))
		for j := range p {
			p[j] = byte(i)
		}
	}
	for i := uint64(0); i < 4; i++ {
		for _, b := range r.payload(i) {
			a.Equal(byte(i), b)
		}
	}
}
