// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/YASSERRMD/nabd/mmf"
	"github.com/YASSERRMD/nabd/shm"
	ipc_sync "github.com/YASSERRMD/nabd/sync"

	"github.com/pkg/errors"
)

// Open flags.
const (
	// Create makes Open create the queue if it does not exist yet.
	Create = 0x00000001
	// Producer declares the intent to push messages.
	Producer = 0x00000002
	// Consumer declares the intent to pop messages.
	Consumer = 0x00000004
)

const queuePerm = os.FileMode(0666)

// Queue is a handle onto a named queue in shared memory. Handles in any
// number of processes may push and pop concurrently, the queue lock
// serializes them. A handle must not be used concurrently with its own
// Close.
type Queue struct {
	name   string
	flags  int
	region *mmf.MemoryRegion
	locker ipc_sync.TimedIPCLocker
	ring   *ring

	// reservation state, owned by the handle.
	reserved   bool
	reservePos uint64

	// watermark callbacks, armed by SetBackpressure.
	bpOn   atomic.Bool
	bpMu   sync.Mutex
	bp     BackpressureConfig
	bpHigh bool
}

// Open opens or creates the named queue.
//	name - a POSIX shm object name. a leading '/' is accepted and ignored.
//	capacity - slot count. with Create, zero means DefaultCapacity; when
//	  attaching, a non-zero value must match the existing queue.
//	slotSize - payload limit per message, treated like capacity.
//	flags - a combination of Create, Producer and Consumer. at least one
//	  of Producer and Consumer is required.
// Create is open-or-create: the object is created exclusively, and if it
// already exists Open attaches to it instead, still enforcing the caller's
// non-zero geometry.
func Open(name string, capacity, slotSize int, flags int) (*Queue, error) {
	if flags&(Producer|Consumer) == 0 {
		return nil, errors.Wrap(ErrInvalid, "at least one of Producer and Consumer is required")
	}
	if flags&^(Create|Producer|Consumer) != 0 {
		return nil, errors.Wrapf(ErrInvalid, "unknown open flags %#x", flags)
	}
	if capacity < 0 || slotSize < 0 {
		return nil, errors.Wrap(ErrInvalid, "negative queue dimensions")
	}

	wantCapacity, wantSlotSize := capacity, slotSize
	openFlags := 0
	size := int64(0)
	if flags&Create != 0 {
		openFlags = os.O_CREATE
		if capacity == 0 {
			capacity = DefaultCapacity
		}
		if slotSize == 0 {
			slotSize = DefaultSlotSize
		}
		var err error
		if size, err = segmentSize(int64(capacity), int64(slotSize)); err != nil {
			return nil, err
		}
	}

	obj, created, err := shm.NewMemoryObjectSize(name, openFlags, queuePerm, size)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(ErrNotFound, "no queue named %q", name)
		}
		return nil, errors.Wrap(err, "failed to open shm object")
	}
	q := &Queue{name: obj.Name(), flags: flags}
	defer func() {
		queueCleanup(q, obj, created, err)
	}()

	if !created {
		if err = waitSegmentSized(obj); err != nil {
			return nil, err
		}
	}
	q.region, err = mmf.NewMemoryRegion(obj, mmf.MEM_READWRITE, 0, 0)
	if err != nil {
		err = errors.Wrap(err, "failed to map shm object")
		return nil, err
	}

	hdr := headerAt(q.region.Data())
	locker := ipc_sync.NewInplaceMutex(hdr.lockWord())
	if created {
		locker.Init()
		initHeader(hdr, capacity, slotSize)
		internalLogger.debugf("created queue %q: capacity %d, slot size %d", q.name, capacity, slotSize)
	} else {
		if err = waitHeaderReady(hdr); err != nil {
			return nil, err
		}
		if err = checkHeader(hdr, int64(q.region.Size())); err != nil {
			return nil, err
		}
		if err = checkGeometry(hdr, wantCapacity, wantSlotSize); err != nil {
			return nil, err
		}
		internalLogger.debugf("attached queue %q: capacity %d, slot size %d", q.name, hdr.capacity, hdr.slotSize)
	}
	q.locker = locker
	q.ring = newRing(hdr)
	return q, nil
}

// waitSegmentSized waits for a concurrent creator's ftruncate. The object
// becomes visible under its name before it has its final size.
func waitSegmentSized(obj *shm.MemoryObject) error {
	deadline := time.Now().Add(publishTimeout)
	for obj.Size() < int64(headerSize) {
		if time.Now().After(deadline) {
			return errors.Wrapf(ErrCorrupted, "segment holds %d bytes, the control block needs %d", obj.Size(), headerSize)
		}
		runtime.Gosched()
	}
	return nil
}

// checkGeometry enforces the caller's expected dimensions when attaching.
// Zero values accept whatever the queue was created with.
func checkGeometry(hdr *queueHeader, capacity, slotSize int) error {
	if capacity != 0 && uint64(capacity) != hdr.capacity {
		return errors.Wrapf(ErrSizeMismatch, "queue has capacity %d, caller expects %d", hdr.capacity, capacity)
	}
	if slotSize != 0 && uint64(slotSize) != hdr.slotSize {
		return errors.Wrapf(ErrSizeMismatch, "queue has slot size %d, caller expects %d", hdr.slotSize, slotSize)
	}
	return nil
}

func queueCleanup(q *Queue, obj *shm.MemoryObject, created bool, err error) {
	obj.Close()
	if err == nil {
		return
	}
	if q.region != nil {
		q.region.Close()
	}
	if created {
		obj.Destroy()
	}
}

// Push copies data into the slot at the tail. It never waits for space: a
// full queue fails with ErrFull and data longer than the slot size fails
// with ErrTooBig, both without changing the queue.
func (q *Queue) Push(data []byte) error {
	r := q.ring
	if r == nil {
		return ErrClosed
	}
	if q.reserved {
		return errors.Wrap(ErrInvalid, "a reservation is pending")
	}
	if len(data) > r.slotSize {
		return ErrTooBig
	}
	hdr := r.hdr
	// reject without the lock when there is clearly no room.
	if hdr.loadCount() == uint64(r.capacity) {
		return ErrFull
	}
	q.locker.Lock()
	// unlocked manually on every path, the critical section is tiny.
	if hdr.loadCount() == uint64(r.capacity) {
		q.locker.Unlock()
		return ErrFull
	}
	tail := hdr.loadTail()
	slot := r.slot(tail)
	copy(r.payload(tail), data)
	slot.length = uint32(len(data))
	slot.sequence = uint32(hdr.loadPushed())
	hdr.storeTail(r.next(tail))
	hdr.incCount()
	hdr.incPushed()
	q.locker.Unlock()
	if q.bpOn.Load() {
		q.notifyFill()
	}
	return nil
}

// Pop copies the head message into buf and returns its length. An empty
// queue fails with ErrEmpty. When buf cannot hold the message, Pop returns
// the required length with ErrBufferTooSmall and leaves the message queued.
func (q *Queue) Pop(buf []byte) (int, error) {
	r := q.ring
	if r == nil {
		return 0, ErrClosed
	}
	if q.reserved {
		return 0, errors.Wrap(ErrInvalid, "a reservation is pending")
	}
	hdr := r.hdr
	if hdr.loadCount() == 0 {
		return 0, ErrEmpty
	}
	q.locker.Lock()
	if hdr.loadCount() == 0 {
		q.locker.Unlock()
		return 0, ErrEmpty
	}
	head := hdr.loadHead()
	n := int(r.slot(head).length)
	if n > len(buf) {
		q.locker.Unlock()
		return n, ErrBufferTooSmall
	}
	copy(buf, r.payload(head)[:n])
	hdr.storeHead(r.next(head))
	hdr.decCount()
	hdr.incPopped()
	q.locker.Unlock()
	if q.bpOn.Load() {
		q.notifyFill()
	}
	return n, nil
}

// Peek returns a view of the head message without consuming it. The slice
// aliases shared memory: it stays valid only until the message is popped,
// by this handle or any other. Concurrent consumers must coordinate
// externally.
func (q *Queue) Peek() ([]byte, error) {
	r := q.ring
	if r == nil {
		return nil, ErrClosed
	}
	if q.reserved {
		return nil, errors.Wrap(ErrInvalid, "a reservation is pending")
	}
	hdr := r.hdr
	if hdr.loadCount() == 0 {
		return nil, ErrEmpty
	}
	q.locker.Lock()
	if hdr.loadCount() == 0 {
		q.locker.Unlock()
		return nil, ErrEmpty
	}
	head := hdr.loadHead()
	n := int(r.slot(head).length)
	view := r.payload(head)[:n:n]
	q.locker.Unlock()
	return view, nil
}

// Release consumes the head message without copying it out, completing a
// Peek. An empty queue fails with ErrEmpty.
func (q *Queue) Release() error {
	r := q.ring
	if r == nil {
		return ErrClosed
	}
	if q.reserved {
		return errors.Wrap(ErrInvalid, "a reservation is pending")
	}
	hdr := r.hdr
	if hdr.loadCount() == 0 {
		return ErrEmpty
	}
	q.locker.Lock()
	if hdr.loadCount() == 0 {
		q.locker.Unlock()
		return ErrEmpty
	}
	hdr.storeHead(r.next(hdr.loadHead()))
	hdr.decCount()
	hdr.incPopped()
	q.locker.Unlock()
	if q.bpOn.Load() {
		q.notifyFill()
	}
	return nil
}

// Reserve claims the tail slot for in-place writing and returns its first
// n payload bytes. The queue lock is held until Commit or Abort, stalling
// every other producer and consumer, so the window must stay short. A
// handle holds at most one reservation.
func (q *Queue) Reserve(n int) ([]byte, error) {
	r := q.ring
	if r == nil {
		return nil, ErrClosed
	}
	if q.reserved {
		return nil, errors.Wrap(ErrInvalid, "a reservation is pending")
	}
	if n < 0 {
		return nil, errors.Wrap(ErrInvalid, "negative reservation length")
	}
	if n > r.slotSize {
		return nil, ErrTooBig
	}
	hdr := r.hdr
	if hdr.loadCount() == uint64(r.capacity) {
		return nil, ErrFull
	}
	q.locker.Lock()
	if hdr.loadCount() == uint64(r.capacity) {
		q.locker.Unlock()
		return nil, ErrFull
	}
	q.reserved = true
	q.reservePos = hdr.loadTail()
	return r.payload(q.reservePos)[:n:n], nil
}

// Commit publishes the reserved slot with final length n and releases the
// queue lock. An invalid n keeps the reservation, the caller may commit
// again or abort.
func (q *Queue) Commit(n int) error {
	r := q.ring
	if r == nil {
		return ErrClosed
	}
	if !q.reserved {
		return errors.Wrap(ErrInvalid, "no reservation to commit")
	}
	if n < 0 {
		return errors.Wrap(ErrInvalid, "negative commit length")
	}
	if n > r.slotSize {
		return ErrTooBig
	}
	hdr := r.hdr
	slot := r.slot(q.reservePos)
	slot.length = uint32(n)
	slot.sequence = uint32(hdr.loadPushed())
	hdr.storeTail(r.next(q.reservePos))
	hdr.incCount()
	hdr.incPushed()
	q.reserved = false
	q.locker.Unlock()
	if q.bpOn.Load() {
		q.notifyFill()
	}
	return nil
}

// Abort abandons the reservation without publishing anything and releases
// the queue lock.
func (q *Queue) Abort() error {
	if q.ring == nil {
		return ErrClosed
	}
	if !q.reserved {
		return errors.Wrap(ErrInvalid, "no reservation to abort")
	}
	q.reserved = false
	q.locker.Unlock()
	return nil
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	if q.ring == nil {
		return 0
	}
	return int(q.ring.hdr.loadCount())
}

// Cap returns the number of slots.
func (q *Queue) Cap() int {
	if q.ring == nil {
		return 0
	}
	return q.ring.capacity
}

// SlotSize returns the payload limit per message.
func (q *Queue) SlotSize() int {
	if q.ring == nil {
		return 0
	}
	return q.ring.slotSize
}

// Empty returns true, if there are no messages in the queue.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Full returns true, if the capacity limit has been reached.
func (q *Queue) Full() bool {
	return q.ring != nil && q.Len() == q.ring.capacity
}

// Name returns the queue name the handle was opened with.
func (q *Queue) Name() string {
	return q.name
}

// Flags returns the open flags of the handle.
func (q *Queue) Flags() int {
	return q.flags
}

// Close releases the mapping and the handle. The queue lives on in shared
// memory until Unlink removes it. A pending reservation is aborted. The
// second and later closes fail with ErrClosed.
func (q *Queue) Close() error {
	if q.ring == nil {
		return ErrClosed
	}
	if q.reserved {
		q.reserved = false
		q.locker.Unlock()
	}
	q.ring = nil
	q.locker = nil
	if err := q.region.Close(); err != nil {
		return errors.Wrap(err, "failed to close memory region")
	}
	return nil
}

// Unlink removes the queue name from the system. Existing mappings keep
// working and the segment is freed once the last of them closes. A missing
// name fails with ErrNotFound, racing teardown paths may ignore that.
func Unlink(name string) error {
	if err := shm.DestroyMemoryObject(name); err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return errors.Wrapf(ErrNotFound, "no queue named %q", name)
		}
		return errors.Wrap(err, "failed to unlink queue")
	}
	internalLogger.debugf("unlinked queue %q", name)
	return nil
}

// QueueAttrs reports capacity and slot size of an existing queue without
// attaching a full handle.
func QueueAttrs(name string) (capacity, slotSize int, err error) {
	hdr, objSize, region, err := openHeader(name, mmf.MEM_READ_ONLY)
	if err != nil {
		if errors.Cause(err) == errIncomplete {
			return 0, 0, errors.Wrap(ErrCorrupted, err.Error())
		}
		return 0, 0, err
	}
	defer region.Close()
	if err := waitHeaderReady(hdr); err != nil {
		return 0, 0, err
	}
	if err := checkHeader(hdr, objSize); err != nil {
		return 0, 0, err
	}
	return int(hdr.capacity), int(hdr.slotSize), nil
}

// errIncomplete marks a segment too small to hold a control block.
var errIncomplete = errors.New("segment is smaller than the control block")

// openHeader maps just the control block of an existing queue. mode is a
// mmf mapping mode. The caller closes the returned region; the object size
// comes along for geometry validation.
func openHeader(name string, mode int) (*queueHeader, int64, *mmf.MemoryRegion, error) {
	flag := os.O_RDONLY
	if mode == mmf.MEM_READWRITE {
		flag = os.O_RDWR
	}
	obj, err := shm.NewMemoryObject(name, flag, queuePerm)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, 0, nil, errors.Wrapf(ErrNotFound, "no queue named %q", name)
		}
		return nil, 0, nil, errors.Wrap(err, "failed to open shm object")
	}
	defer obj.Close()
	objSize := obj.Size()
	if objSize < int64(headerSize) {
		return nil, objSize, nil, errors.Wrapf(errIncomplete, "segment holds %d bytes", objSize)
	}
	region, err := mmf.NewMemoryRegion(obj, mode, 0, headerSize)
	if err != nil {
		return nil, 0, nil, errors.Wrap(err, "failed to map control block")
	}
	return headerAt(region.Data()), objSize, region, nil
}
