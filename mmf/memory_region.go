// Copyright 2025 Mohamed Yasser. All rights reserved.

// Package mmf maps shared memory objects into the address space.
package mmf

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// Mapping modes.
const (
	// MEM_READ_ONLY maps the object for reading only.
	MEM_READ_ONLY = 0x00000001
	// MEM_READWRITE maps the object for reading and writing.
	MEM_READWRITE = 0x00000004
)

// Mappable is a named object whose handle can be used as a file
// descriptor for mmap.
type Mappable interface {
	Fd() uintptr
	Name() string
}

// MemoryRegion is a mmapped area of a memory object.
// The internal object has a finalizer set, so the region is unmapped
// during gc. Hold the region, not just its Data(), while the data is
// in use.
type MemoryRegion struct {
	*memoryRegion
}

// NewMemoryRegion creates a new shared memory region.
//	object - an object to mmap.
//	mode - open mode. see MEM_* constants.
//	offset - offset in bytes from the beginning of the mmaped file.
//	size - mapping size. zero means the whole object.
func NewMemoryRegion(object Mappable, mode int, offset int64, size int) (*MemoryRegion, error) {
	impl, err := newMemoryRegion(object, mode, offset, size)
	if err != nil {
		return nil, err
	}
	result := &MemoryRegion{impl}
	runtime.SetFinalizer(impl, func(region *memoryRegion) {
		region.Close()
	})
	return result, nil
}

// Close unmaps the region so that it can no longer be used.
func (region *MemoryRegion) Close() error {
	return region.memoryRegion.Close()
}

// Data returns the region's mapped data.
func (region *MemoryRegion) Data() []byte {
	return region.memoryRegion.Data()
}

// Flush syncs mapped content with the object data.
func (region *MemoryRegion) Flush(async bool) error {
	return region.memoryRegion.Flush(async)
}

// Size returns the mapping size.
func (region *MemoryRegion) Size() int {
	return region.memoryRegion.Size()
}

// objectSize returns the object's current size, or zero when the object
// carries no size information. Shared memory objects report their size
// directly, plain files are stat'ed.
func objectSize(object Mappable) (int64, error) {
	if object.Fd() == ^uintptr(0) {
		return 0, nil
	}
	switch typed := object.(type) {
	case interface{ Size() int64 }:
		return typed.Size(), nil
	case interface{ Stat() (os.FileInfo, error) }:
		info, err := typed.Stat()
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}
	return 0, nil
}

// mappingSize resolves a zero size request to the whole object and
// rejects windows that overrun it. mmap itself accepts such windows,
// touching the tail raises SIGBUS much later.
func mappingSize(object Mappable, offset int64, size int) (int, error) {
	objSize, err := objectSize(object)
	if err != nil {
		return 0, errors.Wrap(err, "failed to stat the mapped object")
	}
	if size == 0 {
		if objSize == 0 {
			return 0, errors.New("mapping size is required for this object")
		}
		size = int(objSize)
	}
	if objSize > 0 && offset+int64(size) > objSize {
		return 0, errors.Errorf("mapping window [%d, %d) overruns the %d byte object", offset, offset+int64(size), objSize)
	}
	return size, nil
}
