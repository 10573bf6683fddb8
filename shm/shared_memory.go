// Copyright 2025 Mohamed Yasser. All rights reserved.

// Package shm provides access to named POSIX shared memory objects.
package shm

import (
	"os"
	"runtime"

	"github.com/YASSERRMD/nabd/internal/common"

	"github.com/pkg/errors"
)

const maxNameLen = 255

// ErrNameInvalid is returned when an object name is empty, longer than 255
// bytes, or contains a path separator after the optional leading '/'.
var ErrNameInvalid = errors.New("invalid shared memory object name")

// MemoryObject represents a named shared memory object, which can be used
// to map its contents into the address space of the calling process.
type MemoryObject struct {
	*memoryObject
}

// NewMemoryObject opens or creates a shared memory object.
//	name - object name. a leading '/' is accepted and ignored.
//	flag - a combination of open flags from the 'os' package.
//	perm - object's permission bits.
func NewMemoryObject(name string, flag int, perm os.FileMode) (*MemoryObject, error) {
	impl, err := newMemoryObject(name, flag, perm)
	if err != nil {
		return nil, err
	}
	result := &MemoryObject{impl}
	runtime.SetFinalizer(impl, func(obj *memoryObject) {
		obj.Close()
	})
	return result, nil
}

// NewMemoryObjectSize opens or creates a shared memory object of the given
// size. A created object is truncated to size after a free space check on
// the backing filesystem; an existing object is returned as is and the
// caller validates its contents. The returned flag reports whether this
// call created the object.
func NewMemoryObjectSize(name string, flag int, perm os.FileMode, size int64) (obj *MemoryObject, created bool, err error) {
	creator := func(create bool) error {
		creatorFlag := os.O_RDWR
		if create {
			creatorFlag |= os.O_CREATE | os.O_EXCL
		}
		var creatorErr error
		obj, creatorErr = NewMemoryObject(name, creatorFlag, perm)
		return creatorErr
	}
	created, err = common.OpenOrCreate(creator, flag)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to open shm object")
	}
	if created {
		if err = canAllocate(size); err == nil {
			err = obj.Truncate(size)
		}
		if err != nil {
			obj.Destroy()
			return nil, false, errors.Wrap(err, "failed to size new shm object")
		}
	}
	return obj, created, nil
}

// DestroyMemoryObject removes the object name from the system namespace.
// Mappings already created stay valid until they are closed.
func DestroyMemoryObject(name string) error {
	path, err := shmFullPath(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}
