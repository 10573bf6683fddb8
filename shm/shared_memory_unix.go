// Copyright 2025 Mohamed Yasser. All rights reserved.

//go:build unix

package shm

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// memoryObject is a unix shared memory object backed by a file on the
// shared memory filesystem.
type memoryObject struct {
	file *os.File
}

func newMemoryObject(name string, flag int, perm os.FileMode) (*memoryObject, error) {
	path, err := shmFullPath(name)
	if err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, flag, perm)
	if err != nil {
		// not wrapped, so that open-or-create loops can test the raw error.
		return nil, err
	}
	return &memoryObject{file: file}, nil
}

// Name returns the name the object was opened with.
func (obj *memoryObject) Name() string {
	return filepath.Base(obj.file.Name())
}

// Size returns the current object size in bytes.
func (obj *memoryObject) Size() int64 {
	fileInfo, err := obj.file.Stat()
	if err != nil {
		return 0
	}
	return fileInfo.Size()
}

// Truncate resizes the object. The new area reads as zero bytes.
func (obj *memoryObject) Truncate(size int64) error {
	return errors.Wrap(obj.file.Truncate(size), "failed to truncate shm object")
}

// Fd returns the object's file descriptor for mapping.
func (obj *memoryObject) Fd() uintptr {
	return obj.file.Fd()
}

// Close closes the underlying descriptor. Mappings stay valid.
func (obj *memoryObject) Close() error {
	return obj.file.Close()
}

// Destroy closes the object and removes its name. Mappings already created
// stay valid until they are closed. A name already removed is not an error.
func (obj *memoryObject) Destroy() error {
	path := obj.file.Name()
	obj.Close()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove shm object")
	}
	return nil
}

// shmName validates a user supplied object name and strips the optional
// leading '/' of the portable POSIX form.
func shmName(name string) (string, error) {
	name = strings.TrimLeft(name, "/")
	if len(name) == 0 || len(name) >= maxNameLen || strings.Contains(name, "/") {
		return "", errors.WithStack(ErrNameInvalid)
	}
	return name, nil
}

func shmFullPath(name string) (string, error) {
	name, err := shmName(name)
	if err != nil {
		return "", err
	}
	dir, err := shmDirectory()
	if err != nil {
		return "", errors.Wrap(err, "failed to locate the shared memory directory")
	}
	return filepath.Join(dir, name), nil
}
