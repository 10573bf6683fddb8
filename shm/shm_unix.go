// Copyright 2025 Mohamed Yasser. All rights reserved.

//go:build unix && !linux

package shm

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

var (
	shmPathOnce sync.Once
	shmPath     string
	shmPathErr  error
)

// shmDirectory returns a per-system directory for memory objects. There is
// no dedicated shared memory filesystem, so objects live on the temp
// filesystem and are mapped from there.
func shmDirectory() (string, error) {
	shmPathOnce.Do(func() {
		dir := filepath.Join(os.TempDir(), "nabd-shm")
		if err := os.MkdirAll(dir, 0o777); err != nil {
			shmPathErr = errors.Wrap(err, "failed to create the shared memory directory")
			return
		}
		shmPath = dir
	})
	return shmPath, shmPathErr
}

// canAllocate is a no-op where no usage information is available for the
// backing filesystem.
func canAllocate(int64) error {
	return nil
}
