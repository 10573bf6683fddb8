// Copyright 2025 Mohamed Yasser. All rights reserved.

//go:build unix

package mmf

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// memoryRegion is a unix mmap with the page alignment slack hidden.
type memoryRegion struct {
	raw    []byte
	length int
	slack  int64
}

func newMemoryRegion(obj Mappable, mode int, offset int64, size int) (*memoryRegion, error) {
	var prot int
	switch mode {
	case MEM_READ_ONLY:
		prot = unix.PROT_READ
	case MEM_READWRITE:
		prot = unix.PROT_READ | unix.PROT_WRITE
	default:
		return nil, errors.Errorf("invalid memory region mode %#x", mode)
	}
	length, err := mappingSize(obj, offset, size)
	if err != nil {
		return nil, err
	}
	// mmap offsets must be page aligned, Data() hides the slack.
	slack := offset % int64(os.Getpagesize())
	raw, err := unix.Mmap(int(obj.Fd()), offset-slack, length+int(slack), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "mmap failed")
	}
	return &memoryRegion{raw: raw, length: length, slack: slack}, nil
}

func (region *memoryRegion) Close() error {
	if region.raw == nil {
		return nil
	}
	err := unix.Munmap(region.raw)
	*region = memoryRegion{}
	return errors.Wrap(err, "munmap failed")
}

func (region *memoryRegion) Data() []byte {
	return region.raw[region.slack:]
}

func (region *memoryRegion) Flush(async bool) error {
	mode := unix.MS_SYNC
	if async {
		mode = unix.MS_ASYNC
	}
	return errors.Wrap(unix.Msync(region.raw, mode), "msync failed")
}

func (region *memoryRegion) Size() int {
	return region.length
}
