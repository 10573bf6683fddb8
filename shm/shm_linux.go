// Copyright 2025 Mohamed Yasser. All rights reserved.

//go:build linux

package shm

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"
)

// tmpfs and ramfs super magics, from statfs(2).
const (
	shmfsSuperMagic = 0x01021994
	ramfsMagic      = 0x858458f6
)

const defaultShmPath = "/dev/shm/"

var (
	shmPathOnce sync.Once
	shmPath     string
)

// shmDirectory returns the mount point of the shared memory filesystem,
// /dev/shm on virtually every distribution, otherwise the first usable
// tmpfs mount.
func shmDirectory() (string, error) {
	shmPathOnce.Do(func() {
		if isShmMount(defaultShmPath) {
			shmPath = defaultShmPath
			return
		}
		shmPath = shmFsFromMounts()
	})
	if len(shmPath) == 0 {
		return "", errors.New("no shared memory filesystem is mounted")
	}
	return shmPath, nil
}

// isShmMount reports whether path is backed by tmpfs or ramfs.
func isShmMount(path string) bool {
	if len(path) == 0 {
		return false
	}
	var statfs unix.Statfs_t
	if err := unix.Statfs(path, &statfs); err != nil {
		return false
	}
	// statfs.Type has different widths across platforms.
	switch int64(statfs.Type) {
	case shmfsSuperMagic, ramfsMagic:
		return true
	}
	return false
}

// canAllocate reports whether the shared memory filesystem has room for
// an object of the given size. A failed usage query does not block
// creation.
func canAllocate(size int64) error {
	dir, err := shmDirectory()
	if err != nil {
		return err
	}
	stat, err := disk.Usage(dir)
	if err != nil {
		return nil
	}
	if stat.Free < uint64(size) {
		return errors.Errorf("shm filesystem has %d bytes free, %d requested", stat.Free, size)
	}
	return nil
}

// shmFsFromMounts scans the mount tables for a usable tmpfs, the way
// glibc's shm-directory.c does.
func shmFsFromMounts() string {
	for _, table := range []string{"/proc/mounts", "/etc/fstab"} {
		file, err := os.Open(table)
		if err != nil {
			continue
		}
		dir := shmFsFromReader(file)
		file.Close()
		if dir != "" {
			return dir
		}
	}
	return ""
}

func shmFsFromReader(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		dir, fsType, ok := scanMountRecord(scanner.Text())
		if !ok || (fsType != "tmpfs" && fsType != "shm") {
			continue
		}
		if isShmMount(dir) {
			if !strings.HasSuffix(dir, "/") {
				dir += "/"
			}
			return dir
		}
	}
	return ""
}

// scanMountRecord extracts the mount point and filesystem type of a
// single fstab-format record.
func scanMountRecord(record string) (dir, fsType string, ok bool) {
	fields := strings.Fields(record)
	if len(fields) < 3 || strings.HasPrefix(fields[0], "#") {
		return "", "", false
	}
	return fields[1], fields[2], true
}
