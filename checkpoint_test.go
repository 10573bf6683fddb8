// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCheckpointRoundTrip(t *testing.T) {
	a := assert.New(t)
	q, err := makeQueue(8, 16)
	if !a.NoError(err) {
		return
	}
	defer func() {
		a.NoError(q.Close())
		a.NoError(Unlink(testQueueName))
	}()

	for i := 0; i < 3; i++ {
		a.NoError(q.Push([]byte{byte(i)}))
	}
	_, err = q.Pop(make([]byte, 16))
	a.NoError(err)

	path := filepath.Join(t.TempDir(), "queue.ckpt")
	a.NoError(q.WriteCheckpoint(path))

	c, err := LoadCheckpoint(path)
	a.NoError(err)
	a.EqualValues(3, c.Pushed)
	a.EqualValues(1, c.Popped)
	a.EqualValues(2, c.Pending)
	a.NotZero(c.Timestamp)

	// a second write replaces the first
	_, err = q.Pop(make([]byte, 16))
	a.NoError(err)
	a.NoError(q.WriteCheckpoint(path))
	c, err = LoadCheckpoint(path)
	a.NoError(err)
	a.EqualValues(2, c.Popped)
	a.EqualValues(1, c.Pending)
}

func TestCheckpointMissing(t *testing.T) {
	a := assert.New(t)
	_, err := LoadCheckpoint(filepath.Join(t.TempDir(), "absent.ckpt"))
	if a.Error(err) {
		a.Equal(ErrNotFound, errors.Cause(err))
	}
}

func TestCheckpointDamaged(t *testing.T) {
	a := assert.New(t)
	q, err := makeQueue(8, 16)
	if !a.NoError(err) {
		return
	}
	defer func() {
		a.NoError(q.Close())
		a.NoError(Unlink(testQueueName))
	}()
	a.NoError(q.Push([]byte("x")))

	dir := t.TempDir()
	path := filepath.Join(dir, "queue.ckpt")
	a.NoError(q.WriteCheckpoint(path))
	good, err := os.ReadFile(path)
	if !a.NoError(err) {
		return
	}

	damage := []struct {
		name   string
		mutate func(buf []byte) []byte
	}{
		{"truncated", func(buf []byte) []byte { return buf[:checkpointSize-1] }},
		{"oversized", func(buf []byte) []byte { return append(buf, 0) }},
		{"bad magic", func(buf []byte) []byte { buf[0] ^= 0xFF; return buf }},
		{"flipped counter", func(buf []byte) []byte { buf[16] ^= 0xFF; return buf }},
		{"flipped checksum", func(buf []byte) []byte { buf[40] ^= 0xFF; return buf }},
	}
	for _, tt := range damage {
		broken := tt.mutate(append([]byte(nil), good...))
		if !a.NoError(os.WriteFile(path, broken, 0644), tt.name) {
			continue
		}
		_, err := LoadCheckpoint(path)
		if a.Error(err, tt.name) {
			a.Equal(ErrCorrupted, errors.Cause(err), tt.name)
		}
	}
}

func TestCheckpointClosedQueue(t *testing.T) {
	a := assert.New(t)
	q, err := makeQueue(8, 16)
	if !a.NoError(err) {
		return
	}
	a.NoError(q.Close())
	defer cleanQueue(testQueueName)

	err = q.WriteCheckpoint(filepath.Join(t.TempDir(), "queue.ckpt"))
	a.Equal(ErrClosed, errors.Cause(err))
}
