// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevelFilter(t *testing.T) {
	a := assert.New(t)
	defer SetLogLevel(levelWarn)

	var buf bytes.Buffer
	l := &logger{name: "queue", out: &buf, callDepth: 3}

	SetLogLevel(levelWarn)
	l.debugf("dropped %d", 1)
	a.Zero(buf.Len())

	l.warnf("kept %d", 2)
	out := buf.String()
	a.Contains(out, "Warn")
	a.Contains(out, "kept 2")
	a.Contains(out, "debug_test.go")
	a.Contains(out, "queue")

	SetLogLevel(levelNoPrint)
	buf.Reset()
	l.errorf("silent")
	a.Zero(buf.Len())
}

func TestSetLogLevelBounds(t *testing.T) {
	a := assert.New(t)
	defer SetLogLevel(levelWarn)

	SetLogLevel(levelTrace)
	a.Equal(levelTrace, level)
	// out of range values are ignored
	SetLogLevel(levelNoPrint + 1)
	a.Equal(levelTrace, level)
}

func TestDebugQueueDetail(t *testing.T) {
	a := assert.New(t)
	q, err := makeQueue(4, 16)
	if !a.NoError(err) {
		return
	}
	defer func() {
		a.NoError(q.Close())
		a.NoError(Unlink(testQueueName))
	}()
	a.NoError(q.Push([]byte("x")))
	DebugQueueDetail(testQueueName)
	DebugQueueDetail("nabd.debug.missing")
}
