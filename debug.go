// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/valyala/bytebufferpool"
)

type logger struct {
	name      string
	out       io.Writer
	callDepth int
}

var (
	internalLogger = &logger{"", os.Stderr, 3}
	level          int

	levelName = []string{
		"Trace",
		"Debug",
		"Info",
		"Warn",
		"Error",
	}
)

const (
	levelTrace = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelNoPrint
)

func init() {
	level = levelWarn
	if s := os.Getenv("NABD_LOG_LEVEL"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n <= levelNoPrint {
			level = n
		}
	}
}

// SetLogLevel changes the internal logger's level; the default is Warn.
// The process env `NABD_LOG_LEVEL` also sets it.
func SetLogLevel(l int) {
	if l <= levelNoPrint {
		level = l
	}
}

func (l *logger) tracef(format string, a ...interface{}) { l.printf(levelTrace, format, a...) }
func (l *logger) debugf(format string, a ...interface{}) { l.printf(levelDebug, format, a...) }
func (l *logger) infof(format string, a ...interface{})  { l.printf(levelInfo, format, a...) }
func (l *logger) warnf(format string, a ...interface{})  { l.printf(levelWarn, format, a...) }
func (l *logger) errorf(format string, a ...interface{}) { l.printf(levelError, format, a...) }

func (l *logger) printf(lv int, format string, a ...interface{}) {
	if level > lv {
		return
	}
	buf := bytebufferpool.Get()
	_, _ = fmt.Fprintf(buf, "%s %s %s ", levelName[lv], time.Now().Format("2006-01-02 15:04:05.999999"), l.location())
	if l.name != "" {
		_, _ = buf.WriteString(l.name)
		_ = buf.WriteByte(' ')
	}
	_, _ = fmt.Fprintf(buf, format, a...)
	_ = buf.WriteByte('\n')
	_, _ = l.out.Write(buf.B)
	bytebufferpool.Put(buf)
}

func (l *logger) location() string {
	_, file, line, ok := runtime.Caller(l.callDepth)
	if !ok {
		return "???:0"
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// DebugQueueDetail prints the control block of the named queue.
func DebugQueueDetail(name string) {
	diag, err := Diagnose(name)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("queue:%s state:%s head:%d tail:%d pending:%d capacity:%d slot_size:%d\n",
		name, diag.State, diag.Head, diag.Tail, diag.Pending, diag.Capacity, diag.SlotSize)
}
