// Copyright 2025 Mohamed Yasser. All rights reserved.

// Package testutil launches helper processes for cross-process queue
// tests and converts test payloads to and from their hex form.
package testutil

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// TestAppResult is the outcome of a 'go run' program launch.
type TestAppResult struct {
	Output string
	Err    error
}

// StringToBytes decodes a payload given as a continuous string of
// 2-symbol hex bytes, upper or lower case.
func StringToBytes(input string) ([]byte, error) {
	data, err := hex.DecodeString(input)
	if err != nil {
		return nil, fmt.Errorf("invalid byte array %q: %v", input, err)
	}
	return data, nil
}

// BytesToString encodes a payload into the hex form StringToBytes accepts.
func BytesToString(data []byte) string {
	return strings.ToUpper(hex.EncodeToString(data))
}

// testApp is a single helper program run with combined output capture.
type testApp struct {
	cmd *exec.Cmd
	out bytes.Buffer
}

func launch(args []string, killChan <-chan bool) (*testApp, error) {
	app := &testApp{cmd: exec.Command("go", append([]string{"run"}, args...)...)}
	app.cmd.Stdout = &app.out
	app.cmd.Stderr = &app.out
	if err := app.cmd.Start(); err != nil {
		return nil, err
	}
	if killChan != nil {
		go app.killOn(killChan)
	}
	fmt.Printf("launched helper process [%d]\n", app.cmd.Process.Pid)
	return app, nil
}

// killOn terminates the program when told to. Killing a program that
// already exited is not an error.
func (app *testApp) killOn(killChan <-chan bool) {
	if kill, ok := <-killChan; kill && ok {
		_ = app.cmd.Process.Kill()
	}
}

func (app *testApp) wait() TestAppResult {
	err := app.cmd.Wait()
	if exitErr, ok := err.(*exec.ExitError); ok {
		err = fmt.Errorf("%v, exit code = %d", exitErr, exitErr.ExitCode())
	} else if err == nil && !app.cmd.ProcessState.Success() {
		err = fmt.Errorf("process has exited with an error")
	}
	return TestAppResult{Output: app.out.String(), Err: err}
}

// RunTestApp launches a helper program via 'go run' and waits for it to
// finish. Sending true on killChan terminates the program early.
func RunTestApp(args []string, killChan <-chan bool) TestAppResult {
	app, err := launch(args, killChan)
	if err != nil {
		return TestAppResult{Err: err}
	}
	return app.wait()
}

// RunTestAppAsync launches a helper program via 'go run' and returns a
// channel delivering the result once the program finishes.
func RunTestAppAsync(args []string, killChan <-chan bool) <-chan TestAppResult {
	ch := make(chan TestAppResult, 1)
	app, err := launch(args, killChan)
	if err != nil {
		ch <- TestAppResult{Err: err}
		return ch
	}
	go func() {
		ch <- app.wait()
	}()
	return ch
}

// WaitForFunc runs f, giving it at most d to finish. It reports whether
// f completed in time.
func WaitForFunc(f func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// WaitForAppResultChan receives a launch result with a timeout.
func WaitForAppResultChan(ch <-chan TestAppResult, d time.Duration) (TestAppResult, bool) {
	select {
	case result := <-ch:
		return result, true
	case <-time.After(d):
		return TestAppResult{}, false
	}
}
