// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

const (
	pushSpinCount       = 100
	pushWaitMinDelay    = 10 * time.Microsecond
	pushWaitMaxDelay    = time.Millisecond
	pushBackoffMaxDelay = 100 * time.Millisecond
)

// FillLevel returns how full the queue is, as a truncated percentage
// in [0, 100].
func (q *Queue) FillLevel() (int, error) {
	r := q.ring
	if r == nil {
		return 0, ErrClosed
	}
	return int(r.hdr.loadCount() * 100 / uint64(r.capacity)), nil
}

// IsPressured reports whether the fill level has reached threshold percent.
func (q *Queue) IsPressured(threshold int) (bool, error) {
	level, err := q.FillLevel()
	if err != nil {
		return false, err
	}
	return level >= threshold, nil
}

// PushWait pushes like Push but, when the queue is full, keeps retrying
// until space appears or timeout passes. It spins briefly, then sleeps
// between attempts with exponential backoff from 10us up to 1ms.
//	timeout == 0 - a single attempt.
//	timeout < 0 - retry indefinitely.
// Every Push failure other than ErrFull is returned immediately. On
// timeout the result is ErrFull.
func (q *Queue) PushWait(data []byte, timeout time.Duration) error {
	err := q.Push(data)
	if errors.Cause(err) != ErrFull || timeout == 0 {
		return err
	}
	for i := 0; i < pushSpinCount; i++ {
		runtime.Gosched()
		if err = q.Push(data); errors.Cause(err) != ErrFull {
			return err
		}
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = pushWaitMinDelay
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = pushWaitMaxDelay
	policy.MaxElapsedTime = 0
	if timeout > 0 {
		policy.MaxElapsedTime = timeout
	}
	return retryPush(q, data, policy)
}

// PushBackoff pushes like Push but retries a full queue for at most
// maxRetries attempts, sleeping between them with exponential backoff
// from baseDelay up to 100ms. maxRetries <= 0 retries indefinitely,
// baseDelay <= 0 starts at one microsecond.
func (q *Queue) PushBackoff(data []byte, maxRetries int, baseDelay time.Duration) error {
	if baseDelay <= 0 {
		baseDelay = time.Microsecond
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = baseDelay
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = pushBackoffMaxDelay
	policy.MaxElapsedTime = 0
	var b backoff.BackOff = policy
	if maxRetries > 0 {
		b = backoff.WithMaxRetries(policy, uint64(maxRetries-1))
	}
	return retryPush(q, data, b)
}

func retryPush(q *Queue, data []byte, b backoff.BackOff) error {
	return backoff.Retry(func() error {
		err := q.Push(data)
		switch {
		case err == nil:
			return nil
		case errors.Cause(err) == ErrFull:
			return err
		default:
			return backoff.Permanent(err)
		}
	}, b)
}

// FillCallback receives the fill level in percent that triggered it.
type FillCallback func(level int)

// BackpressureConfig arms per-handle watermark callbacks. OnHigh fires
// when the fill level climbs to HighWatermark percent, OnLow when it
// falls back to LowWatermark percent. Nil callbacks are skipped.
type BackpressureConfig struct {
	HighWatermark int
	LowWatermark  int
	OnHigh        FillCallback
	OnLow         FillCallback
}

// SetBackpressure installs cfg on this handle. Watermarks are percentages
// with 0 <= low < high <= 100. Crossings are detected after the handle's
// own successful pushes and pops, and the callback runs on the goroutine
// that completed the crossing operation. The zero configuration disarms
// the callbacks.
func (q *Queue) SetBackpressure(cfg BackpressureConfig) error {
	if q.ring == nil {
		return ErrClosed
	}
	if cfg.HighWatermark == 0 && cfg.LowWatermark == 0 && cfg.OnHigh == nil && cfg.OnLow == nil {
		q.bpOn.Store(false)
		q.bpMu.Lock()
		q.bp = BackpressureConfig{}
		q.bpHigh = false
		q.bpMu.Unlock()
		return nil
	}
	if cfg.HighWatermark < 0 || cfg.HighWatermark > 100 {
		return errors.Wrapf(ErrInvalid, "high watermark %d is out of range", cfg.HighWatermark)
	}
	if cfg.LowWatermark < 0 || cfg.LowWatermark > 100 {
		return errors.Wrapf(ErrInvalid, "low watermark %d is out of range", cfg.LowWatermark)
	}
	if cfg.LowWatermark >= cfg.HighWatermark {
		return errors.Wrapf(ErrInvalid, "low watermark %d does not stay below high watermark %d", cfg.LowWatermark, cfg.HighWatermark)
	}
	q.bpMu.Lock()
	q.bp = cfg
	q.bpHigh = false
	q.bpMu.Unlock()
	q.bpOn.Store(true)
	return nil
}

// notifyFill runs the watermark bookkeeping after a successful push or
// pop. The callback itself runs outside bpMu so that it may use the
// queue.
func (q *Queue) notifyFill() {
	r := q.ring
	if r == nil {
		return
	}
	fill := int(r.hdr.loadCount() * 100 / uint64(r.capacity))
	var fire FillCallback
	q.bpMu.Lock()
	switch {
	case !q.bpHigh && fill >= q.bp.HighWatermark:
		q.bpHigh = true
		fire = q.bp.OnHigh
	case q.bpHigh && fill <= q.bp.LowWatermark:
		q.bpHigh = false
		fire = q.bp.OnLow
	}
	q.bpMu.Unlock()
	if fire != nil {
		fire(fill)
	}
}
