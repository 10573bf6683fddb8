// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsTemporary(t *testing.T) {
	a := assert.New(t)
	a.True(IsTemporary(ErrFull))
	a.True(IsTemporary(ErrEmpty))
	a.True(IsTemporary(errors.Wrap(ErrFull, "still full after retries")))
	a.True(IsTemporary(errors.Wrap(ErrEmpty, "nothing to pop")))

	a.False(IsTemporary(nil))
	a.False(IsTemporary(ErrTooBig))
	a.False(IsTemporary(ErrBufferTooSmall))
	a.False(IsTemporary(ErrSizeMismatch))
	a.False(IsTemporary(ErrNotFound))
	a.False(IsTemporary(ErrClosed))
	a.False(IsTemporary(ErrInvalid))
	a.False(IsTemporary(ErrCorrupted))
	a.False(IsTemporary(ErrVersionMismatch))
	a.False(IsTemporary(errors.New("some other failure")))
}

func TestSentinelsDistinct(t *testing.T) {
	a := assert.New(t)
	sentinels := []error{
		ErrEmpty, ErrFull, ErrTooBig, ErrBufferTooSmall, ErrSizeMismatch,
		ErrNotFound, ErrClosed, ErrInvalid, ErrCorrupted, ErrVersionMismatch,
	}
	for i, lhs := range sentinels {
		for j, rhs := range sentinels {
			if i != j {
				a.NotEqual(lhs, rhs)
			}
		}
	}
}

func TestInvalidQueueName(t *testing.T) {
	a := assert.New(t)
	_, err := Open("bad/name", 0, 0, Create|Producer)
	if a.Error(err) {
		a.Equal(ErrNameInvalid, errors.Cause(err))
	}
	_, err = Open("", 0, 0, Create|Producer)
	a.Error(err)
}
