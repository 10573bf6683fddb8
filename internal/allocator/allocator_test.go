// Copyright 2025 Mohamed Yasser. All rights reserved.

package allocator

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestByteSliceRoundTrip(t *testing.T) {
	a := assert.New(t)
	orig := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	ptr := ByteSliceData(orig)
	view := ByteSliceFromUnsafePointer(ptr, 4, len(orig))
	a.Equal(4, len(view))
	a.Equal(len(orig), cap(view))
	a.Equal(orig[:4], view)
	view[0] = 42
	a.EqualValues(42, orig[0])
}

func TestAdvancePointer(t *testing.T) {
	a := assert.New(t)
	data := []byte{10, 20, 30, 40}
	ptr := AdvancePointer(ByteSliceData(data), 2)
	a.EqualValues(30, *(*byte)(ptr))
	a.Equal(unsafe.Pointer(&data[2]), ptr)
}
