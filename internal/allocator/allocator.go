// Copyright 2025 Mohamed Yasser. All rights reserved.

// Package allocator provides helpers for reinterpreting mapped memory.
package allocator

import "unsafe"

// ByteSliceData returns a pointer to the underlying array of the slice.
func ByteSliceData(slice []byte) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(slice))
}

// ByteSliceFromUnsafePointer returns a byte slice of the given length and
// capacity over the memory at ptr.
func ByteSliceFromUnsafePointer(ptr unsafe.Pointer, length, capacity int) []byte {
	return unsafe.Slice((*byte)(ptr), capacity)[:length]
}

// AdvancePointer returns ptr shifted forward by offset bytes.
func AdvancePointer(ptr unsafe.Pointer, offset uintptr) unsafe.Pointer {
	return unsafe.Add(ptr, offset)
}
