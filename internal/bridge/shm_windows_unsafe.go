//go:build windows

package bridge

import "unsafe"

// unsafeBytes views a MapViewOfFile return address as a byte slice of
// the given length, without copying.
func unsafeBytes(addr uintptr, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

// unsafePointerOf returns the address backing a mapped byte slice, for
// handing back to UnmapViewOfFile.
func unsafePointerOf(b []byte) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(b))
}
