package bridge

import "unsafe"

// byteSliceUint32 returns a pointer to the uint32 stored at byte offset
// off within buf, for atomic access to shared-memory counters. Callers
// own alignment: every offset used by this package is a multiple of 4.
func byteSliceUint32(buf []byte, off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&buf[off]))
}
