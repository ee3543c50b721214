package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Single-producer/single-consumer byte ring embedded in
 *		shared memory, with typed read/write primitives for the
 *		three control channels.
 *
 * Description:	Framing has no length prefix: every message starts
 *		with a u32 opcode and the reader must consume exactly the
 *		fields that opcode specifies. There is no resync; reading
 *		the wrong number of bytes for an opcode is a fatal
 *		protocol error, reported as bridgeerr.ProtocolDesync by
 *		the channel wrapping this ring, not by the ring itself.
 *
 *		head/tail/written are monotonically increasing counters,
 *		not raw buffer offsets - the buffer index is always
 *		counter % capacity. That sidesteps the usual full/empty
 *		ambiguity of a plain two-pointer ring without needing a
 *		sentinel byte.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const ringHeaderSize = 16 // head, tail, written, invalidate_commit: 4x u32

// Ring is a lock-free SPSC byte ring living at the start of a []byte
// (typically a view into a Region). Exactly one goroutine/process may
// write, exactly one may read.
type Ring struct {
	buf []byte // header + data
	cap uint32 // data capacity in bytes, buf[ringHeaderSize:] must be this long
}

// RingByteSize returns the total buffer length (header + data) needed
// for a ring holding capacity data bytes.
func RingByteSize(capacity uint32) int {
	return ringHeaderSize + int(capacity)
}

// NewRing wraps buf as a ring buffer. buf must be exactly
// RingByteSize(capacity) bytes. The caller zeroes buf (or it's a fresh
// shm mapping, which already reads as zero) before the first use.
func NewRing(buf []byte) (*Ring, error) {
	if len(buf) <= ringHeaderSize {
		return nil, fmt.Errorf("ring buffer too small: %d bytes", len(buf))
	}
	return &Ring{buf: buf, cap: uint32(len(buf) - ringHeaderSize)}, nil
}

func (r *Ring) head() uint32     { return binary.NativeEndian.Uint32(r.buf[0:4]) }
func (r *Ring) tail() uint32     { return binary.NativeEndian.Uint32(r.buf[4:8]) }
func (r *Ring) written() uint32  { return binary.NativeEndian.Uint32(r.buf[8:12]) }
func (r *Ring) invalid() uint32  { return binary.NativeEndian.Uint32(r.buf[12:16]) }
func (r *Ring) setHead(v uint32) { binary.NativeEndian.PutUint32(r.buf[0:4], v) }
func (r *Ring) setTail(v uint32) { binary.NativeEndian.PutUint32(r.buf[4:8], v) }
func (r *Ring) setWritten(v uint32) {
	binary.NativeEndian.PutUint32(r.buf[8:12], v)
}
func (r *Ring) setInvalid(v uint32) { binary.NativeEndian.PutUint32(r.buf[12:16], v) }

func (r *Ring) data() []byte { return r.buf[ringHeaderSize:] }

// ReadableBytes returns how many committed bytes are available to the
// reader right now.
func (r *Ring) ReadableBytes() uint32 { return r.head() - r.tail() }

// IsDataAvailableForReading reports whether at least one committed
// byte is waiting.
func (r *Ring) IsDataAvailableForReading() bool { return r.ReadableBytes() > 0 }

// WritableSpace returns how many bytes the producer can still stage
// before it would catch up to the reader. Uses the in-progress
// "written" cursor, not the last commit point, so back-to-back writes
// within one uncommitted message see the space shrink correctly.
func (r *Ring) WritableSpace() uint32 {
	used := r.written() - r.tail()
	if used >= r.cap {
		return 0
	}
	return r.cap - used
}

// --- writer side ---

func (r *Ring) stageWrite(p []byte) {
	n := uint32(len(p))
	if n == 0 {
		return
	}
	if n > r.WritableSpace() {
		r.setInvalid(1)
		// Don't copy: the span would overwrite bytes the reader has not
		// consumed yet. CommitWrite discards the whole message.
		return
	}
	w := r.written()
	cap := r.cap
	idx := w % cap
	if idx+n <= cap {
		copy(r.data()[idx:idx+n], p)
	} else {
		first := cap - idx
		copy(r.data()[idx:], p[:first])
		copy(r.data()[:n-first], p[first:])
	}
	r.setWritten(w + n)
}

func (r *Ring) WriteOpcode(op uint32) { r.WriteU32(op) }

func (r *Ring) WriteU8(v uint8)   { r.stageWrite([]byte{v}) }
func (r *Ring) WriteI8(v int8)    { r.WriteU8(uint8(v)) }
func (r *Ring) WriteBool(v bool) {
	if v {
		r.WriteU8(1)
	} else {
		r.WriteU8(0)
	}
}

// Payload scalars use LittleEndian, not NativeEndian: §6 requires the
// wire format to be bit-exact little-endian across architectures so a
// 32-bit client and a 64-bit server (or either side under Wine) agree
// on byte order regardless of host endianness. Only the ring header
// counters above are native-endian, since those never cross the wire
// in a way that's inspected by the other side as a typed value.

func (r *Ring) WriteU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	r.stageWrite(b[:])
}
func (r *Ring) WriteI16(v int16) { r.WriteU16(uint16(v)) }

func (r *Ring) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	r.stageWrite(b[:])
}
func (r *Ring) WriteI32(v int32) { r.WriteU32(uint32(v)) }

func (r *Ring) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	r.stageWrite(b[:])
}
func (r *Ring) WriteI64(v int64) { r.WriteU64(uint64(v)) }

func (r *Ring) WriteF32(v float32) { r.WriteU32(math.Float32bits(v)) }
func (r *Ring) WriteF64(v float64) { r.WriteU64(math.Float64bits(v)) }

// WriteCustom stages an arbitrary byte slice, e.g. a string body after
// its length prefix has already been written with WriteU32.
func (r *Ring) WriteCustom(p []byte) { r.stageWrite(p) }

// WriteString stages a {u32 length, bytes} pair per the wire format's
// string convention (no NUL terminator).
func (r *Ring) WriteString(s string) {
	r.WriteU32(uint32(len(s)))
	r.WriteCustom([]byte(s))
}

// CommitWrite publishes everything staged since the last commit. If
// the staged span would have wrapped past the reader, the whole
// message is discarded atomically: written reverts to head and false
// is returned. Callers use the return value to decide whether to log
// a dropped informational message.
func (r *Ring) CommitWrite() bool {
	if r.invalid() != 0 {
		r.setWritten(r.head())
		r.setInvalid(0)
		return false
	}
	r.setHead(r.written())
	return true
}

// --- reader side ---

func (r *Ring) consume(dst []byte) bool {
	n := uint32(len(dst))
	if n == 0 {
		return true
	}
	if n > r.ReadableBytes() {
		return false // protocol desync: under-read past what's committed
	}
	t := r.tail()
	cap := r.cap
	idx := t % cap
	if idx+n <= cap {
		copy(dst, r.data()[idx:idx+n])
	} else {
		first := cap - idx
		copy(dst[:first], r.data()[idx:])
		copy(dst[first:], r.data()[:n-first])
	}
	r.setTail(t + n)
	return true
}

func (r *Ring) ReadOpcode() (uint32, bool) { return r.ReadU32() }

func (r *Ring) ReadU8() (uint8, bool) {
	var b [1]byte
	if !r.consume(b[:]) {
		return 0, false
	}
	return b[0], true
}
func (r *Ring) ReadI8() (int8, bool) {
	v, ok := r.ReadU8()
	return int8(v), ok
}
func (r *Ring) ReadBool() (bool, bool) {
	v, ok := r.ReadU8()
	return v != 0, ok
}

func (r *Ring) ReadU16() (uint16, bool) {
	var b [2]byte
	if !r.consume(b[:]) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b[:]), true
}
func (r *Ring) ReadI16() (int16, bool) {
	v, ok := r.ReadU16()
	return int16(v), ok
}

func (r *Ring) ReadU32() (uint32, bool) {
	var b [4]byte
	if !r.consume(b[:]) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[:]), true
}
func (r *Ring) ReadI32() (int32, bool) {
	v, ok := r.ReadU32()
	return int32(v), ok
}

func (r *Ring) ReadU64() (uint64, bool) {
	var b [8]byte
	if !r.consume(b[:]) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b[:]), true
}
func (r *Ring) ReadI64() (int64, bool) {
	v, ok := r.ReadU64()
	return int64(v), ok
}

func (r *Ring) ReadF32() (float32, bool) {
	v, ok := r.ReadU32()
	return math.Float32frombits(v), ok
}
func (r *Ring) ReadF64() (float64, bool) {
	v, ok := r.ReadU64()
	return math.Float64frombits(v), ok
}

// ReadCustom fills dst entirely from the ring, or returns false on
// desync (not enough committed bytes).
func (r *Ring) ReadCustom(dst []byte) bool { return r.consume(dst) }

// ReadString reads a {u32 length, bytes} pair written by WriteString.
func (r *Ring) ReadString() (string, bool) {
	n, ok := r.ReadU32()
	if !ok {
		return "", false
	}
	b := make([]byte, n)
	if !r.ReadCustom(b) {
		return "", false
	}
	return string(b), true
}

// WaitIfDataIsReachingLimit is the cooperative back-pressure helper: if
// free space has dropped below a quarter of capacity, it emits pingOp,
// commits, then polls up to fifty 20ms intervals for free space to
// recover above three-quarters of capacity. Returns true if the
// caller's subsequent writes are clear to proceed at full speed, false
// if it gave up waiting (caller should still attempt the write; this
// is advisory flow control, not a hard gate).
func (r *Ring) WaitIfDataIsReachingLimit(pingOp uint32) bool {
	if r.WritableSpace() >= r.cap/4 {
		return true
	}

	r.WriteOpcode(pingOp)
	r.CommitWrite()

	const polls = 50
	const interval = 20 * time.Millisecond
	threeQuarters := (r.cap * 3) / 4

	for i := 0; i < polls; i++ {
		if r.WritableSpace() >= threeQuarters {
			return true
		}
		time.Sleep(interval)
	}
	return false
}
