package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	BridgeTimeInfo: the transport/BBT snapshot the server
 *		writes once per cycle at a fixed shm offset, outside the
 *		RT ring, so the client can read it without draining
 *		opcodes first.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"math"
)

// Valid-flags bits for BridgeTimeInfo.ValidFlags.
const (
	TimeInfoValidBBT uint32 = 1 << iota
)

// TimeInfoByteSize is the fixed wire size of one BridgeTimeInfo.
const TimeInfoByteSize = 80

// BridgeTimeInfo is the transport position snapshot shared once per
// audio cycle. Written by the server only while it holds the
// rendezvous baton; read by the client after waking on "server-runs".
type BridgeTimeInfo struct {
	Playing    bool
	Frame      uint64
	Usecs      uint64
	ValidFlags uint32

	Bar  int32
	Beat int32
	Tick int32

	BarStartTick   float64
	BeatsPerBar    float64
	BeatType       float64
	Ticks          float64
	BeatsPerMinute float64
}

// WriteTimeInfo marshals t into buf at a fixed layout, little-endian
// regardless of host endianness so the struct stays bit-identical if
// the pair ever crosses architectures via Wine.
func WriteTimeInfo(buf []byte, t BridgeTimeInfo) {
	_ = buf[:TimeInfoByteSize] // bounds check hint
	le := binary.LittleEndian

	var playing uint8
	if t.Playing {
		playing = 1
	}
	buf[0] = playing
	le.PutUint64(buf[8:16], t.Frame)
	le.PutUint64(buf[16:24], t.Usecs)
	le.PutUint32(buf[24:28], t.ValidFlags)
	le.PutUint32(buf[28:32], uint32(t.Bar))
	le.PutUint32(buf[32:36], uint32(t.Beat))
	le.PutUint32(buf[36:40], uint32(t.Tick))
	le.PutUint64(buf[40:48], math.Float64bits(t.BarStartTick))
	le.PutUint64(buf[48:56], math.Float64bits(t.BeatsPerBar))
	le.PutUint64(buf[56:64], math.Float64bits(t.BeatType))
	le.PutUint64(buf[64:72], math.Float64bits(t.Ticks))
	le.PutUint64(buf[72:80], math.Float64bits(t.BeatsPerMinute))
}

// ReadTimeInfo unmarshals a BridgeTimeInfo from buf.
func ReadTimeInfo(buf []byte) BridgeTimeInfo {
	_ = buf[:TimeInfoByteSize]
	le := binary.LittleEndian

	return BridgeTimeInfo{
		Playing:        buf[0] != 0,
		Frame:          le.Uint64(buf[8:16]),
		Usecs:          le.Uint64(buf[16:24]),
		ValidFlags:     le.Uint32(buf[24:28]),
		Bar:            int32(le.Uint32(buf[28:32])),
		Beat:           int32(le.Uint32(buf[32:36])),
		Tick:           int32(le.Uint32(buf[36:40])),
		BarStartTick:   math.Float64frombits(le.Uint64(buf[40:48])),
		BeatsPerBar:    math.Float64frombits(le.Uint64(buf[48:56])),
		BeatType:       math.Float64frombits(le.Uint64(buf[56:64])),
		Ticks:          math.Float64frombits(le.Uint64(buf[64:72])),
		BeatsPerMinute: math.Float64frombits(le.Uint64(buf[72:80])),
	}
}
