package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	RtChannel: the real-time control channel. Combines the
 *		ring of server->client opcodes with BridgeTimeInfo, the
 *		client's procFlags byte, and the fixed MIDI-out scratch
 *		region, all inside one shared memory mapping.
 *
 * Description:	Layout, in order: BridgeTimeInfo, procFlags (1 byte,
 *		padded to 4), the server-runs/client-runs semaphore pair,
 *		the MIDI-out scratch, then the ring buffer filling the
 *		rest of the region. Client never writes RT opcodes back;
 *		it only writes audio into AudioPool and MIDI-out records
 *		into the scratch region described here.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"time"
)

// RtMidiScratchSize is the fixed size of the MIDI-out scratch region.
const RtMidiScratchSize = 512

const rtProcFlagsSize = 4 // padded for alignment

// RtChannelByteSize returns the total region size needed for a given
// RT ring capacity.
func RtChannelByteSize(ringCapacity uint32) int {
	return TimeInfoByteSize + rtProcFlagsSize + SemPairByteSize + RtMidiScratchSize + RingByteSize(ringCapacity)
}

// RtChannel is the shared-memory view of one bridge's RT channel, used
// by both server and client with role-appropriate methods below.
type RtChannel struct {
	region    *Region
	timeInfo  []byte
	procFlags []byte
	sem       *SemPair
	scratch   []byte
	ring      *Ring
}

// NewRtChannel builds the layout view over an already-mapped region.
func NewRtChannel(region *Region) (*RtChannel, error) {
	buf := region.Bytes()
	need := TimeInfoByteSize + rtProcFlagsSize + SemPairByteSize + RtMidiScratchSize
	if len(buf) <= need {
		return nil, fmt.Errorf("rt channel region too small: %d bytes", len(buf))
	}

	off := 0
	timeInfo := buf[off : off+TimeInfoByteSize]
	off += TimeInfoByteSize
	procFlags := buf[off : off+rtProcFlagsSize]
	off += rtProcFlagsSize
	semBuf := buf[off : off+SemPairByteSize]
	off += SemPairByteSize
	scratch := buf[off : off+RtMidiScratchSize]
	off += RtMidiScratchSize

	ring, err := NewRing(buf[off:])
	if err != nil {
		return nil, fmt.Errorf("rt channel ring: %w", err)
	}

	return &RtChannel{
		region:    region,
		timeInfo:  timeInfo,
		procFlags: procFlags,
		sem:       NewSemPair(semBuf),
		scratch:   scratch,
		ring:      ring,
	}, nil
}

// --- server side: writes opcodes, time info; drives the rendezvous ---

func (c *RtChannel) SetTimeInfo(t BridgeTimeInfo) { WriteTimeInfo(c.timeInfo, t) }

func (c *RtChannel) WriteNull() { c.ring.WriteOpcode(uint32(RtNull)) }

func (c *RtChannel) WriteSetAudioPool(byteSize uint64) {
	c.ring.WriteOpcode(uint32(RtSetAudioPool))
	c.ring.WriteU64(byteSize)
}

func (c *RtChannel) WriteSetBufferSize(frames uint32) {
	c.ring.WriteOpcode(uint32(RtSetBufferSize))
	c.ring.WriteU32(frames)
}

func (c *RtChannel) WriteSetSampleRate(sr float64) {
	c.ring.WriteOpcode(uint32(RtSetSampleRate))
	c.ring.WriteF64(sr)
}

func (c *RtChannel) WriteSetOnline(offline bool) {
	c.ring.WriteOpcode(uint32(RtSetOnline))
	c.ring.WriteBool(offline)
}

func (c *RtChannel) WriteControlEventParameter(time uint32, channel uint8, param uint16, value float32) {
	c.ring.WriteOpcode(uint32(RtControlEventParameter))
	c.ring.WriteU32(time)
	c.ring.WriteU8(channel)
	c.ring.WriteU16(param)
	c.ring.WriteF32(value)
}

func (c *RtChannel) WriteControlEventMidiBank(time uint32, channel uint8, idx uint16) {
	c.ring.WriteOpcode(uint32(RtControlEventMidiBank))
	c.ring.WriteU32(time)
	c.ring.WriteU8(channel)
	c.ring.WriteU16(idx)
}

func (c *RtChannel) WriteControlEventMidiProgram(time uint32, channel uint8, idx uint16) {
	c.ring.WriteOpcode(uint32(RtControlEventMidiProgram))
	c.ring.WriteU32(time)
	c.ring.WriteU8(channel)
	c.ring.WriteU16(idx)
}

func (c *RtChannel) WriteControlEventAllSoundOff(time uint32, channel uint8) {
	c.ring.WriteOpcode(uint32(RtControlEventAllSoundOff))
	c.ring.WriteU32(time)
	c.ring.WriteU8(channel)
}

func (c *RtChannel) WriteControlEventAllNotesOff(time uint32, channel uint8) {
	c.ring.WriteOpcode(uint32(RtControlEventAllNotesOff))
	c.ring.WriteU32(time)
	c.ring.WriteU8(channel)
}

// WriteMidiEvent stages a raw MIDI-in event. data must be <=4 bytes
// per the RT-channel size bound.
func (c *RtChannel) WriteMidiEvent(time uint32, port uint8, data []byte) {
	c.ring.WriteOpcode(uint32(RtMidiEvent))
	c.ring.WriteU32(time)
	c.ring.WriteU8(port)
	c.ring.WriteU8(uint8(len(data)))
	c.ring.WriteCustom(data)
}

func (c *RtChannel) WriteProcess(frames uint32) {
	c.ring.WriteOpcode(uint32(RtProcess))
	c.ring.WriteU32(frames)
}

func (c *RtChannel) WriteQuit() { c.ring.WriteOpcode(uint32(RtQuit)) }

// Commit publishes everything staged this cycle.
func (c *RtChannel) Commit() bool { return c.ring.CommitWrite() }

// PostServerRuns/WaitClientRuns drive the server's half of the
// rendezvous (see spec §4.4 step 2).
func (c *RtChannel) PostServerRuns()                      { c.sem.PostServerRuns() }
func (c *RtChannel) WaitClientRuns(timeout time.Duration) bool {
	return c.sem.WaitClientRuns(timeout)
}

// --- client side: drains opcodes, reads time info, posts outputs ---

func (c *RtChannel) TimeInfo() BridgeTimeInfo { return ReadTimeInfo(c.timeInfo) }

func (c *RtChannel) ProcFlags() byte   { return c.procFlags[0] }
func (c *RtChannel) SetProcFlags(v byte) { c.procFlags[0] = v }

func (c *RtChannel) WaitServerRuns(timeout time.Duration) bool {
	return c.sem.WaitServerRuns(timeout)
}
func (c *RtChannel) PostClientRuns() { c.sem.PostClientRuns() }

// RtMessage is the decoded form of one RT opcode, with only the fields
// relevant to Op populated.
type RtMessage struct {
	Op      RtOpcode
	Size    uint64
	Frames  uint32
	SampleRate float64
	Offline bool
	Time    uint32
	Chan    uint8
	Param   uint16
	Value   float32
	MidiData []byte
	Port    uint8
}

// ReadMessage decodes the next opcode and its fixed payload. Returns
// ok=false if the ring is empty; desync (a malformed or unrecognised
// opcode) is reported by returning ok=true with Op set to a value the
// caller doesn't expect to see - callers should treat anything outside
// the known RtOpcode range as a protocol desync.
func (c *RtChannel) ReadMessage() (RtMessage, bool) {
	if !c.ring.IsDataAvailableForReading() {
		return RtMessage{}, false
	}
	opRaw, ok := c.ring.ReadOpcode()
	if !ok {
		return RtMessage{}, false
	}
	op := RtOpcode(opRaw)
	msg := RtMessage{Op: op}

	switch op {
	case RtNull, RtQuit:
		// no payload
	case RtSetAudioPool:
		msg.Size, ok = c.ring.ReadU64()
	case RtSetBufferSize:
		msg.Frames, ok = c.ring.ReadU32()
	case RtSetSampleRate:
		msg.SampleRate, ok = c.ring.ReadF64()
	case RtSetOnline:
		msg.Offline, ok = c.ring.ReadBool()
	case RtControlEventParameter:
		if msg.Time, ok = c.ring.ReadU32(); ok {
			if msg.Chan, ok = c.ring.ReadU8(); ok {
				if msg.Param, ok = c.ring.ReadU16(); ok {
					msg.Value, ok = c.ring.ReadF32()
				}
			}
		}
	case RtControlEventMidiBank, RtControlEventMidiProgram:
		if msg.Time, ok = c.ring.ReadU32(); ok {
			if msg.Chan, ok = c.ring.ReadU8(); ok {
				msg.Param, ok = c.ring.ReadU16()
			}
		}
	case RtControlEventAllSoundOff, RtControlEventAllNotesOff:
		if msg.Time, ok = c.ring.ReadU32(); ok {
			msg.Chan, ok = c.ring.ReadU8()
		}
	case RtMidiEvent:
		var size uint8
		if msg.Time, ok = c.ring.ReadU32(); ok {
			if msg.Port, ok = c.ring.ReadU8(); ok {
				if size, ok = c.ring.ReadU8(); ok {
					msg.MidiData = make([]byte, size)
					ok = c.ring.ReadCustom(msg.MidiData)
				}
			}
		}
	case RtProcess:
		msg.Frames, ok = c.ring.ReadU32()
	default:
		return msg, true // unknown opcode: caller treats as desync
	}

	if !ok {
		return RtMessage{}, false
	}
	return msg, true
}

// MidiOutRecord is one client-produced MIDI-out event destined for the
// scratch region.
type MidiOutRecord struct {
	Time uint32
	Port uint8
	Data []byte
}

// WriteMidiOut encodes records into the scratch region, terminated by
// a zero-size record. Records that don't fit are silently dropped, per
// spec §4.4 (documented loss rather than blocking the RT thread).
func (c *RtChannel) WriteMidiOut(records []MidiOutRecord) {
	buf := c.scratch
	off := 0
	for _, r := range records {
		need := 4 + 1 + 1 + len(r.Data)
		if off+need+6 > len(buf) { // +6 reserves room for the terminator
			break
		}
		binary.LittleEndian.PutUint32(buf[off:off+4], r.Time)
		buf[off+4] = r.Port
		buf[off+5] = uint8(len(r.Data))
		copy(buf[off+6:off+6+len(r.Data)], r.Data)
		off += need
	}
	// zero-size terminator record
	binary.LittleEndian.PutUint32(buf[off:off+4], 0)
	buf[off+4] = 0
	buf[off+5] = 0
}

// ReadMidiOut decodes the scratch region written by WriteMidiOut.
func (c *RtChannel) ReadMidiOut() []MidiOutRecord {
	buf := c.scratch
	var out []MidiOutRecord
	off := 0
	for off+6 <= len(buf) {
		t := binary.LittleEndian.Uint32(buf[off : off+4])
		port := buf[off+4]
		size := buf[off+5]
		if size == 0 && t == 0 && port == 0 {
			break
		}
		off += 6
		if off+int(size) > len(buf) {
			break
		}
		data := make([]byte, size)
		copy(data, buf[off:off+int(size)])
		off += int(size)
		out = append(out, MidiOutRecord{Time: t, Port: port, Data: data})
	}
	return out
}
