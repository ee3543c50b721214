package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	NonRtClientChannel: the large host->child ring carrying
 *		the full plugin lifecycle and control surface (spec §4.5).
 *
 * Description:	Every command is one atomic ring message; unlike
 *		RtChannel nothing here runs inside the audio cycle, so
 *		writers are free to call WaitIfDataIsReachingLimit before a
 *		burst instead of dropping anything.
 *
 *------------------------------------------------------------------*/

import "fmt"

// NonRtClientChannel wraps the ring for host->child traffic.
type NonRtClientChannel struct {
	region *Region
	ring   *Ring
}

// NonRtClientChannelByteSize returns the region size needed for a ring
// of the given capacity.
func NonRtClientChannelByteSize(ringCapacity uint32) int {
	return RingByteSize(ringCapacity)
}

// NewNonRtClientChannel builds the channel view over an already-mapped
// region.
func NewNonRtClientChannel(region *Region) (*NonRtClientChannel, error) {
	ring, err := NewRing(region.Bytes())
	if err != nil {
		return nil, fmt.Errorf("non-rt client channel: %w", err)
	}
	return &NonRtClientChannel{region: region, ring: ring}, nil
}

// Ring exposes the underlying ring for back-pressure control
// (WaitIfDataIsReachingLimit) driven by the caller between bursts.
func (c *NonRtClientChannel) Ring() *Ring { return c.ring }

func (c *NonRtClientChannel) Commit() bool { return c.ring.CommitWrite() }

// --- writer side (host) ---

func (c *NonRtClientChannel) WriteVersion(apiVersion uint32) {
	c.ring.WriteOpcode(uint32(NonRtClientVersion))
	c.ring.WriteU32(apiVersion)
}

func (c *NonRtClientChannel) WriteInitialSetup(bufferFrames uint32, sampleRate float64) {
	c.ring.WriteOpcode(uint32(NonRtClientInitialSetup))
	c.ring.WriteU32(bufferFrames)
	c.ring.WriteF64(sampleRate)
}

func (c *NonRtClientChannel) WriteActivate() {
	c.ring.WriteOpcode(uint32(NonRtClientActivate))
}

func (c *NonRtClientChannel) WriteDeactivate() {
	c.ring.WriteOpcode(uint32(NonRtClientDeactivate))
}

func (c *NonRtClientChannel) WriteSetParameterValue(idx uint32, value float32) {
	c.ring.WriteOpcode(uint32(NonRtClientSetParameterValue))
	c.ring.WriteU32(idx)
	c.ring.WriteF32(value)
}

func (c *NonRtClientChannel) WriteSetParameterMidiChannel(idx uint32, channel uint8) {
	c.ring.WriteOpcode(uint32(NonRtClientSetParameterMidiChannel))
	c.ring.WriteU32(idx)
	c.ring.WriteU8(channel)
}

func (c *NonRtClientChannel) WriteSetParameterMappedControlIndex(idx uint32, index int16) {
	c.ring.WriteOpcode(uint32(NonRtClientSetParameterMappedControlIndex))
	c.ring.WriteU32(idx)
	c.ring.WriteI16(index)
}

func (c *NonRtClientChannel) WriteSetParameterMappedRange(idx uint32, min, max float32) {
	c.ring.WriteOpcode(uint32(NonRtClientSetParameterMappedRange))
	c.ring.WriteU32(idx)
	c.ring.WriteF32(min)
	c.ring.WriteF32(max)
}

func (c *NonRtClientChannel) WriteSetProgram(index int32) {
	c.ring.WriteOpcode(uint32(NonRtClientSetProgram))
	c.ring.WriteI32(index)
}

func (c *NonRtClientChannel) WriteSetMidiProgram(index int32) {
	c.ring.WriteOpcode(uint32(NonRtClientSetMidiProgram))
	c.ring.WriteI32(index)
}

// WriteSetCustomData stages a custom-data message. If isFile is true,
// value is interpreted by the reader as a filepath to read-and-delete
// rather than the literal value; callers decide isFile by comparing
// len(value) against BigValueThreshold(apiVersion) before calling this.
func (c *NonRtClientChannel) WriteSetCustomData(dataType, key, value string, isFile bool) {
	c.ring.WriteOpcode(uint32(NonRtClientSetCustomData))
	c.ring.WriteString(dataType)
	c.ring.WriteString(key)
	c.ring.WriteBool(isFile)
	c.ring.WriteString(value)
}

func (c *NonRtClientChannel) WriteSetChunkDataFile(path string) {
	c.ring.WriteOpcode(uint32(NonRtClientSetChunkDataFile))
	c.ring.WriteString(path)
}

func (c *NonRtClientChannel) WriteSetOption(flag uint32, value bool) {
	c.ring.WriteOpcode(uint32(NonRtClientSetOption))
	c.ring.WriteU32(flag)
	c.ring.WriteBool(value)
}

func (c *NonRtClientChannel) WriteSetOptions(bitset uint32) {
	c.ring.WriteOpcode(uint32(NonRtClientSetOptions))
	c.ring.WriteU32(bitset)
}

func (c *NonRtClientChannel) WriteSetCtrlChannel(channel int16) {
	c.ring.WriteOpcode(uint32(NonRtClientSetCtrlChannel))
	c.ring.WriteI16(channel)
}

func (c *NonRtClientChannel) WritePrepareForSave() {
	c.ring.WriteOpcode(uint32(NonRtClientPrepareForSave))
}

func (c *NonRtClientChannel) WriteRestoreLV2State() {
	c.ring.WriteOpcode(uint32(NonRtClientRestoreLV2State))
}

func (c *NonRtClientChannel) WritePing() {
	c.ring.WriteOpcode(uint32(NonRtClientPing))
}

func (c *NonRtClientChannel) WritePingOnOff(on bool) {
	c.ring.WriteOpcode(uint32(NonRtClientPingOnOff))
	c.ring.WriteBool(on)
}

func (c *NonRtClientChannel) WriteShowUI() { c.ring.WriteOpcode(uint32(NonRtClientShowUI)) }
func (c *NonRtClientChannel) WriteHideUI() { c.ring.WriteOpcode(uint32(NonRtClientHideUI)) }

func (c *NonRtClientChannel) WriteEmbedUI(platformHandle uint64) {
	c.ring.WriteOpcode(uint32(NonRtClientEmbedUI))
	c.ring.WriteU64(platformHandle)
}

func (c *NonRtClientChannel) WriteSetWindowTitle(title string) {
	c.ring.WriteOpcode(uint32(NonRtClientSetWindowTitle))
	c.ring.WriteString(title)
}

func (c *NonRtClientChannel) WriteUiParameterChange(idx uint32, value float32) {
	c.ring.WriteOpcode(uint32(NonRtClientUiParameterChange))
	c.ring.WriteU32(idx)
	c.ring.WriteF32(value)
}

func (c *NonRtClientChannel) WriteUiProgramChange(index uint32) {
	c.ring.WriteOpcode(uint32(NonRtClientUiProgramChange))
	c.ring.WriteU32(index)
}

func (c *NonRtClientChannel) WriteUiMidiProgramChange(index uint32) {
	c.ring.WriteOpcode(uint32(NonRtClientUiMidiProgramChange))
	c.ring.WriteU32(index)
}

func (c *NonRtClientChannel) WriteUiNoteOn(channel, note, velocity uint8) {
	c.ring.WriteOpcode(uint32(NonRtClientUiNoteOn))
	c.ring.WriteU8(channel)
	c.ring.WriteU8(note)
	c.ring.WriteU8(velocity)
}

func (c *NonRtClientChannel) WriteUiNoteOff(channel, note uint8) {
	c.ring.WriteOpcode(uint32(NonRtClientUiNoteOff))
	c.ring.WriteU8(channel)
	c.ring.WriteU8(note)
}

func (c *NonRtClientChannel) WriteGetParameterText(idx int32) {
	c.ring.WriteOpcode(uint32(NonRtClientGetParameterText))
	c.ring.WriteI32(idx)
}

func (c *NonRtClientChannel) WriteQuit() { c.ring.WriteOpcode(uint32(NonRtClientQuit)) }

// --- reader side (child) ---

// NonRtClientMessage is the decoded form of one opcode read from this
// channel, with only the fields relevant to Op populated.
type NonRtClientMessage struct {
	Op NonRtClientOpcode

	U32A, U32B uint32
	U64A       uint64
	I32A       int32
	I16A       int16
	U8A, U8B, U8C uint8
	F32A, F32B float32
	F64A       float64
	BoolA      bool
	StrA, StrB, StrC string
}

// ReadMessage decodes the next opcode and its fixed payload. ok=false
// means the ring is empty. An opcode outside the known range is a
// protocol desync the caller must treat as fatal (bridgeerr.ProtocolDesync).
func (c *NonRtClientChannel) ReadMessage() (NonRtClientMessage, bool) {
	if !c.ring.IsDataAvailableForReading() {
		return NonRtClientMessage{}, false
	}
	opRaw, ok := c.ring.ReadOpcode()
	if !ok {
		return NonRtClientMessage{}, false
	}
	op := NonRtClientOpcode(opRaw)
	m := NonRtClientMessage{Op: op}

	switch op {
	case NonRtClientNull, NonRtClientActivate, NonRtClientDeactivate,
		NonRtClientPrepareForSave, NonRtClientRestoreLV2State, NonRtClientPing,
		NonRtClientShowUI, NonRtClientHideUI, NonRtClientQuit:
		// no payload
	case NonRtClientVersion:
		m.U32A, ok = c.ring.ReadU32()
	case NonRtClientInitialSetup:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			m.F64A, ok = c.ring.ReadF64()
		}
	case NonRtClientSetParameterValue:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			m.F32A, ok = c.ring.ReadF32()
		}
	case NonRtClientSetParameterMidiChannel:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			m.U8A, ok = c.ring.ReadU8()
		}
	case NonRtClientSetParameterMappedControlIndex:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			m.I16A, ok = c.ring.ReadI16()
		}
	case NonRtClientSetParameterMappedRange:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			if m.F32A, ok = c.ring.ReadF32(); ok {
				m.F32B, ok = c.ring.ReadF32()
			}
		}
	case NonRtClientSetProgram, NonRtClientSetMidiProgram:
		m.I32A, ok = c.ring.ReadI32()
	case NonRtClientSetCustomData:
		if m.StrA, ok = c.ring.ReadString(); ok {
			if m.StrB, ok = c.ring.ReadString(); ok {
				if m.BoolA, ok = c.ring.ReadBool(); ok {
					m.StrC, ok = c.ring.ReadString()
				}
			}
		}
	case NonRtClientSetChunkDataFile, NonRtClientSetWindowTitle:
		m.StrA, ok = c.ring.ReadString()
	case NonRtClientSetOption:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			m.BoolA, ok = c.ring.ReadBool()
		}
	case NonRtClientSetOptions:
		m.U32A, ok = c.ring.ReadU32()
	case NonRtClientSetCtrlChannel:
		m.I16A, ok = c.ring.ReadI16()
	case NonRtClientPingOnOff:
		m.BoolA, ok = c.ring.ReadBool()
	case NonRtClientEmbedUI:
		m.U64A, ok = c.ring.ReadU64()
	case NonRtClientUiParameterChange:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			m.F32A, ok = c.ring.ReadF32()
		}
	case NonRtClientUiProgramChange, NonRtClientUiMidiProgramChange:
		m.U32A, ok = c.ring.ReadU32()
	case NonRtClientUiNoteOn:
		if m.U8A, ok = c.ring.ReadU8(); ok {
			if m.U8B, ok = c.ring.ReadU8(); ok {
				m.U8C, ok = c.ring.ReadU8()
			}
		}
	case NonRtClientUiNoteOff:
		if m.U8A, ok = c.ring.ReadU8(); ok {
			m.U8B, ok = c.ring.ReadU8()
		}
	case NonRtClientGetParameterText:
		m.I32A, ok = c.ring.ReadI32()
	default:
		return m, true // unknown opcode: caller treats as desync
	}

	if !ok {
		return NonRtClientMessage{}, false
	}
	return m, true
}
