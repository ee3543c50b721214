package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	NonRtServerChannel: the large child->host ring carrying
 *		the plugin introspection burst and asynchronous control
 *		events (spec §4.6).
 *
 * Description:	The child emits a fixed handshake sequence right after
 *		attaching (Version, PluginInfo1/2, port/parameter/program
 *		catalogs, Ready), then asynchronous events for the rest of
 *		the bridge's life. The host's idle thread polls this ring
 *		and fires callbacks per message, exactly mirroring the
 *		teacher's server.go idle-loop-reads-a-ring-dispatches-by-
 *		opcode shape.
 *
 *------------------------------------------------------------------*/

import "fmt"

// String length caps per spec §4.6 item 3 (PluginInfo2).
const (
	MaxRealNameLen  = 64
	MaxLabelLen     = 256
	MaxMakerLen     = 64
	MaxCopyrightLen = 64
)

// NonRtServerChannel wraps the ring for child->host traffic.
type NonRtServerChannel struct {
	region *Region
	ring   *Ring
}

// NonRtServerChannelByteSize returns the region size needed for a ring
// of the given capacity.
func NonRtServerChannelByteSize(ringCapacity uint32) int {
	return RingByteSize(ringCapacity)
}

// NewNonRtServerChannel builds the channel view over an already-mapped
// region.
func NewNonRtServerChannel(region *Region) (*NonRtServerChannel, error) {
	ring, err := NewRing(region.Bytes())
	if err != nil {
		return nil, fmt.Errorf("non-rt server channel: %w", err)
	}
	return &NonRtServerChannel{region: region, ring: ring}, nil
}

func (c *NonRtServerChannel) Ring() *Ring { return c.ring }

func (c *NonRtServerChannel) Commit() bool { return c.ring.CommitWrite() }

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// --- writer side (child) ---

func (c *NonRtServerChannel) WriteVersion(apiVersion uint32) {
	c.ring.WriteOpcode(uint32(NonRtServerVersion))
	c.ring.WriteU32(apiVersion)
}

func (c *NonRtServerChannel) WritePluginInfo1(category, hints, optionsAvailable, optionsEnabled uint32, uniqueID int64) {
	c.ring.WriteOpcode(uint32(NonRtServerPluginInfo1))
	c.ring.WriteU32(category)
	c.ring.WriteU32(hints)
	c.ring.WriteU32(optionsAvailable)
	c.ring.WriteU32(optionsEnabled)
	c.ring.WriteI64(uniqueID)
}

func (c *NonRtServerChannel) WritePluginInfo2(realName, label, maker, copyright string) {
	c.ring.WriteOpcode(uint32(NonRtServerPluginInfo2))
	c.ring.WriteString(truncate(realName, MaxRealNameLen))
	c.ring.WriteString(truncate(label, MaxLabelLen))
	c.ring.WriteString(truncate(maker, MaxMakerLen))
	c.ring.WriteString(truncate(copyright, MaxCopyrightLen))
}

func (c *NonRtServerChannel) WriteAudioCount(ins, outs uint32) {
	c.ring.WriteOpcode(uint32(NonRtServerAudioCount))
	c.ring.WriteU32(ins)
	c.ring.WriteU32(outs)
}

func (c *NonRtServerChannel) WriteMidiCount(ins, outs uint32) {
	c.ring.WriteOpcode(uint32(NonRtServerMidiCount))
	c.ring.WriteU32(ins)
	c.ring.WriteU32(outs)
}

func (c *NonRtServerChannel) WriteCvCount(ins, outs uint32) {
	c.ring.WriteOpcode(uint32(NonRtServerCvCount))
	c.ring.WriteU32(ins)
	c.ring.WriteU32(outs)
}

func (c *NonRtServerChannel) WritePortName(portType PortType, index uint32, name string) {
	c.ring.WriteOpcode(uint32(NonRtServerPortName))
	c.ring.WriteU8(uint8(portType))
	c.ring.WriteU32(index)
	c.ring.WriteString(name)
}

func (c *NonRtServerChannel) WriteParameterCount(n uint32) {
	c.ring.WriteOpcode(uint32(NonRtServerParameterCount))
	c.ring.WriteU32(n)
}

func (c *NonRtServerChannel) WriteParameterData1(idx uint32, ptype ParamType, hints ParamHints, midiChannel uint8, mappedControlIndex int16) {
	c.ring.WriteOpcode(uint32(NonRtServerParameterData1))
	c.ring.WriteU32(idx)
	c.ring.WriteU32(uint32(ptype))
	c.ring.WriteU32(uint32(hints))
	c.ring.WriteU8(midiChannel)
	c.ring.WriteI16(mappedControlIndex)
}

func (c *NonRtServerChannel) WriteParameterData2(idx uint32, name, symbol, unit string) {
	c.ring.WriteOpcode(uint32(NonRtServerParameterData2))
	c.ring.WriteU32(idx)
	c.ring.WriteString(name)
	c.ring.WriteString(symbol)
	c.ring.WriteString(unit)
}

// WriteParameterRanges also carries the mapped-range fields, folding in
// the automation-readback supplement (SPEC_FULL §10.1) as an extra
// field pair rather than a new opcode.
func (c *NonRtServerChannel) WriteParameterRanges(idx uint32, min, max, def, step, stepSmall, stepLarge, mappedMin, mappedMax float32) {
	c.ring.WriteOpcode(uint32(NonRtServerParameterRanges))
	c.ring.WriteU32(idx)
	c.ring.WriteF32(min)
	c.ring.WriteF32(max)
	c.ring.WriteF32(def)
	c.ring.WriteF32(step)
	c.ring.WriteF32(stepSmall)
	c.ring.WriteF32(stepLarge)
	c.ring.WriteF32(mappedMin)
	c.ring.WriteF32(mappedMax)
}

// WriteParameterValue2 is the informational (droppable under
// back-pressure) initial-value report sent during the handshake burst,
// distinct from the authoritative WriteParameterValue used afterward.
func (c *NonRtServerChannel) WriteParameterValue2(idx uint32, value float32) {
	c.ring.WriteOpcode(uint32(NonRtServerParameterValue2))
	c.ring.WriteU32(idx)
	c.ring.WriteF32(value)
}

func (c *NonRtServerChannel) WriteProgramCount(n uint32) {
	c.ring.WriteOpcode(uint32(NonRtServerProgramCount))
	c.ring.WriteU32(n)
}

func (c *NonRtServerChannel) WriteProgramName(idx uint32, name string) {
	c.ring.WriteOpcode(uint32(NonRtServerProgramName))
	c.ring.WriteU32(idx)
	c.ring.WriteString(name)
}

func (c *NonRtServerChannel) WriteMidiProgramCount(n uint32) {
	c.ring.WriteOpcode(uint32(NonRtServerMidiProgramCount))
	c.ring.WriteU32(n)
}

func (c *NonRtServerChannel) WriteMidiProgramData(idx, bank, prog uint32, name string) {
	c.ring.WriteOpcode(uint32(NonRtServerMidiProgramData))
	c.ring.WriteU32(idx)
	c.ring.WriteU32(bank)
	c.ring.WriteU32(prog)
	c.ring.WriteString(name)
}

func (c *NonRtServerChannel) WriteSetLatency(frames uint32) {
	c.ring.WriteOpcode(uint32(NonRtServerSetLatency))
	c.ring.WriteU32(frames)
}

func (c *NonRtServerChannel) WriteReady() { c.ring.WriteOpcode(uint32(NonRtServerReady)) }

func (c *NonRtServerChannel) WriteParameterValue(idx uint32, value float32) {
	c.ring.WriteOpcode(uint32(NonRtServerParameterValue))
	c.ring.WriteU32(idx)
	c.ring.WriteF32(value)
}

func (c *NonRtServerChannel) WriteDefaultValue(idx uint32, value float32) {
	c.ring.WriteOpcode(uint32(NonRtServerDefaultValue))
	c.ring.WriteU32(idx)
	c.ring.WriteF32(value)
}

func (c *NonRtServerChannel) WriteParameterTouch(idx uint32, touched bool) {
	c.ring.WriteOpcode(uint32(NonRtServerParameterTouch))
	c.ring.WriteU32(idx)
	c.ring.WriteBool(touched)
}

func (c *NonRtServerChannel) WriteCurrentProgram(index int32) {
	c.ring.WriteOpcode(uint32(NonRtServerCurrentProgram))
	c.ring.WriteI32(index)
}

func (c *NonRtServerChannel) WriteCurrentMidiProgram(index int32) {
	c.ring.WriteOpcode(uint32(NonRtServerCurrentMidiProgram))
	c.ring.WriteI32(index)
}

func (c *NonRtServerChannel) WriteSetParameterText(idx int32, text string) {
	c.ring.WriteOpcode(uint32(NonRtServerSetParameterText))
	c.ring.WriteI32(idx)
	c.ring.WriteString(text)
}

func (c *NonRtServerChannel) WriteSetCustomData(dataType, key, value string, isFile bool) {
	c.ring.WriteOpcode(uint32(NonRtServerSetCustomData))
	c.ring.WriteString(dataType)
	c.ring.WriteString(key)
	c.ring.WriteBool(isFile)
	c.ring.WriteString(value)
}

func (c *NonRtServerChannel) WriteSetChunkDataFile(path string) {
	c.ring.WriteOpcode(uint32(NonRtServerSetChunkDataFile))
	c.ring.WriteString(path)
}

func (c *NonRtServerChannel) WriteSaved() { c.ring.WriteOpcode(uint32(NonRtServerSaved)) }

func (c *NonRtServerChannel) WriteUiClosed() { c.ring.WriteOpcode(uint32(NonRtServerUiClosed)) }

func (c *NonRtServerChannel) WriteRespEmbedUI(handle uint64) {
	c.ring.WriteOpcode(uint32(NonRtServerRespEmbedUI))
	c.ring.WriteU64(handle)
}

func (c *NonRtServerChannel) WriteResizeEmbedUI(w, h uint32) {
	c.ring.WriteOpcode(uint32(NonRtServerResizeEmbedUI))
	c.ring.WriteU32(w)
	c.ring.WriteU32(h)
}

func (c *NonRtServerChannel) WriteError(message string) {
	c.ring.WriteOpcode(uint32(NonRtServerError))
	c.ring.WriteString(message)
}

func (c *NonRtServerChannel) WritePong() { c.ring.WriteOpcode(uint32(NonRtServerPong)) }

// --- reader side (host) ---

// NonRtServerMessage is the decoded form of one opcode read from this
// channel, with only the fields relevant to Op populated.
type NonRtServerMessage struct {
	Op NonRtServerOpcode

	U32A, U32B, U32C, U32D uint32
	U64A                   uint64
	I64A                   int64
	I32A                   int32
	U8A                    uint8
	F32A                   float32
	BoolA                  bool
	StrA, StrB, StrC, StrD string

	// Ranges holds {min, max, def, step, stepSmall, stepLarge, mappedMin,
	// mappedMax} for NonRtServerParameterRanges; unused otherwise.
	Ranges [8]float32
}

// ReadMessage decodes the next opcode and its fixed payload. ok=false
// means the ring is empty. An opcode outside the known range is a
// protocol desync the caller must treat as fatal.
func (c *NonRtServerChannel) ReadMessage() (NonRtServerMessage, bool) {
	if !c.ring.IsDataAvailableForReading() {
		return NonRtServerMessage{}, false
	}
	opRaw, ok := c.ring.ReadOpcode()
	if !ok {
		return NonRtServerMessage{}, false
	}
	op := NonRtServerOpcode(opRaw)
	m := NonRtServerMessage{Op: op}

	switch op {
	case NonRtServerNull, NonRtServerReady, NonRtServerSaved,
		NonRtServerUiClosed, NonRtServerPong:
		// no payload
	case NonRtServerVersion, NonRtServerParameterCount, NonRtServerProgramCount,
		NonRtServerMidiProgramCount, NonRtServerSetLatency:
		m.U32A, ok = c.ring.ReadU32()
	case NonRtServerPluginInfo1:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			if m.U32B, ok = c.ring.ReadU32(); ok {
				if m.U32C, ok = c.ring.ReadU32(); ok {
					if m.U32D, ok = c.ring.ReadU32(); ok {
						m.I64A, ok = c.ring.ReadI64()
					}
				}
			}
		}
	case NonRtServerPluginInfo2:
		if m.StrA, ok = c.ring.ReadString(); ok {
			if m.StrB, ok = c.ring.ReadString(); ok {
				if m.StrC, ok = c.ring.ReadString(); ok {
					m.StrD, ok = c.ring.ReadString()
				}
			}
		}
	case NonRtServerAudioCount, NonRtServerMidiCount, NonRtServerCvCount:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			m.U32B, ok = c.ring.ReadU32()
		}
	case NonRtServerPortName:
		if m.U8A, ok = c.ring.ReadU8(); ok {
			if m.U32A, ok = c.ring.ReadU32(); ok {
				m.StrA, ok = c.ring.ReadString()
			}
		}
	case NonRtServerParameterData1:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			if m.U32B, ok = c.ring.ReadU32(); ok {
				if m.U32C, ok = c.ring.ReadU32(); ok {
					if m.U8A, ok = c.ring.ReadU8(); ok {
						var idx int16
						idx, ok = c.ring.ReadI16()
						m.I32A = int32(idx)
					}
				}
			}
		}
	case NonRtServerParameterData2:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			if m.StrA, ok = c.ring.ReadString(); ok {
				if m.StrB, ok = c.ring.ReadString(); ok {
					m.StrC, ok = c.ring.ReadString()
				}
			}
		}
	case NonRtServerParameterRanges:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			for i := 0; i < 8 && ok; i++ {
				m.Ranges[i], ok = c.ring.ReadF32()
			}
		}
	case NonRtServerParameterValue2, NonRtServerParameterValue, NonRtServerDefaultValue:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			m.F32A, ok = c.ring.ReadF32()
		}
	case NonRtServerProgramName:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			m.StrA, ok = c.ring.ReadString()
		}
	case NonRtServerMidiProgramData:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			if m.U32B, ok = c.ring.ReadU32(); ok {
				if m.U32C, ok = c.ring.ReadU32(); ok {
					m.StrA, ok = c.ring.ReadString()
				}
			}
		}
	case NonRtServerParameterTouch:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			m.BoolA, ok = c.ring.ReadBool()
		}
	case NonRtServerCurrentProgram, NonRtServerCurrentMidiProgram:
		m.I32A, ok = c.ring.ReadI32()
	case NonRtServerSetParameterText:
		if m.I32A, ok = c.ring.ReadI32(); ok {
			m.StrA, ok = c.ring.ReadString()
		}
	case NonRtServerSetCustomData:
		if m.StrA, ok = c.ring.ReadString(); ok {
			if m.StrB, ok = c.ring.ReadString(); ok {
				if m.BoolA, ok = c.ring.ReadBool(); ok {
					m.StrC, ok = c.ring.ReadString()
				}
			}
		}
	case NonRtServerSetChunkDataFile, NonRtServerError:
		m.StrA, ok = c.ring.ReadString()
	case NonRtServerRespEmbedUI:
		m.U64A, ok = c.ring.ReadU64()
	case NonRtServerResizeEmbedUI:
		if m.U32A, ok = c.ring.ReadU32(); ok {
			m.U32B, ok = c.ring.ReadU32()
		}
	default:
		return m, true // unknown opcode: caller treats as desync
	}

	if !ok {
		return NonRtServerMessage{}, false
	}
	return m, true
}
