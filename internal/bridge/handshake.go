package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Assembles the server's mirrored state (port names, program
 *		catalogs, parameter catalog) from the child's fixed
 *		handshake burst on NonRtServerChannel (spec §4.6 items 1-10).
 *
 *------------------------------------------------------------------*/

// PortCatalog mirrors the AudioCount/MidiCount/CvCount/PortName burst.
type PortCatalog struct {
	AudioIn, AudioOut int
	MidiIn, MidiOut   int
	CvIn, CvOut       int
	Names             map[PortType]map[uint32]string
}

// ProgramCatalog mirrors ProgramCount/ProgramName and
// MidiProgramCount/MidiProgramData.
type ProgramCatalog struct {
	Programs     []ProgramDescriptor
	MidiPrograms []ProgramDescriptor
}

type handshakeCollector struct {
	ports    PortCatalog
	programs ProgramCatalog
	plugin   PluginDescriptor
	latency  uint32

	paramCount   int
	paramsByIdx  map[uint32]*ParamInfo
}

func newHandshakeCollector() *handshakeCollector {
	return &handshakeCollector{
		ports:       PortCatalog{Names: make(map[PortType]map[uint32]string)},
		paramsByIdx: make(map[uint32]*ParamInfo),
	}
}

func (h *handshakeCollector) absorb(msg NonRtServerMessage) {
	switch msg.Op {
	case NonRtServerPluginInfo1:
		h.plugin.Category = PluginCategory(msg.U32A)
		h.plugin.Hints = PluginHints(msg.U32B)
		h.plugin.OptionsAvailable = msg.U32C
		h.plugin.OptionsEnabled = msg.U32D
		h.plugin.UniqueID = msg.I64A
	case NonRtServerPluginInfo2:
		h.plugin.RealName = msg.StrA
		h.plugin.Label = msg.StrB
		h.plugin.Maker = msg.StrC
		h.plugin.Copyright = msg.StrD
	case NonRtServerAudioCount:
		h.ports.AudioIn, h.ports.AudioOut = int(msg.U32A), int(msg.U32B)
	case NonRtServerMidiCount:
		h.ports.MidiIn, h.ports.MidiOut = int(msg.U32A), int(msg.U32B)
	case NonRtServerCvCount:
		h.ports.CvIn, h.ports.CvOut = int(msg.U32A), int(msg.U32B)
	case NonRtServerPortName:
		t := PortType(msg.U8A)
		if h.ports.Names[t] == nil {
			h.ports.Names[t] = make(map[uint32]string)
		}
		h.ports.Names[t][msg.U32A] = msg.StrA
	case NonRtServerParameterCount:
		h.paramCount = int(msg.U32A)
	case NonRtServerParameterData1:
		p := h.param(msg.U32A)
		p.Index = msg.U32A
		p.Type = ParamType(msg.U32B)
		p.Hints = ParamHints(msg.U32C)
		p.MidiChannel = msg.U8A
		p.MappedControlIndex = int16(msg.I32A)
	case NonRtServerParameterData2:
		p := h.param(msg.U32A)
		p.Name = msg.StrA
		p.Symbol = msg.StrB
		p.Unit = msg.StrC
	case NonRtServerParameterRanges:
		p := h.param(msg.U32A)
		p.Min, p.Max, p.Def = msg.Ranges[0], msg.Ranges[1], msg.Ranges[2]
		p.Step, p.StepSmall, p.StepLarge = msg.Ranges[3], msg.Ranges[4], msg.Ranges[5]
		p.MappedMin, p.MappedMax = msg.Ranges[6], msg.Ranges[7]
	case NonRtServerParameterValue2:
		p := h.param(msg.U32A)
		p.Current = msg.F32A
	case NonRtServerProgramCount:
		h.programs.Programs = make([]ProgramDescriptor, 0, msg.U32A)
	case NonRtServerProgramName:
		h.programs.Programs = append(h.programs.Programs, ProgramDescriptor{Index: msg.U32A, Name: msg.StrA})
	case NonRtServerMidiProgramCount:
		h.programs.MidiPrograms = make([]ProgramDescriptor, 0, msg.U32A)
	case NonRtServerMidiProgramData:
		h.programs.MidiPrograms = append(h.programs.MidiPrograms,
			ProgramDescriptor{Index: msg.U32A, Bank: msg.U32B, Name: msg.StrA})
	case NonRtServerSetLatency:
		h.latency = msg.U32A
	}
}

func (h *handshakeCollector) param(idx uint32) *ParamInfo {
	if p, ok := h.paramsByIdx[idx]; ok {
		return p
	}
	p := &ParamInfo{Index: idx}
	h.paramsByIdx[idx] = p
	return p
}

func (h *handshakeCollector) catalog() *ParamCatalog {
	c := NewParamCatalog(h.paramCount)
	for idx, p := range h.paramsByIdx {
		if int(idx) < h.paramCount {
			c.params[idx] = *p
		}
	}
	return c
}

// portCatalog returns the AudioCount/MidiCount/CvCount/PortName burst
// absorbed so far (spec §4.6 items 4-5).
func (h *handshakeCollector) portCatalog() PortCatalog { return h.ports }

// programCatalog returns the ProgramName/MidiProgramData burst absorbed
// so far (spec §4.6 items 7-8).
func (h *handshakeCollector) programCatalog() ProgramCatalog { return h.programs }

// pluginDescriptor returns the PluginInfo1/PluginInfo2 identity plus the
// SetLatency value absorbed so far (spec §4.6 items 2-3,9).
func (h *handshakeCollector) pluginDescriptor() PluginDescriptor {
	d := h.plugin
	d.Latency = h.latency
	return d
}
