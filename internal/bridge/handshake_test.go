package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandshakeCollectorAbsorbsPortsAndParameters(t *testing.T) {
	h := newHandshakeCollector()

	h.absorb(NonRtServerMessage{Op: NonRtServerAudioCount, U32A: 2, U32B: 2})
	h.absorb(NonRtServerMessage{Op: NonRtServerMidiCount, U32A: 1, U32B: 0})
	h.absorb(NonRtServerMessage{Op: NonRtServerPortName, U8A: uint8(PortAudioIn), U32A: 0, StrA: "in_left"})

	h.absorb(NonRtServerMessage{Op: NonRtServerParameterCount, U32A: 1})
	h.absorb(NonRtServerMessage{
		Op: NonRtServerParameterData1, U32A: 0,
		U32B: uint32(ParamInput), U32C: uint32(ParamHintAutomatable),
	})
	h.absorb(NonRtServerMessage{Op: NonRtServerParameterData2, U32A: 0, StrA: "Gain", StrB: "gain", StrC: ""})
	h.absorb(NonRtServerMessage{
		Op: NonRtServerParameterRanges, U32A: 0,
		Ranges: [8]float32{0, 2, 1, 0.01, 0.001, 0.1, 0, 2},
	})
	h.absorb(NonRtServerMessage{Op: NonRtServerParameterValue2, U32A: 0, F32A: 1})

	assert.Equal(t, 2, h.ports.AudioIn)
	assert.Equal(t, 2, h.ports.AudioOut)
	assert.Equal(t, 1, h.ports.MidiIn)
	assert.Equal(t, "in_left", h.ports.Names[PortAudioIn][0])

	catalog := h.catalog()
	p, err := catalog.At(0)
	assert.NoError(t, err)
	assert.Equal(t, "Gain", p.Name)
	assert.Equal(t, float32(2), p.Max)
	assert.Equal(t, float32(1), p.Current)
}

func TestHandshakeCollectorProgramsAndMidiPrograms(t *testing.T) {
	h := newHandshakeCollector()

	h.absorb(NonRtServerMessage{Op: NonRtServerProgramCount, U32A: 2})
	h.absorb(NonRtServerMessage{Op: NonRtServerProgramName, U32A: 0, StrA: "Init"})
	h.absorb(NonRtServerMessage{Op: NonRtServerProgramName, U32A: 1, StrA: "Lead"})

	h.absorb(NonRtServerMessage{Op: NonRtServerMidiProgramCount, U32A: 1})
	h.absorb(NonRtServerMessage{Op: NonRtServerMidiProgramData, U32A: 0, U32B: 0, U32C: 3, StrA: "Bank0/Prog3"})

	assert.Len(t, h.programs.Programs, 2)
	assert.Equal(t, "Lead", h.programs.Programs[1].Name)
	assert.Len(t, h.programs.MidiPrograms, 1)
	assert.Equal(t, "Bank0/Prog3", h.programs.MidiPrograms[0].Name)
}

func TestHandshakeCollectorLatency(t *testing.T) {
	h := newHandshakeCollector()
	h.absorb(NonRtServerMessage{Op: NonRtServerSetLatency, U32A: 128})
	assert.Equal(t, uint32(128), h.latency)
}

func TestHandshakeCollectorPluginIdentity(t *testing.T) {
	h := newHandshakeCollector()

	h.absorb(NonRtServerMessage{
		Op: NonRtServerPluginInfo1,
		U32A: uint32(CategorySynth), U32B: uint32(HintIsSynth),
		U32C: 0x3, U32D: 0x1, I64A: 424242,
	})
	h.absorb(NonRtServerMessage{
		Op: NonRtServerPluginInfo2,
		StrA: "Reference Synth", StrB: "refsynth", StrC: "Acme Audio", StrD: "(c) Acme",
	})
	h.absorb(NonRtServerMessage{Op: NonRtServerSetLatency, U32A: 64})

	d := h.pluginDescriptor()
	assert.Equal(t, CategorySynth, d.Category)
	assert.Equal(t, HintIsSynth, d.Hints)
	assert.Equal(t, uint32(0x3), d.OptionsAvailable)
	assert.Equal(t, uint32(0x1), d.OptionsEnabled)
	assert.Equal(t, int64(424242), d.UniqueID)
	assert.Equal(t, "Reference Synth", d.RealName)
	assert.Equal(t, "refsynth", d.Label)
	assert.Equal(t, "Acme Audio", d.Maker)
	assert.Equal(t, "(c) Acme", d.Copyright)
	assert.Equal(t, uint32(64), d.Latency)
}
