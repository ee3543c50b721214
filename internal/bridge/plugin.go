package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	The two trait-like interfaces that stand in for the
 *		source's virtual dispatch between the engine and a bridged
 *		plugin (spec §9, first design note).
 *
 * Description:	HostCallbacks is implemented by the engine/graph code
 *		that embeds a ServerBridge; it receives the asynchronous
 *		events a ClientBridge reports over NonRtServerChannel.
 *		WrappedPlugin is implemented by the per-format wrapper (LV2,
 *		VST2, ...) running inside the child process; a ClientBridge
 *		drives it from the RT and non-RT opcodes it receives. Both
 *		shapes follow the clapgo pack example's Plugin/EventHandler
 *		split: typed methods instead of a generic dispatch, so the
 *		compiler catches a missing case instead of a runtime switch.
 *
 *------------------------------------------------------------------*/

// PluginCategory mirrors the source's coarse plugin classification,
// reported once in PluginInfo1.
type PluginCategory uint32

const (
	CategoryNone PluginCategory = iota
	CategorySynth
	CategoryDelay
	CategoryEQ
	CategoryFilter
	CategoryDistortion
	CategoryDynamics
	CategoryModulator
	CategoryUtility
	CategoryOther
)

// PluginHints is a bitset reported in PluginInfo1.
type PluginHints uint32

const (
	HintIsRtSafe PluginHints = 1 << iota
	HintIsSynth
	HintHasCustomUI
	HintCanRunRack
	HintFixedBuffers
)

// PluginDescriptor is the static identity a wrapped plugin reports
// during the non-RT handshake burst (spec §4.6 items 2-3).
type PluginDescriptor struct {
	Category         PluginCategory
	Hints            PluginHints
	OptionsAvailable uint32
	OptionsEnabled   uint32
	UniqueID         int64

	RealName  string
	Label     string
	Maker     string
	Copyright string

	Latency uint32
}

// PortDescriptor is one audio/CV/MIDI port's static identity, reported
// via PortName messages.
type PortDescriptor struct {
	Type PortType
	Name string
}

// ProgramDescriptor is one entry of the program or MIDI-program
// catalog.
type ProgramDescriptor struct {
	Index uint32
	Bank  uint32 // MIDI programs only
	Name  string
}

// WrappedPlugin is implemented by the per-format plugin wrapper running
// in the child process. A ClientBridge calls these under the rendezvous
// baton (Process) or from its non-RT thread (everything else); no
// method here may block.
type WrappedPlugin interface {
	// Describe returns the static identity reported once during the
	// handshake burst.
	Describe() PluginDescriptor

	// Ports returns the full port catalog in the fixed order
	// audio-in, audio-out, cv-in, cv-out, midi-in, midi-out.
	Ports() []PortDescriptor

	// Parameters returns the initial parameter catalog.
	Parameters() []ParamInfo

	// Programs and MidiPrograms return the catalogs described in spec
	// §4.6 items 7-8; either may be empty.
	Programs() []ProgramDescriptor
	MidiPrograms() []ProgramDescriptor

	// Activate/Deactivate toggle the plugin's active flag (non-RT
	// thread only).
	Activate() error
	Deactivate() error

	// SetBufferSize and SetSampleRate reconfigure the plugin ahead of
	// the next Process call.
	SetBufferSize(frames uint32) error
	SetSampleRate(sampleRate float64) error

	// SetParameterValue applies a host-or-UI-originated value change.
	// The wrapper always re-clamps; the server-side clamp in
	// BridgeParamInfo.Clamp is advisory only (spec §4.5).
	SetParameterValue(index uint32, value float32) error

	// SetProgram/SetMidiProgram select a program by index.
	SetProgram(index int32) error
	SetMidiProgram(index int32) error

	// Process runs exactly one audio cycle under the rendezvous baton.
	// MUST NOT block; MUST complete within the host's cycle budget.
	// in/out are already patched to the current AudioPool view by the
	// caller. midiIn is this cycle's queued input events, in arrival
	// order; the returned slice is this cycle's MIDI-out records.
	Process(t BridgeTimeInfo, in, out AudioCycleBuffers, midiIn []MidiInEvent) ([]MidiOutRecord, error)

	// SaveState and RestoreState implement the temp-file chunk
	// convention (spec §4.6 item SetChunkDataFile / PrepareForSave).
	SaveState() ([]byte, error)
	RestoreState(chunk []byte) error

	// CustomData mirrors LV2-style string-keyed plugin state that isn't
	// part of the opaque chunk (spec §4.5 SetCustomData).
	SetCustomData(dataType, key, value string) error
}

// AudioCycleBuffers groups the per-cycle audio/CV channel slices a
// WrappedPlugin.Process call reads and writes; each slice has length
// BufferFrames.
type AudioCycleBuffers struct {
	AudioIn  [][]float32
	AudioOut [][]float32
	CvIn     [][]float32
	CvOut    [][]float32
}

// HostCallbacks is implemented by the engine-side code embedding a
// ServerBridge. Every method corresponds to an asynchronous event the
// child may report over NonRtServerChannel after Ready; ServerBridge's
// idle loop calls these as it drains that ring.
type HostCallbacks interface {
	// OnParameterValue is the authoritative readback for parameter idx.
	OnParameterValue(idx uint32, value float32)

	// OnParameterValue2 is an informational readback that may be
	// dropped under back-pressure; implementations should not treat its
	// absence as an error.
	OnParameterValue2(idx uint32, value float32)

	OnDefaultValue(idx uint32, value float32)
	OnParameterTouch(idx uint32, touched bool)
	OnCurrentProgram(index int32)
	OnCurrentMidiProgram(index int32)
	OnParameterText(idx int32, text string)

	OnCustomData(dataType, key, value string)
	OnUiClosed()
	OnRespEmbedUI(handle uint64)
	OnResizeEmbedUI(w, h uint32)

	// OnError is called for both fatal (process crash, protocol
	// desync) and non-fatal (Carla-style warning) conditions; name
	// carries a human-readable description including the plugin name
	// where known (spec §7, §8 property 8).
	OnError(name string, err error)

	OnPong()
}
