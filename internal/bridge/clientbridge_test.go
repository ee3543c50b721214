package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPlugin is a local WrappedPlugin test double: internal/bridge's
// own tests can't import internal/wrapper (wrapper imports bridge), so
// this stands in for wrapper.Passthrough here.
type mockPlugin struct {
	desc         PluginDescriptor
	ports        []PortDescriptor
	params       []ParamInfo
	programs     []ProgramDescriptor
	midiPrograms []ProgramDescriptor

	lastParamIdx   uint32
	lastParamValue float32
	activated      bool
	customData     map[string]string
	saveChunk      []byte
	restoredChunk  []byte
}

func newMockPlugin() *mockPlugin {
	return &mockPlugin{
		desc: PluginDescriptor{Category: CategoryUtility, RealName: "Mock", Label: "mock", Maker: "test", UniqueID: 7},
		ports: []PortDescriptor{
			{Type: PortAudioIn, Name: "in_l"},
			{Type: PortAudioOut, Name: "out_l"},
			{Type: PortMidiIn, Name: "midi_in"},
		},
		params: []ParamInfo{
			{Index: 0, Name: "Gain", Min: 0, Max: 2, Def: 1, Current: 1},
		},
		customData: map[string]string{},
	}
}

func (m *mockPlugin) Describe() PluginDescriptor         { return m.desc }
func (m *mockPlugin) Ports() []PortDescriptor            { return m.ports }
func (m *mockPlugin) Parameters() []ParamInfo            { return m.params }
func (m *mockPlugin) Programs() []ProgramDescriptor      { return m.programs }
func (m *mockPlugin) MidiPrograms() []ProgramDescriptor  { return m.midiPrograms }
func (m *mockPlugin) Activate() error                    { m.activated = true; return nil }
func (m *mockPlugin) Deactivate() error                  { m.activated = false; return nil }
func (m *mockPlugin) SetBufferSize(frames uint32) error  { return nil }
func (m *mockPlugin) SetSampleRate(sr float64) error     { return nil }

func (m *mockPlugin) SetParameterValue(index uint32, value float32) error {
	m.lastParamIdx = index
	m.lastParamValue = value
	return nil
}

func (m *mockPlugin) SetProgram(index int32) error     { return nil }
func (m *mockPlugin) SetMidiProgram(index int32) error { return nil }

func (m *mockPlugin) Process(t BridgeTimeInfo, in, out AudioCycleBuffers, midiIn []MidiInEvent) ([]MidiOutRecord, error) {
	for ch := range out.AudioOut {
		copy(out.AudioOut[ch], in.AudioIn[ch])
	}
	return nil, nil
}

func (m *mockPlugin) SaveState() ([]byte, error) { return m.saveChunk, nil }
func (m *mockPlugin) RestoreState(chunk []byte) error {
	m.restoredChunk = chunk
	return nil
}

func (m *mockPlugin) SetCustomData(dataType, key, value string) error {
	m.customData[key] = value
	return nil
}

func newTestClientBridge(t *testing.T, plugin WrappedPlugin) (*ClientBridge, *NonRtServerChannel) {
	t.Helper()
	nsRegion := &Region{data: make([]byte, NonRtServerChannelByteSize(4096))}
	ns, err := NewNonRtServerChannel(nsRegion)
	require.NoError(t, err)

	ncRegion := &Region{data: make([]byte, NonRtClientChannelByteSize(4096))}
	nc, err := NewNonRtClientChannel(ncRegion)
	require.NoError(t, err)

	cb := NewClientBridge(ClientBridgeConfig{
		NonRtClient: nc,
		NonRtServer: ns,
		Plugin:      plugin,
		APIVersion:  APIVersionCurrent,
		ShmSuffix:   "test",
	})
	return cb, ns
}

func TestClientBridgeHandshakeEmitsFullBurst(t *testing.T) {
	plugin := newMockPlugin()
	cb, ns := newTestClientBridge(t, plugin)

	require.NoError(t, cb.Handshake())

	var ops []NonRtServerOpcode
	for {
		msg, ok := ns.ReadMessage()
		if !ok {
			break
		}
		ops = append(ops, msg.Op)
	}

	assert.Contains(t, ops, NonRtServerVersion)
	assert.Contains(t, ops, NonRtServerPluginInfo1)
	assert.Contains(t, ops, NonRtServerPluginInfo2)
	assert.Contains(t, ops, NonRtServerAudioCount)
	assert.Contains(t, ops, NonRtServerMidiCount)
	assert.Contains(t, ops, NonRtServerParameterCount)
	assert.Contains(t, ops, NonRtServerParameterRanges)
	assert.Contains(t, ops, NonRtServerReady)

	// Port catalog built for the RT side's later ResetEvents/QueueEvent use.
	assert.Len(t, cb.ports, 3)
}

func TestClientBridgePortDirectionOf(t *testing.T) {
	assert.Equal(t, PortDirectionInput, portDirectionOf(PortAudioIn))
	assert.Equal(t, PortDirectionOutput, portDirectionOf(PortAudioOut))
	assert.Equal(t, PortDirectionOutput, portDirectionOf(PortCvOut))
	assert.Equal(t, PortDirectionOutput, portDirectionOf(PortMidiOut))
	assert.Equal(t, PortDirectionInput, portDirectionOf(PortMidiIn))
}

func TestClientBridgeHandleNonRtSetParameterValue(t *testing.T) {
	plugin := newMockPlugin()
	cb, _ := newTestClientBridge(t, plugin)

	exit := cb.handleNonRt(NonRtClientMessage{Op: NonRtClientSetParameterValue, U32A: 0, F32A: 1.5})
	assert.False(t, exit)
	assert.Equal(t, uint32(0), plugin.lastParamIdx)
	assert.Equal(t, float32(1.5), plugin.lastParamValue)
}

func TestClientBridgeHandleNonRtQuit(t *testing.T) {
	plugin := newMockPlugin()
	cb, _ := newTestClientBridge(t, plugin)

	exit := cb.handleNonRt(NonRtClientMessage{Op: NonRtClientQuit})
	assert.True(t, exit)
	assert.True(t, cb.quit.Load())
}

func TestClientBridgeHandleNonRtGetParameterTextRepliesEmpty(t *testing.T) {
	plugin := newMockPlugin()
	cb, ns := newTestClientBridge(t, plugin)

	exit := cb.handleNonRt(NonRtClientMessage{Op: NonRtClientGetParameterText, I32A: 0})
	assert.False(t, exit)

	msg, ok := ns.ReadMessage()
	require.True(t, ok)
	assert.Equal(t, NonRtServerSetParameterText, msg.Op)
	assert.Equal(t, "", msg.StrA)
}

func TestClientBridgeHandleNonRtSetCustomData(t *testing.T) {
	plugin := newMockPlugin()
	cb, _ := newTestClientBridge(t, plugin)

	exit := cb.handleNonRt(NonRtClientMessage{
		Op: NonRtClientSetCustomData, StrA: "string", StrB: "key1", StrC: "value1", BoolA: false,
	})
	assert.False(t, exit)
	assert.Equal(t, "value1", plugin.customData["key1"])
}

func TestFirstFalseIsCommitError(t *testing.T) {
	assert.NoError(t, firstFalseIsCommitError(true))
	assert.Error(t, firstFalseIsCommitError(false))
}

func TestClientBridgeCountPorts(t *testing.T) {
	cb := &ClientBridge{}
	cb.ports = []PortState{
		*NewPortState("in_l", 0, PortDirectionInput, PortAudioIn),
		*NewPortState("in_r", 1, PortDirectionInput, PortAudioIn),
		*NewPortState("out_l", 0, PortDirectionOutput, PortAudioOut),
	}
	assert.Equal(t, 2, cb.countPorts(PortAudioIn))
	assert.Equal(t, 1, cb.countPorts(PortAudioOut))
	assert.Equal(t, 0, cb.countPorts(PortCvIn))
}

func TestClientBridgeQueueMidiIn(t *testing.T) {
	cb := &ClientBridge{}
	cb.ports = []PortState{*NewPortState("midi_in", 0, PortDirectionInput, PortMidiIn)}

	cb.queueMidiIn(RtMessage{Port: 0, Time: 10, MidiData: []byte{0x90, 0x40, 0x7f}})

	events := cb.ports[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, uint32(10), events[0].Time)
	assert.Equal(t, []byte{0x90, 0x40, 0x7f}, events[0].Data)
}
