package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/pluginbridge/internal/bridge/bridgeerr"
)

func newTestRtChannelPair(t *testing.T) *RtChannel {
	t.Helper()
	region := &Region{data: make([]byte, RtChannelByteSize(4096))}
	rt, err := NewRtChannel(region)
	require.NoError(t, err)
	return rt
}

func newTestHeapAudioPool(layout AudioPoolLayout) *AudioPool {
	return &AudioPool{layout: layout, floats: make([]float32, layout.TotalSamples())}
}

func newTestServerBridge(t *testing.T, layout AudioPoolLayout) *ServerBridge {
	t.Helper()
	b := &ServerBridge{
		cfg:     ServerBridgeConfig{ProcessTimeout: 30 * time.Millisecond},
		state:   StateRunning,
		rt:      newTestRtChannelPair(t),
		layout:  layout,
		params:  NewParamCatalog(1),
	}
	b.audioPool = newTestHeapAudioPool(layout)
	return b
}

func TestServerBridgeExposesHandshakeCatalogs(t *testing.T) {
	layout := AudioPoolLayout{AudioOut: 1, BufferFrames: 4}
	b := newTestServerBridge(t, layout)

	collector := newHandshakeCollector()
	collector.absorb(NonRtServerMessage{Op: NonRtServerAudioCount, U32A: 2, U32B: 1})
	collector.absorb(NonRtServerMessage{Op: NonRtServerPortName, U8A: uint8(PortAudioIn), U32A: 0, StrA: "in_left"})
	collector.absorb(NonRtServerMessage{Op: NonRtServerProgramCount, U32A: 1})
	collector.absorb(NonRtServerMessage{Op: NonRtServerProgramName, U32A: 0, StrA: "Init"})
	collector.absorb(NonRtServerMessage{
		Op: NonRtServerPluginInfo1, U32A: uint32(CategorySynth), I64A: 99,
	})
	collector.absorb(NonRtServerMessage{Op: NonRtServerPluginInfo2, StrA: "Reference Synth"})

	b.ports = collector.portCatalog()
	b.programs = collector.programCatalog()
	b.plugin = collector.pluginDescriptor()

	assert.Equal(t, 2, b.Ports().AudioIn)
	assert.Equal(t, "in_left", b.Ports().Names[PortAudioIn][0])
	require.Len(t, b.Programs().Programs, 1)
	assert.Equal(t, "Init", b.Programs().Programs[0].Name)
	assert.Equal(t, "Reference Synth", b.Plugin().RealName)
	assert.Equal(t, int64(99), b.Plugin().UniqueID)
}

func TestProcessCycleSilencesWhenNotRunning(t *testing.T) {
	layout := AudioPoolLayout{AudioOut: 1, BufferFrames: 4}
	b := newTestServerBridge(t, layout)
	b.state = StateIdle

	for i := range b.audioPool.AudioOut(0) {
		b.audioPool.AudioOut(0)[i] = 1
	}

	b.ProcessCycle(BridgeTimeInfo{}, 4, nil)

	for _, v := range b.audioPool.AudioOut(0) {
		assert.Equal(t, float32(0), v)
	}
}

func TestProcessCycleRendezvousSucceeds(t *testing.T) {
	layout := AudioPoolLayout{AudioOut: 1, BufferFrames: 4}
	b := newTestServerBridge(t, layout)

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.True(t, b.rt.WaitServerRuns(time.Second))
		b.rt.PostClientRuns()
	}()

	b.ProcessCycle(BridgeTimeInfo{Playing: true}, 4, nil)
	<-done
	assert.False(t, b.TimedOut())
}

func TestProcessCycleTimesOutAndSilences(t *testing.T) {
	layout := AudioPoolLayout{AudioOut: 1, BufferFrames: 4}
	b := newTestServerBridge(t, layout)
	for i := range b.audioPool.AudioOut(0) {
		b.audioPool.AudioOut(0)[i] = 1
	}

	// Nobody posts client-runs: the rendezvous must time out and the
	// bridge must fall back to silence rather than hang.
	b.ProcessCycle(BridgeTimeInfo{}, 4, nil)

	assert.True(t, b.TimedOut())
	for _, v := range b.audioPool.AudioOut(0) {
		assert.Equal(t, float32(0), v)
	}
}

func TestProcessCycleSkipsOnParamLock(t *testing.T) {
	layout := AudioPoolLayout{AudioOut: 1, BufferFrames: 4}
	b := newTestServerBridge(t, layout)
	for i := range b.audioPool.AudioOut(0) {
		b.audioPool.AudioOut(0)[i] = 1
	}

	b.paramMu.Lock()
	defer b.paramMu.Unlock()

	b.ProcessCycle(BridgeTimeInfo{}, 4, nil)

	for _, v := range b.audioPool.AudioOut(0) {
		assert.Equal(t, float32(0), v)
	}
}

type recordingCallbacks struct {
	paramValues map[uint32]float32
	errs        []error
}

func (r *recordingCallbacks) OnParameterValue(idx uint32, value float32) {
	if r.paramValues == nil {
		r.paramValues = map[uint32]float32{}
	}
	r.paramValues[idx] = value
}
func (r *recordingCallbacks) OnParameterValue2(idx uint32, value float32) {}
func (r *recordingCallbacks) OnDefaultValue(idx uint32, value float32)    {}
func (r *recordingCallbacks) OnParameterTouch(idx uint32, touched bool)   {}
func (r *recordingCallbacks) OnCurrentProgram(index int32)                {}
func (r *recordingCallbacks) OnCurrentMidiProgram(index int32)            {}
func (r *recordingCallbacks) OnParameterText(idx int32, text string)      {}
func (r *recordingCallbacks) OnCustomData(dataType, key, value string)    {}
func (r *recordingCallbacks) OnUiClosed()                                 {}
func (r *recordingCallbacks) OnRespEmbedUI(handle uint64)                 {}
func (r *recordingCallbacks) OnResizeEmbedUI(w, h uint32)                 {}
func (r *recordingCallbacks) OnError(name string, err error)              { r.errs = append(r.errs, err) }
func (r *recordingCallbacks) OnPong()                                     {}

func TestServerBridgeDispatchParameterValueUpdatesCatalogAndCallback(t *testing.T) {
	layout := AudioPoolLayout{BufferFrames: 1}
	b := newTestServerBridge(t, layout)
	cb := &recordingCallbacks{}
	b.cfg.Callbacks = cb

	b.dispatch(NonRtServerMessage{Op: NonRtServerParameterValue, U32A: 0, F32A: 0.75})

	p, err := b.params.At(0)
	require.NoError(t, err)
	assert.Equal(t, float32(0.75), p.Current)
	assert.Equal(t, float32(0.75), cb.paramValues[0])
}

func TestServerBridgeDispatchUnknownOpcodeIsDesync(t *testing.T) {
	layout := AudioPoolLayout{BufferFrames: 1}
	b := newTestServerBridge(t, layout)
	cb := &recordingCallbacks{}
	b.cfg.Callbacks = cb

	b.dispatch(NonRtServerMessage{Op: NonRtServerOpcode(9999)})

	assert.Equal(t, StateDead, b.State())
	require.Len(t, cb.errs, 1)
}

func TestServerBridgeRefusedAfterDead(t *testing.T) {
	layout := AudioPoolLayout{BufferFrames: 1}
	b := newTestServerBridge(t, layout)
	assert.False(t, b.Refused())

	b.setState(StateDead)
	assert.True(t, b.Refused())

	err := b.SetParameterValue(0, 1)
	assert.ErrorIs(t, err, bridgeerr.Dead)
}
