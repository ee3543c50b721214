package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	ServerBridge: the host-side state machine driving one
 *		bridged child through spawn, handshake, steady-state
 *		process cycles, and teardown (spec §4.7).
 *
 * Description:	The per-plugin state a RT ProcessCycle call and the
 *		idle-thread callback dispatch both touch (the parameter
 *		cache) is guarded by a mutex the audio thread only
 *		try_locks: on contention it skips the cycle and outputs
 *		silence rather than ever blocking (spec §5, §9). This
 *		mirrors the teacher's tq.go/xmit.go producer/consumer
 *		handshake in spirit - a dedicated synchronization object per
 *		resource instead of one coarse lock - but swaps its
 *		sync.Cond wake/sleep for the semaphore-pair rendezvous the
 *		RT path actually needs.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/friendsincode/pluginbridge/internal/bridge/bridgeerr"
)

// State is one node of the ServerBridge lifecycle state machine.
type State int

const (
	StateIdle State = iota
	StateSpawning
	StateWaitingReady
	StateRunning
	StateClosing
	StateDead
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSpawning:
		return "Spawning"
	case StateWaitingReady:
		return "WaitingReady"
	case StateRunning:
		return "Running"
	case StateClosing:
		return "Closing"
	case StateDead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// Default timeouts, per spec §4.4, §4.7, §7.
const (
	DefaultProcessTimeout    = 1 * time.Second
	DefaultReadyTimeout      = 15 * time.Second
	DefaultClosingRtTimeout  = 3 * time.Second
	DefaultClosingKillGrace  = 2 * time.Second
	DefaultIdlePingInterval  = 2 * time.Second
	DefaultPingSilenceWindow = 6 * time.Second
)

// ServerBridgeConfig configures one bridge instance.
type ServerBridgeConfig struct {
	Spawn SpawnConfig

	RtRingCapacity         uint32
	NonRtClientCapacity    uint32
	NonRtServerCapacity    uint32
	InitialLayout          AudioPoolLayout
	SampleRate             float64
	ProcessTimeout         time.Duration // 0 means DefaultProcessTimeout
	ReadyTimeout           time.Duration
	Callbacks              HostCallbacks
}

func (c ServerBridgeConfig) processTimeout() time.Duration {
	if c.ProcessTimeout <= 0 {
		return DefaultProcessTimeout
	}
	return c.ProcessTimeout
}

func (c ServerBridgeConfig) readyTimeout() time.Duration {
	if c.ReadyTimeout <= 0 {
		return DefaultReadyTimeout
	}
	return c.ReadyTimeout
}

var serverLog = componentLogger("server-bridge")

// ServerBridge is the host-side handle to one bridged plugin.
type ServerBridge struct {
	cfg ServerBridgeConfig

	stateMu sync.RWMutex
	state   State
	timedOut atomic.Bool

	audioPool   *AudioPool
	rt          *RtChannel
	nonRtClient *NonRtClientChannel
	nonRtServer *NonRtServerChannel
	regions     []*Region

	supervisor *ProcessSupervisor

	// paramMu guards the parameter catalog. The idle thread holds it
	// while applying ParameterValue events; the audio thread only
	// TryLocks it and holds it for the whole cycle.
	paramMu  sync.Mutex
	params   *ParamCatalog
	clientAPIVersion uint32

	// ports, programs and plugin are populated once, from the mandatory
	// handshake burst (spec §4.6 items 2-3,4-5,7-8), and never mutated
	// again - unlike params, they need no mutex.
	ports    PortCatalog
	programs ProgramCatalog
	plugin   PluginDescriptor

	idleCancel context.CancelFunc
	idleDone   chan struct{}

	lastPong     atomic.Int64 // unix nanos
	lastPingSent atomic.Int64

	layout AudioPoolLayout

	pendingMu        sync.Mutex
	pendingChunkPath string
	saveDone         bool
}

// NewServerBridge allocates a bridge in StateIdle. Call Start to spawn.
func NewServerBridge(cfg ServerBridgeConfig) *ServerBridge {
	return &ServerBridge{cfg: cfg, state: StateIdle, layout: cfg.InitialLayout}
}

func (b *ServerBridge) State() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

func (b *ServerBridge) setState(s State) {
	b.stateMu.Lock()
	b.state = s
	b.stateMu.Unlock()
	serverLog.Debug("state transition", "state", s.String())
}

// TimedOut reports whether the most recent cycle(s) overran the
// process-rendezvous budget; cleared only by a successful Running
// re-entry (a cycle that completes within budget).
func (b *ServerBridge) TimedOut() bool { return b.timedOut.Load() }

// Start allocates the four shared-memory regions, spawns the child,
// performs the handshake, and waits for Ready. Returns
// bridgeerr.SetupFailure/InitTimeout on any failure; the bridge is left
// in StateDead and must not be reused.
func (b *ServerBridge) Start(ctx context.Context) error {
	b.setState(StateSpawning)

	ids := NewShmIDs()
	b.cfg.Spawn.ShmIDs = ids

	apRegion, err := CreateTemp(PrefixAudioPool)
	if err != nil {
		return b.fail(fmt.Errorf("%w: %v", bridgeerr.SetupFailure, err))
	}
	rtRegion, err := CreateTemp(PrefixRtClient)
	if err != nil {
		return b.fail(fmt.Errorf("%w: %v", bridgeerr.SetupFailure, err))
	}
	nrcRegion, err := CreateTemp(PrefixNonRtClient)
	if err != nil {
		return b.fail(fmt.Errorf("%w: %v", bridgeerr.SetupFailure, err))
	}
	nrsRegion, err := CreateTemp(PrefixNonRtServer)
	if err != nil {
		return b.fail(fmt.Errorf("%w: %v", bridgeerr.SetupFailure, err))
	}
	b.regions = []*Region{apRegion, rtRegion, nrcRegion, nrsRegion}

	b.audioPool = NewAudioPool(apRegion)
	if err := b.audioPool.Resize(b.layout); err != nil {
		return b.fail(fmt.Errorf("%w: audio pool map: %v", bridgeerr.SetupFailure, err))
	}

	if err := rtRegion.Map(RtChannelByteSize(b.cfg.RtRingCapacity)); err != nil {
		return b.fail(fmt.Errorf("%w: rt channel map: %v", bridgeerr.SetupFailure, err))
	}
	b.rt, err = NewRtChannel(rtRegion)
	if err != nil {
		return b.fail(fmt.Errorf("%w: %v", bridgeerr.SetupFailure, err))
	}

	if err := nrcRegion.Map(NonRtClientChannelByteSize(b.cfg.NonRtClientCapacity)); err != nil {
		return b.fail(fmt.Errorf("%w: non-rt client map: %v", bridgeerr.SetupFailure, err))
	}
	b.nonRtClient, err = NewNonRtClientChannel(nrcRegion)
	if err != nil {
		return b.fail(fmt.Errorf("%w: %v", bridgeerr.SetupFailure, err))
	}

	if err := nrsRegion.Map(NonRtServerChannelByteSize(b.cfg.NonRtServerCapacity)); err != nil {
		return b.fail(fmt.Errorf("%w: non-rt server map: %v", bridgeerr.SetupFailure, err))
	}
	b.nonRtServer, err = NewNonRtServerChannel(nrsRegion)
	if err != nil {
		return b.fail(fmt.Errorf("%w: %v", bridgeerr.SetupFailure, err))
	}

	// Handshake: Version + InitialSetup, committed before the child is
	// even spawned so the first thing it reads off the ring is ready.
	b.nonRtClient.WriteVersion(APIVersionCurrent)
	b.nonRtClient.WriteInitialSetup(uint32(b.layout.BufferFrames), b.cfg.SampleRate)
	b.nonRtClient.Commit()

	sup, err := Spawn(b.cfg.Spawn)
	if err != nil {
		return b.fail(fmt.Errorf("%w: %v", bridgeerr.SetupFailure, err))
	}
	b.supervisor = sup

	b.setState(StateWaitingReady)
	if err := b.waitForReady(ctx); err != nil {
		return b.fail(err)
	}

	b.setState(StateRunning)
	b.timedOut.Store(false)
	b.lastPong.Store(time.Now().UnixNano())

	idleCtx, cancel := context.WithCancel(context.Background())
	b.idleCancel = cancel
	b.idleDone = make(chan struct{})
	go b.idleLoop(idleCtx)

	return nil
}

func (b *ServerBridge) fail(err error) error {
	b.setState(StateDead)
	if b.cfg.Callbacks != nil {
		b.cfg.Callbacks.OnError("bridge setup", err)
	}
	return err
}

// waitForReady polls NonRtServerChannel for the handshake burst and the
// terminating Ready message, or fails on process death / timeout.
func (b *ServerBridge) waitForReady(ctx context.Context) error {
	deadline := time.Now().Add(b.cfg.readyTimeout())
	catalog := newHandshakeCollector()

	for {
		if !b.supervisor.Handle().Running() {
			return fmt.Errorf("%w: child exited during handshake (code %d)",
				bridgeerr.SetupFailure, b.supervisor.Handle().ExitCode())
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: no Ready within %s", bridgeerr.InitTimeout, b.cfg.readyTimeout())
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", bridgeerr.SetupFailure, ctx.Err())
		default:
		}

		msg, ok := b.nonRtServer.ReadMessage()
		if !ok {
			time.Sleep(2 * time.Millisecond)
			continue
		}

		switch msg.Op {
		case NonRtServerVersion:
			if msg.U32A != APIVersionCurrent {
				return fmt.Errorf("%w: %w: client reports api %d, host is %d",
					bridgeerr.SetupFailure, bridgeerr.VersionMismatch, msg.U32A, APIVersionCurrent)
			}
			b.clientAPIVersion = msg.U32A
		case NonRtServerReady:
			b.params = catalog.catalog()
			b.ports = catalog.portCatalog()
			b.programs = catalog.programCatalog()
			b.plugin = catalog.pluginDescriptor()
			return nil
		case NonRtServerError:
			return fmt.Errorf("%w: %s", bridgeerr.SetupFailure, msg.StrA)
		default:
			catalog.absorb(msg)
		}
	}
}

// ProcessCycle drives one audio cycle from the host's real-time thread.
// It never blocks beyond the process timeout (the configured value, or
// twice that while TimedOut is set) and never blocks on paramMu; MUST be
// called from the audio callback only.
func (b *ServerBridge) ProcessCycle(t BridgeTimeInfo, frames uint32, events []RtControlEvent) {
	if b.State() != StateRunning {
		b.silence(frames)
		return
	}

	if !b.paramMu.TryLock() {
		// Mirrors the try_lock+silence pattern: never block the audio
		// thread on contention with the idle thread.
		b.silence(frames)
		return
	}
	defer b.paramMu.Unlock()

	b.rt.SetTimeInfo(t)
	for _, e := range events {
		e.writeTo(b.rt)
	}
	b.rt.WriteProcess(frames)
	if !b.rt.Commit() {
		serverLog.Warn("rt cycle commit discarded (ring full)", "frames", frames)
	}

	b.rt.PostServerRuns()
	timeout := b.cfg.processTimeout()
	if b.timedOut.Load() {
		timeout *= 2 // spec §4.4: increased during recovery-adjacent conditions
	}
	if !b.rt.WaitClientRuns(timeout) {
		b.timedOut.Store(true)
		serverLog.Error("rt rendezvous timed out, outputting silence", "timeout", timeout)
		b.silence(frames)
		return
	}
	b.timedOut.Store(false)
}

// silence is called whenever a cycle cannot complete the rendezvous;
// the caller (engine-side AudioPool consumer) is expected to have
// already zeroed its output view, or does so itself - ServerBridge
// doesn't own the engine's output buffers, only the shared pool.
func (b *ServerBridge) silence(frames uint32) {
	layout := b.audioPool.Layout()
	for i := 0; i < layout.AudioOut; i++ {
		clearFloats(b.audioPool.AudioOut(i))
	}
	for i := 0; i < layout.CvOut; i++ {
		clearFloats(b.audioPool.CvOut(i))
	}
}

func clearFloats(s []float32) {
	for i := range s {
		s[i] = 0
	}
}

// RtControlEvent is one pre-Process event the host queues for a cycle
// (ControlEventParameter/MidiBank/MidiProgram/AllSoundOff/AllNotesOff,
// or a raw MidiEvent).
type RtControlEvent struct {
	kind    RtOpcode
	time    uint32
	channel uint8
	param   uint16
	value   float32
	port    uint8
	data    []byte
}

func NewControlEventParameter(time uint32, channel uint8, param uint16, value float32) RtControlEvent {
	return RtControlEvent{kind: RtControlEventParameter, time: time, channel: channel, param: param, value: value}
}

func NewMidiEvent(time uint32, port uint8, data []byte) RtControlEvent {
	return RtControlEvent{kind: RtMidiEvent, time: time, port: port, data: data}
}

func (e RtControlEvent) writeTo(c *RtChannel) {
	switch e.kind {
	case RtControlEventParameter:
		c.WriteControlEventParameter(e.time, e.channel, e.param, e.value)
	case RtControlEventMidiBank:
		c.WriteControlEventMidiBank(e.time, e.channel, e.param)
	case RtControlEventMidiProgram:
		c.WriteControlEventMidiProgram(e.time, e.channel, e.param)
	case RtControlEventAllSoundOff:
		c.WriteControlEventAllSoundOff(e.time, e.channel)
	case RtControlEventAllNotesOff:
		c.WriteControlEventAllNotesOff(e.time, e.channel)
	case RtMidiEvent:
		c.WriteMidiEvent(e.time, e.port, e.data)
	}
}

// idleLoop drains NonRtServerChannel and fires HostCallbacks, and posts
// a periodic liveness Ping (SPEC_FULL §10 item 2).
func (b *ServerBridge) idleLoop(ctx context.Context) {
	defer close(b.idleDone)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	pingTicker := time.NewTicker(DefaultIdlePingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			b.nonRtClient.WritePing()
			b.nonRtClient.Commit()
			b.lastPingSent.Store(time.Now().UnixNano())
			if silence := time.Since(time.Unix(0, b.lastPong.Load())); silence > DefaultPingSilenceWindow {
				if b.supervisor.Handle().Running() {
					serverLog.Warn("no pong within silence window, child may be wedged", "silence", silence)
				}
			}
		case <-ticker.C:
			b.drainIdle()
			if !b.supervisor.Handle().Running() && b.State() == StateRunning {
				b.onCrash()
				return
			}
		}
	}
}

func (b *ServerBridge) drainIdle() {
	for {
		msg, ok := b.nonRtServer.ReadMessage()
		if !ok {
			return
		}
		b.dispatch(msg)
	}
}

func (b *ServerBridge) dispatch(msg NonRtServerMessage) {
	cb := b.cfg.Callbacks
	switch msg.Op {
	case NonRtServerParameterValue:
		b.paramMu.Lock()
		if p, err := b.params.At(msg.U32A); err == nil {
			p.Current = msg.F32A
			p.LastReadback = msg.F32A
		}
		b.paramMu.Unlock()
		if cb != nil {
			cb.OnParameterValue(msg.U32A, msg.F32A)
		}
	case NonRtServerParameterValue2:
		if cb != nil {
			cb.OnParameterValue2(msg.U32A, msg.F32A)
		}
	case NonRtServerDefaultValue:
		if cb != nil {
			cb.OnDefaultValue(msg.U32A, msg.F32A)
		}
	case NonRtServerParameterTouch:
		if cb != nil {
			cb.OnParameterTouch(msg.U32A, msg.BoolA)
		}
	case NonRtServerCurrentProgram:
		if cb != nil {
			cb.OnCurrentProgram(msg.I32A)
		}
	case NonRtServerCurrentMidiProgram:
		if cb != nil {
			cb.OnCurrentMidiProgram(msg.I32A)
		}
	case NonRtServerSetParameterText:
		if cb != nil {
			cb.OnParameterText(msg.I32A, msg.StrA)
		}
	case NonRtServerSetCustomData:
		value := msg.StrC
		if msg.BoolA {
			if v, err := ReadCustomDataFile(msg.StrC); err == nil {
				value = v
			} else if cb != nil {
				cb.OnError("custom data file read", err)
			}
		}
		if cb != nil {
			cb.OnCustomData(msg.StrA, msg.StrB, value)
		}
	case NonRtServerSetChunkDataFile:
		// Chunk bytes are consumed by an explicit GetChunkData call
		// path (see ServerBridge.GetChunkData), not a HostCallbacks method:
		// chunk retrieval is request/response, not fire-and-forget.
		b.recordPendingChunkPath(msg.StrA)
	case NonRtServerSaved:
		b.markSaved()
	case NonRtServerUiClosed:
		if cb != nil {
			cb.OnUiClosed()
		}
	case NonRtServerRespEmbedUI:
		if cb != nil {
			cb.OnRespEmbedUI(msg.U64A)
		}
	case NonRtServerResizeEmbedUI:
		if cb != nil {
			cb.OnResizeEmbedUI(msg.U32A, msg.U32B)
		}
	case NonRtServerError:
		if cb != nil {
			cb.OnError(b.cfg.Spawn.PluginLabel, fmt.Errorf("%w: %s", bridgeerr.ProcessCrash, msg.StrA))
		}
	case NonRtServerPong:
		b.lastPong.Store(time.Now().UnixNano())
		if cb != nil {
			cb.OnPong()
		}
	default:
		serverLog.Warn("unexpected opcode on non-rt server channel, desync", "op", msg.Op)
		b.onDesync()
	}
}

func (b *ServerBridge) onDesync() {
	b.setState(StateDead)
	if b.cfg.Callbacks != nil {
		b.cfg.Callbacks.OnError(b.cfg.Spawn.PluginLabel, bridgeerr.ProtocolDesync)
	}
}

func (b *ServerBridge) onCrash() {
	code := b.supervisor.Handle().ExitCode()
	b.setState(StateDead)
	if b.cfg.Callbacks != nil {
		b.cfg.Callbacks.OnError(b.cfg.Spawn.PluginLabel,
			fmt.Errorf("%w: exit code %d", bridgeerr.ProcessCrash, code))
	}
}

// recordPendingChunkPath/markSaved support the request/response
// GetChunkData and PrepareForSave flows.

func (b *ServerBridge) recordPendingChunkPath(path string) {
	b.pendingMu.Lock()
	b.pendingChunkPath = path
	b.pendingMu.Unlock()
}

func (b *ServerBridge) markSaved() {
	b.pendingMu.Lock()
	b.saveDone = true
	b.pendingMu.Unlock()
}

// Close transitions through Closing per spec §4.7: posts Quit on both
// channels, gives the child up to DefaultClosingRtTimeout to flush via
// one more RT rendezvous, then kills if still alive.
func (b *ServerBridge) Close(ctx context.Context) error {
	if b.State() == StateDead {
		return b.releaseRegions()
	}
	b.setState(StateClosing)

	if b.idleCancel != nil {
		b.idleCancel()
		<-b.idleDone
	}

	b.nonRtClient.WriteQuit()
	b.nonRtClient.Commit()
	b.rt.WriteQuit()
	b.rt.Commit()
	b.rt.PostServerRuns()
	b.rt.WaitClientRuns(DefaultClosingRtTimeout)

	if b.supervisor != nil {
		if err := b.supervisor.Shutdown(ctx, DefaultClosingKillGrace); err != nil {
			serverLog.Warn("supervisor shutdown error", "err", err)
		}
	}

	b.setState(StateDead)
	return b.releaseRegions()
}

func (b *ServerBridge) releaseRegions() error {
	var firstErr error
	for _, r := range b.regions {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AudioPool exposes the shared audio buffers so the engine embedding
// ServerBridge can copy its own input/output around each ProcessCycle
// call; ServerBridge only owns the rendezvous, not the engine's graph.
func (b *ServerBridge) AudioPool() *AudioPool { return b.audioPool }

// Parameters returns the server's mirrored parameter catalog, built
// from the handshake burst.
func (b *ServerBridge) Parameters() *ParamCatalog { return b.params }

// Ports returns the port-name catalog reported in the handshake burst
// (spec §4.6 items 4-5): audio/MIDI/CV counts plus per-index names.
func (b *ServerBridge) Ports() PortCatalog { return b.ports }

// Programs returns the program and MIDI-program catalogs reported in
// the handshake burst (spec §4.6 items 7-8).
func (b *ServerBridge) Programs() ProgramCatalog { return b.programs }

// Plugin returns the static plugin identity reported in the handshake
// burst (spec §4.6 items 2-3,9): category, hints, unique id, display
// strings and reported latency.
func (b *ServerBridge) Plugin() PluginDescriptor { return b.plugin }

// APIVersion returns the client's negotiated protocol version.
func (b *ServerBridge) APIVersion() uint32 { return b.clientAPIVersion }

// SetParameterValue sends a non-RT parameter change. Per spec §5,
// callers needing the change to apply before the next process cycle
// must instead queue an RtControlEvent via ProcessCycle; this path may
// land after the next cycle has already started. Refused (no write) if
// the bridge is Dead.
func (b *ServerBridge) SetParameterValue(idx uint32, value float32) error {
	if b.Refused() {
		return bridgeerr.Dead
	}
	b.nonRtClient.Ring().WaitIfDataIsReachingLimit(uint32(NonRtClientPing))
	b.nonRtClient.WriteSetParameterValue(idx, value)
	b.nonRtClient.Commit()
	return nil
}

// SetCustomData sends a custom-data value, routing it through a temp
// file when it exceeds the client's negotiated big-value threshold
// (spec §4.5).
func (b *ServerBridge) SetCustomData(dataType, key, value string) error {
	if b.Refused() {
		return bridgeerr.Dead
	}
	threshold := BigValueThreshold(b.clientAPIVersion)
	if len(value) > threshold {
		path, err := WriteCustomDataFile(b.cfg.Spawn.ShmIDs.AudioPool, value)
		if err != nil {
			return fmt.Errorf("%w: %v", bridgeerr.PayloadOversize, err)
		}
		b.nonRtClient.WriteSetCustomData(dataType, key, path, true)
	} else {
		b.nonRtClient.WriteSetCustomData(dataType, key, value, false)
	}
	b.nonRtClient.Commit()
	return nil
}

// SetChunkData writes chunk bytes to the temp-file convention and
// sends the path (spec §4.5, always via file regardless of size).
func (b *ServerBridge) SetChunkData(data []byte) error {
	if b.Refused() {
		return bridgeerr.Dead
	}
	path, err := WriteChunkFile(b.cfg.Spawn.ShmIDs.AudioPool, data)
	if err != nil {
		return fmt.Errorf("%w: %v", bridgeerr.PayloadOversize, err)
	}
	b.nonRtClient.WriteSetChunkDataFile(path)
	b.nonRtClient.Commit()
	return nil
}

// PrepareForSave asks the child to flush its current custom-data/chunk
// state, then blocks (polling the idle loop's bookkeeping, not the ring
// directly) until Saved arrives or timeout elapses. Refused if the
// bridge has ever hit a fatal error (spec §7: "saving now will lose its
// current settings").
func (b *ServerBridge) PrepareForSave(ctx context.Context, timeout time.Duration) error {
	if b.Refused() {
		return fmt.Errorf("%w: save refused after fatal error", bridgeerr.Dead)
	}
	b.pendingMu.Lock()
	b.saveDone = false
	b.pendingMu.Unlock()

	b.nonRtClient.WritePrepareForSave()
	b.nonRtClient.Commit()

	deadline := time.Now().Add(timeout)
	for {
		b.pendingMu.Lock()
		done := b.saveDone
		b.pendingMu.Unlock()
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: PrepareForSave did not complete within %s", bridgeerr.RtTimeout, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// GetChunkData returns the bytes reported by the most recent
// SetChunkDataFile from the child, reading and deleting the temp file,
// or an error if none is pending.
func (b *ServerBridge) GetChunkData() ([]byte, error) {
	b.pendingMu.Lock()
	path := b.pendingChunkPath
	b.pendingChunkPath = ""
	b.pendingMu.Unlock()
	if path == "" {
		return nil, fmt.Errorf("no chunk data file reported by client")
	}
	return ReadChunkFile(path)
}

// Refused reports whether save/parameter operations must be refused
// because the bridge is Dead (spec §7: "save-state is refused after any
// fatal error"). A set TimedOut flag alone does not cause refusal.
func (b *ServerBridge) Refused() bool {
	return b.State() == StateDead
}
