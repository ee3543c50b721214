package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	ClientBridge: the in-child event loop that services RT
 *		opcodes, drives the actual plugin, and reports state back
 *		to the host (spec §4.8).
 *
 * Description:	Two goroutines mirror the spec's two threads: rtLoop
 *		waits on "server-runs" and runs Process calls under the
 *		rendezvous baton; nonRtLoop drains NonRtClientChannel and
 *		answers on NonRtServerChannel. Shutdown is cooperative via a
 *		context: the process supervisor's own signal handling lives
 *		in cmd/bridge, which cancels this context on SIGTERM/SIGINT
 *		or SIGUSR1 (spec §6).
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/friendsincode/pluginbridge/internal/bridge/bridgeerr"
)

var clientLog = componentLogger("client-bridge")

// ClientBridgeConfig configures the child side of one bridge.
type ClientBridgeConfig struct {
	AudioPool   *AudioPool
	Rt          *RtChannel
	NonRtClient *NonRtClientChannel
	NonRtServer *NonRtServerChannel

	Plugin WrappedPlugin

	APIVersion uint32
	ShmSuffix  string // audio-pool suffix, for the temp-file chunk convention

	// PingSilenceTimeout is how long the non-RT thread tolerates no
	// Ping before exiting (spec §4.8: 30s default).
	PingSilenceTimeout time.Duration
}

// ClientBridge is the child-process counterpart of ServerBridge.
type ClientBridge struct {
	cfg ClientBridgeConfig

	ports  []PortState
	quit   atomic.Bool
	rtDead atomic.Bool

	pingOnOff atomic.Bool
}

// NewClientBridge wraps an already-attached set of channels and a
// wrapped plugin ready to run.
func NewClientBridge(cfg ClientBridgeConfig) *ClientBridge {
	if cfg.PingSilenceTimeout <= 0 {
		cfg.PingSilenceTimeout = 30 * time.Second
	}
	cb := &ClientBridge{cfg: cfg}
	cb.pingOnOff.Store(true)
	return cb
}

// Handshake sends the full introspection burst and Ready (spec §4.6).
func (c *ClientBridge) Handshake() error {
	ns := c.cfg.NonRtServer
	p := c.cfg.Plugin
	desc := p.Describe()

	ns.WriteVersion(c.cfg.APIVersion)
	ns.WritePluginInfo1(uint32(desc.Category), uint32(desc.Hints), desc.OptionsAvailable, desc.OptionsEnabled, desc.UniqueID)
	ns.WritePluginInfo2(desc.RealName, desc.Label, desc.Maker, desc.Copyright)

	ports := p.Ports()
	var audioIn, audioOut, midiIn, midiOut, cvIn, cvOut uint32
	for _, pt := range ports {
		switch pt.Type {
		case PortAudioIn:
			audioIn++
		case PortAudioOut:
			audioOut++
		case PortMidiIn:
			midiIn++
		case PortMidiOut:
			midiOut++
		case PortCvIn:
			cvIn++
		case PortCvOut:
			cvOut++
		}
	}
	ns.WriteAudioCount(audioIn, audioOut)
	ns.WriteMidiCount(midiIn, midiOut)
	ns.WriteCvCount(cvIn, cvOut)

	indices := map[PortType]uint32{}
	for _, pt := range ports {
		idx := indices[pt.Type]
		ns.WritePortName(pt.Type, idx, pt.Name)
		indices[pt.Type]++
		c.ports = append(c.ports, *NewPortState(pt.Name, idx, portDirectionOf(pt.Type), pt.Type))
	}

	params := p.Parameters()
	ns.WriteParameterCount(uint32(len(params)))
	for _, pi := range params {
		ns.WriteParameterData1(pi.Index, pi.Type, pi.Hints, pi.MidiChannel, pi.MappedControlIndex)
		ns.WriteParameterData2(pi.Index, pi.Name, pi.Symbol, pi.Unit)
		ns.WriteParameterRanges(pi.Index, pi.Min, pi.Max, pi.Def, pi.Step, pi.StepSmall, pi.StepLarge, pi.MappedMin, pi.MappedMax)
		ns.WriteParameterValue2(pi.Index, pi.Current)
	}

	programs := p.Programs()
	ns.WriteProgramCount(uint32(len(programs)))
	for _, pr := range programs {
		ns.WriteProgramName(pr.Index, pr.Name)
	}

	midiPrograms := p.MidiPrograms()
	ns.WriteMidiProgramCount(uint32(len(midiPrograms)))
	for _, pr := range midiPrograms {
		ns.WriteMidiProgramData(pr.Index, pr.Bank, pr.Index, pr.Name)
	}

	if desc.Latency != 0 {
		ns.WriteSetLatency(desc.Latency)
	}

	ns.WriteReady()
	return firstFalseIsCommitError(ns.Commit())
}

func firstFalseIsCommitError(committed bool) error {
	if !committed {
		return fmt.Errorf("%w: handshake burst did not fit the non-rt server ring", bridgeerr.PayloadOversize)
	}
	return nil
}

func portDirectionOf(t PortType) PortDirection {
	switch t {
	case PortAudioOut, PortCvOut, PortMidiOut:
		return PortDirectionOutput
	default:
		return PortDirectionInput
	}
}

// Run starts the RT and non-RT loops and blocks until ctx is cancelled
// or the non-RT loop decides to exit (Quit received, or ping silence).
func (c *ClientBridge) Run(ctx context.Context) error {
	rtCtx, cancelRt := context.WithCancel(ctx)
	defer cancelRt()

	rtErr := make(chan error, 1)
	go func() {
		rtErr <- c.rtLoop(rtCtx)
	}()

	err := c.nonRtLoop(ctx)
	cancelRt()
	if rerr := <-rtErr; rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// rtLoop mirrors spec §4.4 step 3: wait on "server-runs", drain the
// cycle's opcodes, run Process on seeing Process, post "client-runs".
func (c *ClientBridge) rtLoop(ctx context.Context) error {
	defer c.rtDead.Store(true)
	const waitTimeout = 5 * time.Second

	for {
		if ctx.Err() != nil {
			return nil
		}
		if !c.cfg.Rt.WaitServerRuns(waitTimeout) {
			continue
		}

		for i := range c.ports {
			c.ports[i].ResetEvents()
		}

		for {
			msg, ok := c.cfg.Rt.ReadMessage()
			if !ok {
				break
			}
			switch msg.Op {
			case RtNull:
			case RtSetAudioPool:
				if err := c.cfg.AudioPool.Resize(AudioPoolLayout{
					AudioIn: c.countPorts(PortAudioIn), AudioOut: c.countPorts(PortAudioOut),
					CvIn: c.countPorts(PortCvIn), CvOut: c.countPorts(PortCvOut),
					BufferFrames: c.cfg.AudioPool.Layout().BufferFrames,
				}); err != nil {
					clientLog.Error("audio pool resize failed", "err", err)
				}
			case RtSetBufferSize:
				if err := c.cfg.Plugin.SetBufferSize(msg.Frames); err != nil {
					clientLog.Error("set buffer size failed", "err", err)
				}
			case RtSetSampleRate:
				if err := c.cfg.Plugin.SetSampleRate(msg.SampleRate); err != nil {
					clientLog.Error("set sample rate failed", "err", err)
				}
			case RtSetOnline:
				// offline-rendering mode toggle: no buffered state here,
				// the flag is consulted by the host's own timing, not
				// the client.
			case RtControlEventParameter:
				if err := c.cfg.Plugin.SetParameterValue(uint32(msg.Param), msg.Value); err != nil {
					clientLog.Error("apply parameter event failed", "param", msg.Param, "err", err)
				}
			case RtControlEventMidiBank, RtControlEventMidiProgram,
				RtControlEventAllSoundOff, RtControlEventAllNotesOff:
				// Bank select, program-change-by-MIDI and all-sound/notes-off
				// are wrapper-specific MIDI housekeeping; a real per-format
				// wrapper folds these into its own MIDI event queue. The
				// core only guarantees the event is drained off the ring.
			case RtMidiEvent:
				c.queueMidiIn(msg)
			case RtProcess:
				c.runProcess(msg.Frames)
			case RtQuit:
				c.cfg.Rt.SetProcFlags(1)
				return nil
			default:
				clientLog.Error("unexpected rt opcode, desync", "op", msg.Op)
				return fmt.Errorf("%w: rt opcode %d", bridgeerr.ProtocolDesync, msg.Op)
			}
		}

		c.cfg.Rt.PostClientRuns()
	}
}

func (c *ClientBridge) countPorts(t PortType) int {
	n := 0
	for _, p := range c.ports {
		if p.Type == t {
			n++
		}
	}
	return n
}

func (c *ClientBridge) queueMidiIn(msg RtMessage) {
	for i := range c.ports {
		p := &c.ports[i]
		if p.Type == PortMidiIn && p.Index == uint32(msg.Port) {
			_ = p.QueueEvent(MidiInEvent{Time: msg.Time, Port: msg.Port, Data: msg.MidiData})
			return
		}
	}
}

func (c *ClientBridge) runProcess(frames uint32) {
	layout := c.cfg.AudioPool.Layout()
	bufs := AudioCycleBuffers{}
	for i := 0; i < layout.AudioIn; i++ {
		bufs.AudioIn = append(bufs.AudioIn, c.cfg.AudioPool.AudioIn(i))
	}
	for i := 0; i < layout.AudioOut; i++ {
		bufs.AudioOut = append(bufs.AudioOut, c.cfg.AudioPool.AudioOut(i))
	}
	for i := 0; i < layout.CvIn; i++ {
		bufs.CvIn = append(bufs.CvIn, c.cfg.AudioPool.CvIn(i))
	}
	for i := 0; i < layout.CvOut; i++ {
		bufs.CvOut = append(bufs.CvOut, c.cfg.AudioPool.CvOut(i))
	}

	var midiIn []MidiInEvent
	for _, p := range c.ports {
		if p.Type == PortMidiIn {
			midiIn = append(midiIn, p.Events()...)
		}
	}
	t := c.cfg.Rt.TimeInfo()
	midiOut, err := c.cfg.Plugin.Process(t, bufs, bufs, midiIn)
	if err != nil {
		clientLog.Error("plugin process failed", "err", err)
		midiOut = nil
	}
	c.cfg.Rt.WriteMidiOut(midiOut)
}

// nonRtLoop mirrors spec §4.8's non-RT thread: drains
// NonRtClientChannel, mutates plugin state synchronously, replies on
// NonRtServerChannel.
func (c *ClientBridge) nonRtLoop(ctx context.Context) error {
	lastPing := time.Now()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if c.rtDead.Load() {
			c.cfg.NonRtServer.WriteError(fmt.Sprintf("%v: rt thread exited", bridgeerr.ProcessCrash))
			c.cfg.NonRtServer.Commit()
			return fmt.Errorf("%w: rt thread exited", bridgeerr.ProcessCrash)
		}

		for {
			msg, ok := c.cfg.NonRtClient.ReadMessage()
			if !ok {
				break
			}
			if msg.Op > NonRtClientQuit {
				return fmt.Errorf("%w: non-rt opcode %d", bridgeerr.ProtocolDesync, msg.Op)
			}
			if msg.Op == NonRtClientPing {
				lastPing = time.Now()
			}
			if c.handleNonRt(msg) {
				return nil // Quit
			}
		}

		if c.pingOnOff.Load() && time.Since(lastPing) > c.cfg.PingSilenceTimeout {
			return fmt.Errorf("no ping received within %s, exiting", c.cfg.PingSilenceTimeout)
		}
	}
}

// handleNonRt applies one host->child command and replies as needed.
// Returns true if the caller should exit (Quit received).
func (c *ClientBridge) handleNonRt(msg NonRtClientMessage) bool {
	p := c.cfg.Plugin
	ns := c.cfg.NonRtServer

	switch msg.Op {
	case NonRtClientVersion:
		// Read from the channel the opcode arrived on, per spec §9's
		// resolved read-channel-confusion open question - never
		// NonRtServerChannel here.
		c.cfg.APIVersion = msg.U32A
	case NonRtClientInitialSetup:
		if err := p.SetBufferSize(msg.U32A); err != nil {
			clientLog.Error("set buffer size failed", "err", err)
			ns.WriteError(fmt.Sprintf("set buffer size: %v", err))
			ns.Commit()
		}
		if err := p.SetSampleRate(msg.F64A); err != nil {
			clientLog.Error("set sample rate failed", "err", err)
			ns.WriteError(fmt.Sprintf("set sample rate: %v", err))
			ns.Commit()
		}
	case NonRtClientActivate:
		if err := p.Activate(); err != nil {
			clientLog.Error("activate failed", "err", err)
			ns.WriteError(fmt.Sprintf("activate: %v", err))
			ns.Commit()
		}
	case NonRtClientDeactivate:
		if err := p.Deactivate(); err != nil {
			clientLog.Error("deactivate failed", "err", err)
			ns.WriteError(fmt.Sprintf("deactivate: %v", err))
			ns.Commit()
		}
	case NonRtClientSetParameterValue:
		if err := p.SetParameterValue(msg.U32A, msg.F32A); err != nil {
			clientLog.Error("set parameter value failed", "index", msg.U32A, "err", err)
			ns.WriteError(fmt.Sprintf("set parameter %d: %v", msg.U32A, err))
			ns.Commit()
		}
	case NonRtClientSetProgram:
		if err := p.SetProgram(msg.I32A); err != nil {
			clientLog.Error("set program failed", "index", msg.I32A, "err", err)
			ns.WriteError(fmt.Sprintf("set program %d: %v", msg.I32A, err))
			ns.Commit()
		}
	case NonRtClientSetMidiProgram:
		if err := p.SetMidiProgram(msg.I32A); err != nil {
			clientLog.Error("set midi program failed", "index", msg.I32A, "err", err)
			ns.WriteError(fmt.Sprintf("set midi program %d: %v", msg.I32A, err))
			ns.Commit()
		}
	case NonRtClientSetCustomData:
		value := msg.StrC
		if msg.BoolA {
			if v, err := ReadCustomDataFile(msg.StrC); err == nil {
				value = v
			} else {
				clientLog.Error("custom data file read failed", "err", err)
				ns.WriteError(fmt.Sprintf("custom data file read: %v", err))
				ns.Commit()
				return false
			}
		}
		if err := p.SetCustomData(msg.StrA, msg.StrB, value); err != nil {
			clientLog.Error("set custom data failed", "type", msg.StrA, "key", msg.StrB, "err", err)
			ns.WriteError(fmt.Sprintf("set custom data %s/%s: %v", msg.StrA, msg.StrB, err))
			ns.Commit()
		}
	case NonRtClientSetChunkDataFile:
		if raw, err := ReadChunkFile(msg.StrA); err == nil {
			if err := p.RestoreState(raw); err != nil {
				clientLog.Error("restore chunk state failed", "err", err)
				ns.WriteError(fmt.Sprintf("restore state: %v", err))
				ns.Commit()
			}
		} else {
			clientLog.Error("chunk file read failed", "err", err)
			ns.WriteError(fmt.Sprintf("%v: %v", bridgeerr.PayloadOversize, err))
			ns.Commit()
		}
	case NonRtClientPrepareForSave:
		c.emitSaveBurst()
	case NonRtClientPing:
		ns.WritePong()
		ns.Commit()
	case NonRtClientPingOnOff:
		c.pingOnOff.Store(msg.BoolA)
	case NonRtClientGetParameterText:
		// A real wrapper formats the plugin's own text; the core only
		// guarantees the reply shape.
		ns.WriteSetParameterText(msg.I32A, "")
		ns.Commit()
	case NonRtClientQuit:
		c.quit.Store(true)
		return true
	}
	return false
}

// emitSaveBurst asks the plugin for its current state and reports it
// via SetChunkDataFile, then Saved (spec §4.5 PrepareForSave).
func (c *ClientBridge) emitSaveBurst() {
	ns := c.cfg.NonRtServer
	chunk, err := c.cfg.Plugin.SaveState()
	if err != nil {
		ns.WriteError(fmt.Sprintf("save state: %v", err))
		ns.Commit()
		return
	}
	if len(chunk) > 0 {
		path, werr := WriteChunkFile(c.cfg.ShmSuffix, chunk)
		if werr != nil {
			ns.WriteError(fmt.Sprintf("%v: %v", bridgeerr.PayloadOversize, werr))
			ns.Commit()
			return
		}
		ns.WriteSetChunkDataFile(path)
		ns.Commit()
	}
	ns.WriteSaved()
	ns.Commit()
}
