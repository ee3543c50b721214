// Command bridgehost is the host-side demo harness: it spawns a
// cmd/bridge child, wires a live portaudio stream to the bridge's
// AudioPool each callback, and prints the asynchronous events the
// child reports, so the IPC core's wiring can be exercised end to end
// without a full plugin-host graph.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
	"github.com/spf13/pflag"

	"github.com/friendsincode/pluginbridge/internal/bridge"
	"github.com/friendsincode/pluginbridge/internal/hostconfig"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		bridgeBinary = pflag.String("bridge-binary", "bridge", "path to the cmd/bridge child executable")
		pluginType   = pflag.String("plugin-type", "LV2", "plugin type token passed to the child (LV2, VST2, VST3, ...)")
		filename     = pflag.String("filename", "", "plugin file path, if any")
		label        = pflag.String("label", "demo", "plugin label")
		uniqueID     = pflag.Int64("unique-id", 1, "plugin unique id")
		bufferFrames = pflag.Uint32("buffer-frames", 512, "audio cycle size in frames")
		sampleRate   = pflag.Float64("sample-rate", 48000, "sample rate in Hz")
		configPath   = pflag.String("config", "", "optional YAML engine-option config file")
		logLevel     = pflag.String("log-level", "info", "debug, info, warn, or error")
		duration     = pflag.Duration("duration", 5*time.Second, "how long to run the demo stream")
	)
	pflag.Parse()

	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		bridge.SetGlobalLevel(lvl)
	}

	var options []bridge.EngineOption
	if *configPath != "" {
		cfg, err := hostconfig.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config %q: %w", *configPath, err)
		}
		options = cfg.EngineOptions()
	}

	callbacks := &logCallbacks{log: log.Default().With("component", "host-demo")}

	sb := bridge.NewServerBridge(bridge.ServerBridgeConfig{
		Spawn: bridge.SpawnConfig{
			BridgeBinary: *bridgeBinary,
			PluginType:   bridge.PluginType(*pluginType),
			Filename:     *filename,
			PluginLabel:  *label,
			UniqueID:     *uniqueID,
			Options:      options,
		},
		RtRingCapacity:      128 * 1024,
		NonRtClientCapacity: 128 * 1024,
		NonRtServerCapacity: 128 * 1024,
		InitialLayout: bridge.AudioPoolLayout{
			AudioIn: 2, AudioOut: 2, BufferFrames: int(*bufferFrames),
		},
		SampleRate: *sampleRate,
		Callbacks:  callbacks,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := sb.Start(ctx); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}
	defer sb.Close(context.Background())

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	stream, err := newDemoStream(sb, *bufferFrames, *sampleRate)
	if err != nil {
		return fmt.Errorf("open portaudio stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start portaudio stream: %w", err)
	}
	defer stream.Stop()

	select {
	case <-time.After(*duration):
	case <-ctx.Done():
	}
	return nil
}

// demoStream pumps a portaudio duplex callback straight through
// ServerBridge.ProcessCycle: the in/out slices portaudio hands us are
// copied to/from the bridge's AudioPool view around each cycle.
type demoStream struct {
	*portaudio.Stream
	bridge *bridge.ServerBridge
	frames uint32
}

func newDemoStream(sb *bridge.ServerBridge, frames uint32, sampleRate float64) (*demoStream, error) {
	d := &demoStream{bridge: sb, frames: frames}

	stream, err := portaudio.OpenDefaultStream(2, 2, sampleRate, int(frames), func(in, out [][]float32) {
		d.onAudio(in, out)
	})
	if err != nil {
		return nil, err
	}
	d.Stream = stream
	return d, nil
}

func (d *demoStream) onAudio(in, out [][]float32) {
	pool := d.bridge.AudioPool()
	layout := pool.Layout()
	for ch := 0; ch < layout.AudioIn && ch < len(in); ch++ {
		copy(pool.AudioIn(ch), in[ch])
	}

	t := bridge.BridgeTimeInfo{Playing: true, Frame: 0, Usecs: uint64(time.Now().UnixMicro())}
	d.bridge.ProcessCycle(t, d.frames, nil)

	for ch := range out {
		if ch < layout.AudioOut {
			copy(out[ch], pool.AudioOut(ch))
		} else {
			for i := range out[ch] {
				out[ch][i] = 0
			}
		}
	}
}

// logCallbacks is a HostCallbacks that just logs every event, enough to
// prove the NonRtServerChannel dispatch path is wired correctly.
type logCallbacks struct {
	log *log.Logger
}

func (c *logCallbacks) OnParameterValue(idx uint32, value float32) {
	c.log.Info("parameter value", "idx", idx, "value", value)
}
func (c *logCallbacks) OnParameterValue2(idx uint32, value float32) {
	c.log.Debug("parameter value (informational)", "idx", idx, "value", value)
}
func (c *logCallbacks) OnDefaultValue(idx uint32, value float32) {
	c.log.Debug("default value", "idx", idx, "value", value)
}
func (c *logCallbacks) OnParameterTouch(idx uint32, touched bool) {
	c.log.Debug("parameter touch", "idx", idx, "touched", touched)
}
func (c *logCallbacks) OnCurrentProgram(index int32)     { c.log.Info("current program", "index", index) }
func (c *logCallbacks) OnCurrentMidiProgram(index int32) { c.log.Info("current midi program", "index", index) }
func (c *logCallbacks) OnParameterText(idx int32, text string) {
	c.log.Debug("parameter text", "idx", idx, "text", text)
}
func (c *logCallbacks) OnCustomData(dataType, key, value string) {
	c.log.Info("custom data", "type", dataType, "key", key)
}
func (c *logCallbacks) OnUiClosed() { c.log.Info("ui closed") }
func (c *logCallbacks) OnRespEmbedUI(handle uint64) {
	c.log.Info("embed ui handle", "handle", handle)
}
func (c *logCallbacks) OnResizeEmbedUI(w, h uint32) {
	c.log.Info("resize embed ui", "w", w, "h", h)
}
func (c *logCallbacks) OnError(name string, err error) {
	c.log.Error("bridge error", "name", name, "err", err)
}
func (c *logCallbacks) OnPong() { c.log.Debug("pong") }
