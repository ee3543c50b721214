// Command bridge is the child-process entry point: it attaches to the
// four shared-memory regions a ServerBridge already created, loads the
// requested plugin format's wrapper, runs the handshake burst, and then
// services the bridge until told to quit (spec §6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/friendsincode/pluginbridge/internal/bridge"
	"github.com/friendsincode/pluginbridge/internal/wrapper"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if len(os.Args) < 5 {
		return fmt.Errorf("usage: %s <plugin-type> <filename> <plugin-label> <unique-id>", os.Args[0])
	}
	pluginType := bridge.PluginType(os.Args[1])
	filename := os.Args[2]
	if filename == "(none)" {
		filename = ""
	}
	label := os.Args[3]
	uniqueID, err := strconv.ParseInt(os.Args[4], 10, 64)
	if err != nil {
		return fmt.Errorf("unique id %q: %w", os.Args[4], err)
	}

	shmIDs, err := bridge.DecodeShmIDs(os.Getenv("ENGINE_BRIDGE_SHM_IDS"))
	if err != nil {
		return fmt.Errorf("ENGINE_BRIDGE_SHM_IDS: %w", err)
	}

	apRegion, err := bridge.Attach(bridge.FullName(bridge.PrefixAudioPool, shmIDs.AudioPool))
	if err != nil {
		return err
	}
	rtRegion, err := bridge.Attach(bridge.FullName(bridge.PrefixRtClient, shmIDs.RtClient))
	if err != nil {
		return err
	}
	nrcRegion, err := bridge.Attach(bridge.FullName(bridge.PrefixNonRtClient, shmIDs.NonRtClient))
	if err != nil {
		return err
	}
	nrsRegion, err := bridge.Attach(bridge.FullName(bridge.PrefixNonRtServer, shmIDs.NonRtServer))
	if err != nil {
		return err
	}

	// The server already mapped and sized these regions before spawning
	// us; our Map calls below just need to agree on the same sizes,
	// which we learn from the handshake (audio pool) or from fixed
	// ring capacities baked into this binary (the three channels).
	const ringCapacity = 128 * 1024
	if err := rtRegion.Map(bridge.RtChannelByteSize(ringCapacity)); err != nil {
		return err
	}
	if err := nrcRegion.Map(bridge.NonRtClientChannelByteSize(ringCapacity)); err != nil {
		return err
	}
	if err := nrsRegion.Map(bridge.NonRtServerChannelByteSize(ringCapacity)); err != nil {
		return err
	}

	rt, err := bridge.NewRtChannel(rtRegion)
	if err != nil {
		return err
	}
	nonRtClient, err := bridge.NewNonRtClientChannel(nrcRegion)
	if err != nil {
		return err
	}
	nonRtServer, err := bridge.NewNonRtServerChannel(nrsRegion)
	if err != nil {
		return err
	}
	audioPool := bridge.NewAudioPool(apRegion)

	plugin, err := wrapper.Load(pluginType, filename, label, uniqueID)
	if err != nil {
		return fmt.Errorf("load plugin: %w", err)
	}

	// The host writes Version + InitialSetup before spawning us; drain
	// those two messages to learn the negotiated API version and the
	// initial buffer size/sample rate before mapping the audio pool,
	// which depends on buffer size.
	var apiVersion uint32
	var bufferFrames uint32
	var sampleRate float64
	for i := 0; i < 2; i++ {
		msg, ok := nonRtClient.ReadMessage()
		if !ok {
			return fmt.Errorf("expected handshake message %d from host, ring empty", i)
		}
		switch msg.Op {
		case bridge.NonRtClientVersion:
			apiVersion = msg.U32A
		case bridge.NonRtClientInitialSetup:
			bufferFrames = msg.U32A
			sampleRate = msg.F64A
		default:
			return fmt.Errorf("expected Version/InitialSetup, got %s", msg.Op)
		}
	}
	if err := plugin.SetBufferSize(bufferFrames); err != nil {
		return fmt.Errorf("set buffer size: %w", err)
	}
	if err := plugin.SetSampleRate(sampleRate); err != nil {
		return fmt.Errorf("set sample rate: %w", err)
	}

	ports := plugin.Ports()
	var audioIn, audioOut, cvIn, cvOut int
	for _, p := range ports {
		switch p.Type {
		case bridge.PortAudioIn:
			audioIn++
		case bridge.PortAudioOut:
			audioOut++
		case bridge.PortCvIn:
			cvIn++
		case bridge.PortCvOut:
			cvOut++
		}
	}
	if err := audioPool.Resize(bridge.AudioPoolLayout{
		AudioIn: audioIn, AudioOut: audioOut, CvIn: cvIn, CvOut: cvOut, BufferFrames: int(bufferFrames),
	}); err != nil {
		return fmt.Errorf("audio pool map: %w", err)
	}

	cb := bridge.NewClientBridge(bridge.ClientBridgeConfig{
		AudioPool:   audioPool,
		Rt:          rt,
		NonRtClient: nonRtClient,
		NonRtServer: nonRtServer,
		Plugin:      plugin,
		APIVersion:  apiVersion,
		ShmSuffix:   shmIDs.AudioPool,
	})

	if err := cb.Handshake(); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR1)
	defer stop()

	return cb.Run(ctx)
}
