// Package wrapper provides the reference WrappedPlugin used by
// cmd/bridge. Parsing an actual LV2/VST2/VST3/LADSPA/DSSI binary is out
// of scope for the bridge core (spec.md's Non-goals exclude the
// plugin-format side entirely); Load always returns a simple
// audio-passthrough plugin so cmd/bridge has something real to drive
// through the full handshake/process/teardown lifecycle.
package wrapper

import (
	"fmt"

	"github.com/friendsincode/pluginbridge/internal/bridge"
)

// Passthrough is a minimal WrappedPlugin: one gain parameter, stereo
// audio in/out copied through (scaled by gain), no CV/MIDI ports, no
// programs. It exists to exercise ClientBridge end to end.
type Passthrough struct {
	label    string
	uniqueID int64

	active       bool
	bufferFrames uint32
	sampleRate   float64

	gain float32

	custom map[string]string
}

// Load returns the reference plugin for any requested plugin type.
// label and uniqueID are carried through into the handshake burst's
// PluginInfo1/2 so the host sees an identity matching what it asked to
// bridge, even though no format-specific binary is parsed; filename
// only appears in the error returned for an empty label.
func Load(pluginType bridge.PluginType, filename, label string, uniqueID int64) (bridge.WrappedPlugin, error) {
	if label == "" {
		return nil, fmt.Errorf("wrapper: plugin label must not be empty (type %s, file %q)", pluginType, filename)
	}
	return &Passthrough{label: label, uniqueID: uniqueID, gain: 1.0, custom: map[string]string{}}, nil
}

func (p *Passthrough) Describe() bridge.PluginDescriptor {
	return bridge.PluginDescriptor{
		Category:         bridge.CategoryUtility,
		Hints:            bridge.HintIsRtSafe,
		OptionsAvailable: 0,
		OptionsEnabled:   0,
		UniqueID:         p.uniqueID,
		RealName:         p.label,
		Label:            p.label,
		Maker:            "pluginbridge",
		Copyright:        "",
	}
}

func (p *Passthrough) Ports() []bridge.PortDescriptor {
	return []bridge.PortDescriptor{
		{Type: bridge.PortAudioIn, Name: "in_left"},
		{Type: bridge.PortAudioIn, Name: "in_right"},
		{Type: bridge.PortAudioOut, Name: "out_left"},
		{Type: bridge.PortAudioOut, Name: "out_right"},
	}
}

func (p *Passthrough) Parameters() []bridge.ParamInfo {
	return []bridge.ParamInfo{{
		Index: 0, Type: bridge.ParamInput, Hints: bridge.ParamHintAutomatable,
		Min: 0, Max: 2, Def: 1, Step: 0.01, StepSmall: 0.001, StepLarge: 0.1,
		Current: p.gain, Name: "Gain", Symbol: "gain", Unit: "",
	}}
}

func (p *Passthrough) Programs() []bridge.ProgramDescriptor     { return nil }
func (p *Passthrough) MidiPrograms() []bridge.ProgramDescriptor { return nil }

func (p *Passthrough) Activate() error   { p.active = true; return nil }
func (p *Passthrough) Deactivate() error { p.active = false; return nil }

func (p *Passthrough) SetBufferSize(frames uint32) error {
	p.bufferFrames = frames
	return nil
}

func (p *Passthrough) SetSampleRate(sampleRate float64) error {
	p.sampleRate = sampleRate
	return nil
}

func (p *Passthrough) SetParameterValue(index uint32, value float32) error {
	if index != 0 {
		return fmt.Errorf("passthrough: no such parameter %d", index)
	}
	if value < 0 {
		value = 0
	}
	if value > 2 {
		value = 2
	}
	p.gain = value
	return nil
}

func (p *Passthrough) SetProgram(index int32) error     { return fmt.Errorf("passthrough: no programs") }
func (p *Passthrough) SetMidiProgram(index int32) error { return fmt.Errorf("passthrough: no midi programs") }

func (p *Passthrough) Process(t bridge.BridgeTimeInfo, in, out bridge.AudioCycleBuffers, midiIn []bridge.MidiInEvent) ([]bridge.MidiOutRecord, error) {
	for ch := range out.AudioOut {
		if ch < len(in.AudioIn) {
			src, dst := in.AudioIn[ch], out.AudioOut[ch]
			n := len(dst)
			if len(src) < n {
				n = len(src)
			}
			for i := 0; i < n; i++ {
				dst[i] = src[i] * p.gain
			}
		}
	}
	return nil, nil
}

func (p *Passthrough) SaveState() ([]byte, error) {
	return fmt.Appendf(nil, "gain=%f", p.gain), nil
}

func (p *Passthrough) RestoreState(chunk []byte) error {
	var gain float32
	if _, err := fmt.Sscanf(string(chunk), "gain=%f", &gain); err != nil {
		return fmt.Errorf("passthrough: restore state: %w", err)
	}
	p.gain = gain
	return nil
}

func (p *Passthrough) SetCustomData(dataType, key, value string) error {
	p.custom[key] = value
	return nil
}
