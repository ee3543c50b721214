// Package hostconfig loads the host demo's optional YAML engine-option
// file, the way deviceid.go's tocalls.yaml loader reads a small config
// file once at startup (SPEC_FULL §0 Ambient Stack, Configuration).
package hostconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/pluginbridge/internal/bridge"
)

// Config is the on-disk shape of a bridgehost engine-option file:
//
//	sample_rate: 48000
//	buffer_frames: 256
//	options:
//	  prefer_ui_bridges: "false"
//	  plugin_path: "/usr/lib/lv2"
type Config struct {
	SampleRate   float64           `yaml:"sample_rate"`
	BufferFrames uint32            `yaml:"buffer_frames"`
	Options      map[string]string `yaml:"options"`
}

// Load reads and parses a Config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hostconfig: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("hostconfig: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// EngineOptions flattens the options map into the slice
// SpawnConfig.Options expects (ENGINE_OPTION_<KEY>=<value> per entry).
// Entries come out in map iteration order, which is not defined.
func (c *Config) EngineOptions() []bridge.EngineOption {
	opts := make([]bridge.EngineOption, 0, len(c.Options))
	for k, v := range c.Options {
		opts = append(opts, bridge.EngineOption{Key: k, Value: v})
	}
	return opts
}
