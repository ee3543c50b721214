package bridge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpawnConfigArgvPlain(t *testing.T) {
	cfg := SpawnConfig{
		BridgeBinary: "bridge-lv2",
		PluginType:   PluginTypeLV2,
		Filename:     "/usr/lib/lv2/amp.lv2",
		PluginLabel:  "amp",
		UniqueID:     99,
	}
	assert.Equal(t, []string{"bridge-lv2", "LV2", "/usr/lib/lv2/amp.lv2", "amp", "99"}, cfg.argv())
}

func TestSpawnConfigArgvEmptyFilenameBecomesPlaceholder(t *testing.T) {
	cfg := SpawnConfig{BridgeBinary: "bridge-jack", PluginType: PluginTypeJACK}
	argv := cfg.argv()
	assert.Equal(t, "(none)", argv[2])
}

func TestSpawnConfigArgvPrependsWineForExeBinary(t *testing.T) {
	cfg := SpawnConfig{
		BridgeBinary: "bridge-vst2.exe",
		PluginType:   PluginTypeVST2,
		Filename:     "C:\\plugins\\synth.dll",
	}
	require := cfg.argv()
	assert.Equal(t, "wine", require[0])
	assert.Equal(t, "bridge-vst2.exe", require[1])
}

func TestSpawnConfigArgvUsesConfiguredWineExecutable(t *testing.T) {
	cfg := SpawnConfig{
		BridgeBinary:   "bridge-vst2.EXE",
		WineExecutable: "wine64",
	}
	assert.Equal(t, "wine64", cfg.argv()[0])
}

func TestSpawnConfigNeedsWineIsCaseInsensitive(t *testing.T) {
	assert.True(t, SpawnConfig{BridgeBinary: "bridge-vst2.EXE"}.needsWine())
	assert.False(t, SpawnConfig{BridgeBinary: "bridge-lv2"}.needsWine())
}

func TestSpawnConfigWinePrefixExplicitWins(t *testing.T) {
	cfg := SpawnConfig{WinePrefix: "/home/x/.wine-custom", Filename: "/plugins/foo.dll"}
	assert.Equal(t, "/home/x/.wine-custom", cfg.winePrefix())
}

func TestSpawnConfigWinePrefixDerivedFromFilename(t *testing.T) {
	cfg := SpawnConfig{Filename: "/home/x/plugins/synth.dll"}
	assert.Equal(t, "/home/x/plugins/.wineprefix", cfg.winePrefix())
}

func TestSpawnConfigWinePrefixEmptyWithoutFilename(t *testing.T) {
	cfg := SpawnConfig{}
	assert.Equal(t, "", cfg.winePrefix())
}

func TestSpawnConfigEnvIncludesShmIDsAndOptions(t *testing.T) {
	cfg := SpawnConfig{
		ShmIDs:  ShmIDs{AudioPool: "au0001", RtClient: "rt0001", NonRtClient: "nc0001", NonRtServer: "ns0001"},
		Options: []EngineOption{{Key: "sample_rate", Value: "48000"}, {Key: "buffer_size", Value: "128"}},
	}
	env := cfg.env()

	var sawShmIDs, sawSampleRate, sawBufferSize bool
	for _, kv := range env {
		if strings.HasPrefix(kv, "ENGINE_BRIDGE_SHM_IDS=") {
			sawShmIDs = true
			assert.Equal(t, "ENGINE_BRIDGE_SHM_IDS="+cfg.ShmIDs.Encode(), kv)
		}
		if kv == "ENGINE_OPTION_SAMPLE_RATE=48000" {
			sawSampleRate = true
		}
		if kv == "ENGINE_OPTION_BUFFER_SIZE=128" {
			sawBufferSize = true
		}
	}
	assert.True(t, sawShmIDs)
	assert.True(t, sawSampleRate)
	assert.True(t, sawBufferSize)
}

func TestSpawnConfigEnvSetsWinePrefixOnlyWhenWineNeeded(t *testing.T) {
	wine := SpawnConfig{BridgeBinary: "bridge-vst2.exe", Filename: "/plugins/x/synth.dll"}
	env := wine.env()
	found := false
	for _, kv := range env {
		if strings.HasPrefix(kv, "WINEPREFIX=") {
			found = true
			assert.Equal(t, "WINEPREFIX=/plugins/x/.wineprefix", kv)
		}
	}
	assert.True(t, found)

	native := SpawnConfig{BridgeBinary: "bridge-lv2"}
	for _, kv := range native.env() {
		assert.False(t, strings.HasPrefix(kv, "WINEPREFIX="))
	}
}
