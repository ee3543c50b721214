package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNonRtServerChannel(t *testing.T, capacity uint32) *NonRtServerChannel {
	t.Helper()
	region := &Region{data: make([]byte, NonRtServerChannelByteSize(capacity))}
	c, err := NewNonRtServerChannel(region)
	require.NoError(t, err)
	return c
}

func TestNonRtServerPluginInfoRoundTrip(t *testing.T) {
	c := newTestNonRtServerChannel(t, 512)
	c.WritePluginInfo1(uint32(CategorySynth), uint32(HintIsRtSafe), 0, 0, 42)
	c.WritePluginInfo2("Real Name", "label", "Maker", "(c) 2026")
	require.True(t, c.Commit())

	m1, ok := c.ReadMessage()
	require.True(t, ok)
	assert.Equal(t, NonRtServerPluginInfo1, m1.Op)
	assert.Equal(t, int64(42), m1.I64A)

	m2, ok := c.ReadMessage()
	require.True(t, ok)
	assert.Equal(t, NonRtServerPluginInfo2, m2.Op)
	assert.Equal(t, "Real Name", m2.StrA)
	assert.Equal(t, "Maker", m2.StrC)
}

func TestNonRtServerParameterRangesRoundTrip(t *testing.T) {
	c := newTestNonRtServerChannel(t, 256)
	c.WriteParameterRanges(0, 0, 1, 0.5, 0.01, 0.001, 0.1, 0, 1)
	require.True(t, c.Commit())

	m, ok := c.ReadMessage()
	require.True(t, ok)
	assert.Equal(t, NonRtServerParameterRanges, m.Op)
	assert.Equal(t, [8]float32{0, 1, 0.5, 0.01, 0.001, 0.1, 0, 1}, m.Ranges)
}

func TestNonRtServerUiClosedHasNoPayloadAndDoesNotCollideWithProgramName(t *testing.T) {
	c := newTestNonRtServerChannel(t, 256)
	c.WriteUiClosed()
	c.WriteProgramName(2, "Lead")
	require.True(t, c.Commit())

	m1, ok := c.ReadMessage()
	require.True(t, ok)
	assert.Equal(t, NonRtServerUiClosed, m1.Op)

	m2, ok := c.ReadMessage()
	require.True(t, ok)
	assert.Equal(t, NonRtServerProgramName, m2.Op)
	assert.Equal(t, uint32(2), m2.U32A)
	assert.Equal(t, "Lead", m2.StrA)
}
