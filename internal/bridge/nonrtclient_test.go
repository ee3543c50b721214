package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNonRtClientChannel(t *testing.T, capacity uint32) *NonRtClientChannel {
	t.Helper()
	region := &Region{data: make([]byte, NonRtClientChannelByteSize(capacity))}
	c, err := NewNonRtClientChannel(region)
	require.NoError(t, err)
	return c
}

func TestNonRtClientVersionRoundTrip(t *testing.T) {
	c := newTestNonRtClientChannel(t, 256)
	c.WriteVersion(7)
	require.True(t, c.Commit())

	msg, ok := c.ReadMessage()
	require.True(t, ok)
	assert.Equal(t, NonRtClientVersion, msg.Op)
	assert.Equal(t, uint32(7), msg.U32A)
}

func TestNonRtClientSetCustomDataRoundTrip(t *testing.T) {
	c := newTestNonRtClientChannel(t, 512)
	c.WriteSetCustomData("string", "mykey", "myvalue", false)
	require.True(t, c.Commit())

	msg, ok := c.ReadMessage()
	require.True(t, ok)
	assert.Equal(t, NonRtClientSetCustomData, msg.Op)
	assert.Equal(t, "string", msg.StrA)
	assert.Equal(t, "mykey", msg.StrB)
	assert.False(t, msg.BoolA)
	assert.Equal(t, "myvalue", msg.StrC)
}

func TestNonRtClientMultipleMessagesDrain(t *testing.T) {
	c := newTestNonRtClientChannel(t, 256)
	c.WriteActivate()
	c.WriteSetParameterValue(3, 0.5)
	c.WriteQuit()
	require.True(t, c.Commit())

	var ops []NonRtClientOpcode
	for {
		msg, ok := c.ReadMessage()
		if !ok {
			break
		}
		ops = append(ops, msg.Op)
	}
	assert.Equal(t, []NonRtClientOpcode{NonRtClientActivate, NonRtClientSetParameterValue, NonRtClientQuit}, ops)
}

func TestNonRtClientEmptyRingReadsFalse(t *testing.T) {
	c := newTestNonRtClientChannel(t, 64)
	_, ok := c.ReadMessage()
	assert.False(t, ok)
}
