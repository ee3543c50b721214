package bridge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestAudioPool(t *testing.T) *AudioPool {
	t.Helper()
	region, err := CreateTemp(PrefixAudioPool)
	require.NoError(t, err)
	t.Cleanup(func() { _ = region.Close() })
	return NewAudioPool(region)
}

func TestAudioPoolLayoutOffsets(t *testing.T) {
	layout := AudioPoolLayout{AudioIn: 2, AudioOut: 2, CvIn: 1, CvOut: 1, BufferFrames: 64}
	require.Equal(t, 6, layout.TotalChannels())
	require.Equal(t, 6*64, layout.TotalSamples())
	require.Equal(t, 6*64*4, layout.ByteSize())
}

func TestAudioPoolResizeAndChannelViews(t *testing.T) {
	pool := newTestAudioPool(t)
	layout := AudioPoolLayout{AudioIn: 2, AudioOut: 2, CvIn: 1, CvOut: 1, BufferFrames: 8}
	require.NoError(t, pool.Resize(layout))

	for i := range layout.AudioIn {
		in := pool.AudioIn(i)
		require.Len(t, in, 8)
		for j := range in {
			in[j] = float32(i*100 + j)
		}
	}
	for i := range layout.AudioIn {
		in := pool.AudioIn(i)
		for j := range in {
			require.Equal(t, float32(i*100+j), in[j])
		}
	}

	// Channels must not overlap: writing CvOut must not disturb AudioIn.
	cv := pool.CvOut(0)
	for j := range cv {
		cv[j] = -1
	}
	require.Equal(t, float32(0), pool.AudioIn(0)[0])
}

func TestAudioPoolResizeChangesLayout(t *testing.T) {
	pool := newTestAudioPool(t)
	require.NoError(t, pool.Resize(AudioPoolLayout{AudioIn: 1, AudioOut: 1, BufferFrames: 4}))
	require.Equal(t, 2*4*4, pool.Layout().ByteSize())

	require.NoError(t, pool.Resize(AudioPoolLayout{AudioIn: 2, AudioOut: 2, CvIn: 1, CvOut: 1, BufferFrames: 16}))
	require.Equal(t, 6*16*4, pool.Layout().ByteSize())
	require.Len(t, pool.AudioOut(1), 16)
}
