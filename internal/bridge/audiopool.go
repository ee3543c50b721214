package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Contiguous float buffer carrying all audio/CV ports for
 *		one bridged plugin, shared between server and client.
 *
 * Description:	Layout (server view, fixed order): audio-in channels,
 *		then audio-out, then CV-in, then CV-out, each channel a
 *		run of BufferFrames consecutive float32 samples. Resized
 *		whenever buffer size or port counts change; the server
 *		always resizes first, then tells the client the new byte
 *		size with a SetAudioPool RT message so it can remap.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"unsafe"
)

const bytesPerSample = 4 // float32

// AudioPoolLayout describes the channel counts and buffer size the
// pool is currently sized for.
type AudioPoolLayout struct {
	AudioIn      int
	AudioOut     int
	CvIn         int
	CvOut        int
	BufferFrames int
}

// TotalChannels is the sum of all port counts.
func (l AudioPoolLayout) TotalChannels() int {
	return l.AudioIn + l.AudioOut + l.CvIn + l.CvOut
}

// TotalSamples is the pool's length in float32 elements.
func (l AudioPoolLayout) TotalSamples() int {
	return l.TotalChannels() * l.BufferFrames
}

// ByteSize is the pool's shared-memory footprint.
func (l AudioPoolLayout) ByteSize() int {
	return l.TotalSamples() * bytesPerSample
}

func (l AudioPoolLayout) audioOutOffset() int { return l.AudioIn * l.BufferFrames }
func (l AudioPoolLayout) cvInOffset() int     { return (l.AudioIn + l.AudioOut) * l.BufferFrames }
func (l AudioPoolLayout) cvOutOffset() int {
	return (l.AudioIn + l.AudioOut + l.CvIn) * l.BufferFrames
}

// AudioPool is the server- or client-side view of the shared audio
// pool region. Both sides hold the same layout once SetAudioPool has
// been exchanged; only the owner (server) resizes the underlying
// region.
type AudioPool struct {
	region *Region
	layout AudioPoolLayout
	floats []float32
}

// NewAudioPool wraps an already-created/attached, not-yet-mapped
// Region.
func NewAudioPool(region *Region) *AudioPool {
	return &AudioPool{region: region}
}

// Layout returns the layout currently mapped.
func (p *AudioPool) Layout() AudioPoolLayout { return p.layout }

// Resize remaps the pool to the given layout. The server calls this
// first and then announces the new byte size over the RT channel; the
// client calls it upon receiving that announcement. Both must agree on
// layout fields out of band (port counts come from the non-RT
// handshake, buffer frames from SetBufferSize).
func (p *AudioPool) Resize(layout AudioPoolLayout) error {
	size := layout.ByteSize()
	if size == 0 {
		size = bytesPerSample // avoid a zero-length mapping
	}
	if err := p.region.Unmap(); err != nil {
		return fmt.Errorf("audio pool resize: unmap: %w", err)
	}
	if err := p.region.Map(size); err != nil {
		return fmt.Errorf("audio pool resize: map: %w", err)
	}
	p.layout = layout
	p.floats = floatsView(p.region.Bytes())
	return nil
}

func floatsView(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	n := len(b) / bytesPerSample
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n)
}

func (p *AudioPool) channel(base, index int) []float32 {
	start := (base + index) * p.layout.BufferFrames
	end := start + p.layout.BufferFrames
	return p.floats[start:end]
}

// AudioIn returns the index'th audio input channel's samples.
func (p *AudioPool) AudioIn(index int) []float32 { return p.channel(0, index) }

// AudioOut returns the index'th audio output channel's samples.
func (p *AudioPool) AudioOut(index int) []float32 {
	return p.channel(p.layout.AudioIn, index)
}

// CvIn returns the index'th CV input channel's samples.
func (p *AudioPool) CvIn(index int) []float32 {
	return p.channel(p.layout.AudioIn+p.layout.AudioOut, index)
}

// CvOut returns the index'th CV output channel's samples.
func (p *AudioPool) CvOut(index int) []float32 {
	return p.channel(p.layout.AudioIn+p.layout.AudioOut+p.layout.CvIn, index)
}
