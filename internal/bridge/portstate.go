package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	BridgePortState: client-side per-port bookkeeping, patched
 *		to the current audio-pool buffer each cycle.
 *
 *------------------------------------------------------------------*/

import "fmt"

// kMaxEventCount bounds the per-port MIDI input event list.
const kMaxEventCount = 4096

// midiBytePoolSize bounds the per-port MIDI payload byte pool.
const midiBytePoolSize = 64 * 1024

// PortDirection distinguishes input from output ports.
type PortDirection uint8

const (
	PortDirectionInput PortDirection = iota
	PortDirectionOutput
)

// MidiInEvent is one sample-accurate MIDI input event queued against a
// port for the current cycle.
type MidiInEvent struct {
	Time uint32
	Port uint8
	Data []byte
}

// PortState is the client's view of one plugin port: its identity plus,
// for MIDI ports, the bounded event queue and byte pool for this cycle.
type PortState struct {
	Name      string
	Index     uint32
	Direction PortDirection
	Type      PortType

	buffer []float32 // patched each cycle from AudioPool, audio/CV ports only

	events    []MidiInEvent // MIDI ports only
	bytesUsed int
}

// NewPortState constructs a port. Audio/CV ports leave the MIDI fields
// unused; MIDI ports leave buffer nil.
func NewPortState(name string, index uint32, dir PortDirection, t PortType) *PortState {
	return &PortState{Name: name, Index: index, Direction: dir, Type: t}
}

// PatchBuffer repoints an audio/CV port at the current cycle's slice of
// the audio pool. Must happen before the plugin's process call and
// only while holding the rendezvous baton.
func (p *PortState) PatchBuffer(buf []float32) { p.buffer = buf }

// Buffer returns the currently patched audio/CV buffer.
func (p *PortState) Buffer() []float32 { return p.buffer }

// ResetEvents clears the MIDI input queue at the start of a cycle.
func (p *PortState) ResetEvents() {
	p.events = p.events[:0]
	p.bytesUsed = 0
}

// QueueEvent appends a MIDI input event, enforcing the count and byte
// pool bounds. Returns an error (never panics) if either bound would
// be exceeded; callers drop the event and continue rather than stall
// the RT thread.
func (p *PortState) QueueEvent(e MidiInEvent) error {
	if len(p.events) >= kMaxEventCount {
		return fmt.Errorf("port %q: event count limit %d reached", p.Name, kMaxEventCount)
	}
	if p.bytesUsed+len(e.Data) > midiBytePoolSize {
		return fmt.Errorf("port %q: midi byte pool limit %d reached", p.Name, midiBytePoolSize)
	}
	p.events = append(p.events, e)
	p.bytesUsed += len(e.Data)
	return nil
}

// Events returns this cycle's queued MIDI input, in arrival order.
func (p *PortState) Events() []MidiInEvent { return p.events }
