package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	BridgeParamInfo: the server's mirrored parameter catalog,
 *		built from the child's ParameterCount/ParameterData/
 *		ParameterRanges handshake burst.
 *
 *------------------------------------------------------------------*/

import "fmt"

// ParamType distinguishes plugin parameter direction.
type ParamType uint8

const (
	ParamInput ParamType = iota
	ParamOutput
)

// ParamHints is a bitset of BridgeParamInfo.Hints.
type ParamHints uint32

const (
	ParamHintLogarithmic ParamHints = 1 << iota
	ParamHintAutomatable
	ParamHintIsBoolean
	ParamHintIsInteger
	ParamHintUsesSampleRate
)

// ParamInfo mirrors one plugin parameter on the server, kept in sync
// with the child via the non-RT channel.
type ParamInfo struct {
	Index   uint32
	Rindex  uint32
	Type    ParamType
	Hints   ParamHints
	MidiChannel uint8
	MappedControlIndex int16
	MappedMin float32
	MappedMax float32

	Min        float32
	Max        float32
	Def        float32
	Step       float32
	StepSmall  float32
	StepLarge  float32
	Current    float32

	Name   string
	Symbol string
	Unit   string

	// Automation readback: last value reported by the plugin via an
	// authoritative ParameterValue event, distinct from Current which
	// a UI may have staged but not yet had echoed back. Populated from
	// original_source's host-side automation-readback bookkeeping,
	// which the distilled ranges model otherwise drops.
	LastReadback float32
}

// Validate checks the invariants the spec requires of a parameter's
// range: Min<Max, Min<=Def<=Max.
func (p ParamInfo) Validate() error {
	if !(p.Min < p.Max) {
		return fmt.Errorf("parameter %d (%s): min %g is not < max %g", p.Index, p.Name, p.Min, p.Max)
	}
	if p.Def < p.Min || p.Def > p.Max {
		return fmt.Errorf("parameter %d (%s): default %g out of range [%g, %g]", p.Index, p.Name, p.Def, p.Min, p.Max)
	}
	return nil
}

// Clamp returns v restricted to [Min, Max].
func (p ParamInfo) Clamp(v float32) float32 {
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}

// ParamCatalog is the ordered, indexed set of a plugin's parameters.
type ParamCatalog struct {
	params []ParamInfo
}

// NewParamCatalog allocates a catalog sized for count parameters. The
// handshake collector (handshakeCollector.catalog) fills one in from
// the handshake burst.
func NewParamCatalog(count int) *ParamCatalog {
	return &ParamCatalog{params: make([]ParamInfo, count)}
}

func (c *ParamCatalog) Len() int { return len(c.params) }

func (c *ParamCatalog) At(index uint32) (*ParamInfo, error) {
	if int(index) >= len(c.params) {
		return nil, fmt.Errorf("parameter index %d out of range (count %d)", index, len(c.params))
	}
	return &c.params[index], nil
}

// All returns the full catalog, in index order.
func (c *ParamCatalog) All() []ParamInfo { return c.params }
