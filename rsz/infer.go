package rsz

import (
	"math"

	"github.com/rsztools/rszfile/schema"
)

// Heuristic resolves the type of opaque 4-byte fields from their raw value.
// The constants were tuned against game data and are not derived; changes
// should be checked against real containers.
type Heuristic struct {
	// MinIndex is the largest raw value never taken as a reference.
	MinIndex int64
	// Window is how far below the index of the owning instance a reference
	// may point.
	Window int64
	// FloatMin and FloatMax bound the magnitude of values taken as floats.
	FloatMin float64
	FloatMax float64
}

// DefaultHeuristic is used by decoders that do not specify a heuristic.
var DefaultHeuristic = Heuristic{
	MinIndex: 2,
	Window:   101,
	FloatMin: 1e-7,
	FloatMax: 1e7,
}

// IsReference returns whether v can be a reference from the instance at
// index own. Referents precede the instances referring to them.
func (h Heuristic) IsReference(v uint32, own int) bool {
	i, o := int64(int32(v)), int64(own)
	return i < o && i > h.MinIndex && i > o-h.Window
}

// Classify returns the type of a raw value held by the instance at index
// own: TypeObject if it looks like a reference, TypeF32 if it looks like a
// float, and TypeS32 otherwise.
func (h Heuristic) Classify(v uint32, own int) schema.Type {
	if h.IsReference(v, own) {
		return schema.TypeObject
	}
	if v>>23&0xFF != 0xFF {
		f := math.Abs(float64(math.Float32frombits(v)))
		if f > h.FloatMin && f < h.FloatMax {
			return schema.TypeF32
		}
	}
	return schema.TypeS32
}
