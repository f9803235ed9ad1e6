package pipeline_go

import (
	"fmt"
	"strings"
)

// Layer is a coarse execution phase. Layers are compiled independently and
// their waves are concatenated in the order Pre, Update, Post.
type Layer int

// LayerPre, LayerUpdate and LayerPost are the fixed layers, in execution order.
const (
	LayerPre Layer = iota
	LayerUpdate
	LayerPost
)

// Layers lists every layer in execution order.
var Layers = [...]Layer{LayerPre, LayerUpdate, LayerPost}

func (l Layer) String() string {
	switch l {
	case LayerPre:
		return "pre"
	case LayerUpdate:
		return "update"
	case LayerPost:
		return "post"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

func (l Layer) valid() bool {
	return l >= LayerPre && l <= LayerPost
}

// ParseLayer converts a layer name ("pre", "update", "post", case-insensitive)
// to a Layer. The empty string maps to LayerUpdate; "main" is accepted as an
// alias for it.
func ParseLayer(s string) (Layer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pre":
		return LayerPre, nil
	case "", "update", "main":
		return LayerUpdate, nil
	case "post":
		return LayerPost, nil
	default:
		return LayerUpdate, fmt.Errorf("unknown layer %q", s)
	}
}
