package manifest

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// Blackboard is the world of a manifest pipeline: one slot per declared
// resource. The set of slots is fixed at construction, so tasks touching
// different resources never share memory. Two tasks writing the same slot
// concurrently is a race; declared access sets keep them apart.
//
// Slot values are nil, bool, float64 or string.
type Blackboard struct {
	names []string
	index map[string]int
	slots []any
	frame atomic.Int64
}

// NewBlackboard creates a blackboard holding initial. Numbers are stored as
// float64.
func NewBlackboard(initial map[string]any) (*Blackboard, error) {
	names := make([]string, 0, len(initial))
	for name := range initial {
		names = append(names, name)
	}
	sort.Strings(names)

	b := &Blackboard{
		names: names,
		index: make(map[string]int, len(names)),
		slots: make([]any, len(names)),
	}
	for i, name := range names {
		v, err := normalize(initial[name])
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", name, err)
		}
		b.index[name] = i
		b.slots[i] = v
	}
	return b, nil
}

// Get returns the value of resource name.
func (b *Blackboard) Get(name string) (any, bool) {
	i, ok := b.index[name]
	if !ok {
		return nil, false
	}
	return b.slots[i], true
}

// Set stores v in resource name.
func (b *Blackboard) Set(name string, v any) error {
	i, ok := b.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	nv, err := normalize(v)
	if err != nil {
		return fmt.Errorf("resource %q: %w", name, err)
	}
	b.slots[i] = nv
	return nil
}

// Names returns the resource names in sorted order.
func (b *Blackboard) Names() []string {
	return append([]string(nil), b.names...)
}

// Snapshot copies every slot. Call it only between frames.
func (b *Blackboard) Snapshot() map[string]any {
	out := make(map[string]any, len(b.names))
	for i, name := range b.names {
		out[name] = b.slots[i]
	}
	return out
}

// Frame returns the index of the current frame, starting at 0.
func (b *Blackboard) Frame() int64 {
	return b.frame.Load()
}

func (b *Blackboard) advance() {
	b.frame.Add(1)
}

// normalize maps decoder output (YAML int, TOML int64, ...) to the slot
// value types.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float32:
		return float64(x), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
