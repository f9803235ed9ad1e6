package pipeline_go

import (
	"strings"
)

// BuilderConfig holds the tunable parameters of the graph compiler.
// Use DefaultBuilderConfig and override individual fields, or pass
// BuilderOption values to NewBuilder.
type BuilderConfig struct {
	// MaxWaveWidth caps the number of tasks placed in one wave. Tasks that do
	// not fit move to a later wave. Zero means unlimited. Default: 0.
	MaxWaveWidth int

	// SplitOnAccessConflict keeps two tasks whose declared access sets
	// conflict out of the same wave. Tasks without access sets are unaffected.
	// Default: true.
	SplitOnAccessConflict bool
}

// DefaultBuilderConfig returns the default compiler configuration:
//   - MaxWaveWidth:          0 (unlimited)
//   - SplitOnAccessConflict: true
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		MaxWaveWidth:          0,
		SplitOnAccessConflict: true,
	}
}

// BuilderOption is a functional option for NewBuilder.
type BuilderOption func(*BuilderConfig)

// WithMaxWaveWidth caps the width of every wave. n <= 0 means unlimited.
func WithMaxWaveWidth(n int) BuilderOption {
	return func(c *BuilderConfig) {
		if n < 0 {
			n = 0
		}
		c.MaxWaveWidth = n
	}
}

// WithAccessSplitting turns access-set conflict splitting on or off.
func WithAccessSplitting(on bool) BuilderOption {
	return func(c *BuilderConfig) {
		c.SplitOnAccessConflict = on
	}
}

// Builder is the task registry used while the application is assembled.
// Tasks are installed by name, then Build compiles them into a Graph once;
// the builder cannot be reused afterwards.
//
// A Builder is not safe for concurrent use.
type Builder[W any] struct {
	Config BuilderConfig

	tasks    []*Task[W]
	byName   map[string]*Task[W]
	consumed bool
}

// NewBuilder returns an empty Builder configured with DefaultBuilderConfig
// followed by opts.
func NewBuilder[W any](opts ...BuilderOption) *Builder[W] {
	cfg := DefaultBuilderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Builder[W]{
		Config: cfg,
		byName: make(map[string]*Task[W]),
	}
}

// Install registers fn under name on LayerUpdate, non-exclusive, unless opts
// say otherwise. Dependencies are resolved at Build time, so they may be
// installed in any order.
func (b *Builder[W]) Install(name string, fn func(W) error, deps []string, opts ...TaskOption) error {
	if fn == nil {
		return invalidTaskf("task %q has no function", name)
	}
	return b.InstallRunnable(name, TaskFunc[W](fn), deps, opts...)
}

// InstallOnLayer registers fn with an explicit layer and exclusivity.
func (b *Builder[W]) InstallOnLayer(name string, fn func(W) error, deps []string, layer Layer, exclusive bool) error {
	opts := []TaskOption{OnLayer(layer)}
	if exclusive {
		opts = append(opts, AsExclusive())
	}
	return b.Install(name, fn, deps, opts...)
}

// InstallRunnable registers a Runnable under name.
func (b *Builder[W]) InstallRunnable(name string, r Runnable[W], deps []string, opts ...TaskOption) error {
	if b.consumed {
		return ErrBuilderConsumed
	}
	if strings.TrimSpace(name) == "" {
		return invalidTaskf("empty task name")
	}
	if r == nil {
		return invalidTaskf("task %q has no runnable", name)
	}
	if _, exists := b.byName[name]; exists {
		return &DuplicateNameError{Name: name}
	}

	ts := taskSettings{layer: LayerUpdate}
	for _, opt := range opts {
		opt(&ts)
	}
	if !ts.layer.valid() {
		return invalidTaskf("task %q has invalid layer %v", name, ts.layer)
	}

	t := &Task[W]{
		ID:        len(b.tasks),
		Name:      name,
		Runner:    r,
		Deps:      append([]string(nil), deps...),
		Layer:     ts.layer,
		Exclusive: ts.exclusive,
		Reads:     ts.reads,
		Writes:    ts.writes,
	}
	b.tasks = append(b.tasks, t)
	b.byName[name] = t
	return nil
}

// Len returns the number of installed tasks.
func (b *Builder[W]) Len() int {
	return len(b.tasks)
}

// Build compiles every layer and concatenates the resulting waves in layer
// order (Pre, Update, Post) into a single Sequence. The first compilation
// error is returned and no graph is produced. A failed Build leaves the
// builder open, so missing tasks can be installed and Build called again.
// Only a successful Build consumes it.
func (b *Builder[W]) Build() (*Graph[W], error) {
	if b.consumed {
		return nil, ErrBuilderConsumed
	}

	c := &compiler[W]{config: b.Config}
	var waves []*Node[W]
	for _, layer := range Layers {
		var layerTasks []*Task[W]
		for _, t := range b.tasks {
			if t.Layer == layer {
				layerTasks = append(layerTasks, t)
			}
		}
		compiled, err := c.compileLayer(layerTasks)
		if err != nil {
			Log.WithField("layer", layer.String()).WithError(err).Debug("pipeline build failed")
			return nil, err
		}
		waves = append(waves, compiled...)
	}

	b.consumed = true
	g := NewGraph(SequenceNode(waves...))
	// Keep the arena in registration order so Task.ID indexes Graph.Tasks.
	g.Tasks = b.tasks
	b.byName = nil

	Log.WithField("graph_id", g.ID).
		WithField("tasks", len(g.Tasks)).
		WithField("waves", len(waves)).
		Debug("pipeline graph built")
	return g, nil
}
