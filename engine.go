package pipeline_go

// Engine runs a compiled graph once per frame against the shared world.
//
// Lifecycle: an engine starts Uninitialized, becomes Configured after exactly
// one successful Setup and may then Run any number of times. A second Setup
// is a programmer error and returns ErrAlreadyConfigured; the first graph
// stays in place. Run before Setup returns ErrNotConfigured.
//
// Run returns a *TaskError when a task failed; that frame was aborted and no
// later wave ran. A task panic is never swallowed: it reaches the goroutine
// that called Run.
type Engine[W any] interface {
	Setup(graph *Graph[W]) error
	Run(world W) error
}

// Closer is implemented by engines that own goroutines.
type Closer interface {
	Close()
}

// BuildEngine builds b and configures engine with the result.
func BuildEngine[W any, E Engine[W]](b *Builder[W], engine E) (E, error) {
	g, err := b.Build()
	if err != nil {
		return engine, err
	}
	if err := engine.Setup(g); err != nil {
		return engine, err
	}
	return engine, nil
}

// setupOnce is embedded by the engines to share the setup bookkeeping.
type setupOnce struct {
	configured bool
}

func (s *setupOnce) begin(graphIsNil bool) error {
	if s.configured {
		return ErrAlreadyConfigured
	}
	if graphIsNil {
		return ErrNilGraph
	}
	return nil
}

func (s *setupOnce) ready() error {
	if !s.configured {
		return ErrNotConfigured
	}
	return nil
}
