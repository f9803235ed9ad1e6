package pipeline_go

// ClosureEngine ignores the compiled graph and runs one closure per frame.
// It lets an application hand-roll its frame (a fixed list of calls, say)
// while still satisfying the Engine interface used elsewhere.
type ClosureEngine[W any] struct {
	setupOnce
	fn func(W) error
}

// NewClosureEngine returns an engine that calls fn on every Run.
func NewClosureEngine[W any](fn func(W) error) *ClosureEngine[W] {
	return &ClosureEngine[W]{fn: fn}
}

// Setup discards graph. It still may be called only once; a nil graph is
// accepted because the graph is never used.
func (e *ClosureEngine[W]) Setup(_ *Graph[W]) error {
	if err := e.begin(false); err != nil {
		return err
	}
	e.configured = true
	return nil
}

// Run calls the stored closure. A nil closure makes Run a no-op.
func (e *ClosureEngine[W]) Run(world W) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.fn == nil {
		return nil
	}
	return e.fn(world)
}
