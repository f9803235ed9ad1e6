package pipeline_go

// SequentialEngine runs every task on the calling goroutine in one fixed
// order: the pre-order flattening of the graph, computed once by Setup.
// It never runs anything concurrently, which makes it the reference
// ("oracle") engine for tests and the engine of choice on single-threaded
// hosts.
type SequentialEngine[W any] struct {
	setupOnce
	tasks []*Task[W]
}

// NewSequentialEngine returns an unconfigured SequentialEngine.
func NewSequentialEngine[W any]() *SequentialEngine[W] {
	return &SequentialEngine[W]{}
}

// Setup flattens graph and caches the resulting order.
func (e *SequentialEngine[W]) Setup(graph *Graph[W]) error {
	if err := e.begin(graph == nil); err != nil {
		return err
	}
	e.tasks = graph.Flatten()
	e.configured = true
	Log.WithField("graph_id", graph.ID).
		WithField("tasks", len(e.tasks)).
		Debug("sequential engine configured")
	return nil
}

// Run calls each task in the cached order. The first task error aborts the
// frame; a panic propagates unchanged.
func (e *SequentialEngine[W]) Run(world W) error {
	if err := e.ready(); err != nil {
		return err
	}
	for _, t := range e.tasks {
		if err := runTask(t, world); err != nil {
			return err
		}
	}
	return nil
}

// Order returns the task names in execution order.
func (e *SequentialEngine[W]) Order() []string {
	names := make([]string, len(e.tasks))
	for i, t := range e.tasks {
		names[i] = t.Name
	}
	return names
}
