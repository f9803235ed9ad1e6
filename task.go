package pipeline_go

// Task is a registered unit of work. Tasks are created by the Builder and are
// read-only once the graph is built.
type Task[W any] struct {
	// ID is the task's arena index: its position in registration order and in
	// Graph.Tasks. It identifies the task instead of comparing callables.
	ID int

	Name      string
	Runner    Runnable[W]
	Deps      []string
	Layer     Layer
	Exclusive bool

	// Reads and Writes are optional access sets over named resources of the
	// world. When present the compiler never places two conflicting tasks in
	// the same wave, and the jobs engine never runs them at the same time.
	Reads  []string
	Writes []string

	// depIDs are the resolved Deps, filled in by the compiler.
	depIDs []int
}

// DepIDs returns the arena indices of the task's dependencies.
func (t *Task[W]) DepIDs() []int {
	return t.depIDs
}

// Conflicts reports whether t and o declare access to a common resource with
// at least one of them writing it.
func (t *Task[W]) Conflicts(o *Task[W]) bool {
	if len(t.Writes) == 0 && len(o.Writes) == 0 {
		return false
	}
	return overlaps(t.Writes, o.Writes) || overlaps(t.Writes, o.Reads) || overlaps(t.Reads, o.Writes)
}

func (t *Task[W]) hasAccess() bool {
	return len(t.Reads) > 0 || len(t.Writes) > 0
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// TaskOption adjusts a task while it is being installed.
type TaskOption func(*taskSettings)

type taskSettings struct {
	layer     Layer
	exclusive bool
	reads     []string
	writes    []string
}

// OnLayer installs the task on layer l instead of LayerUpdate.
func OnLayer(l Layer) TaskOption {
	return func(s *taskSettings) { s.layer = l }
}

// AsExclusive marks the task as never running concurrently with another task.
func AsExclusive() TaskOption {
	return func(s *taskSettings) { s.exclusive = true }
}

// WithReads declares the resources the task reads.
func WithReads(resources ...string) TaskOption {
	return func(s *taskSettings) { s.reads = append(s.reads, resources...) }
}

// WithWrites declares the resources the task writes.
func WithWrites(resources ...string) TaskOption {
	return func(s *taskSettings) { s.writes = append(s.writes, resources...) }
}
