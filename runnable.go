package pipeline_go

// Runnable is the unit of work attached to a task. RunE is called once per
// frame with the shared world. Implementations must not retain the world
// beyond the call and must touch only the state their task declared, either
// through dependencies, the exclusive flag or its access sets.
type Runnable[W any] interface {
	RunE(world W) error
}

// TaskFunc adapts an ordinary function to Runnable.
type TaskFunc[W any] func(world W) error

// RunE calls f(world).
func (f TaskFunc[W]) RunE(world W) error {
	return f(world)
}
