package pipeline_go

import (
	"runtime/debug"

	"github.com/seoyhaein/pipeline-go/debugonly"
)

// runTask calls the task once and wraps a failure in *TaskError.
// Panics are not recovered here.
func runTask[W any](t *Task[W], world W) error {
	if traceEnabled() {
		Log.WithField("task", t.Name).Trace("run task")
	}
	if err := t.Runner.RunE(world); err != nil {
		return &TaskError{Task: t.Name, Err: err}
	}
	return nil
}

// panicGuard runs work on a worker goroutine. It remembers the task that is
// currently executing so that a panic can be reported under its name and
// re-raised on the goroutine that called Run.
type panicGuard struct {
	current string
}

func (g *panicGuard) enter(name string) {
	if g != nil {
		g.current = name
	}
}

func (g *panicGuard) do(fn func() error) (p *TaskPanic, err error) {
	defer func() {
		if r := recover(); r != nil {
			debugonly.BreakHere()
			p = asTaskPanic(g.current, r)
		}
	}()
	return nil, fn()
}

// asTaskPanic keeps an already wrapped panic intact so that nested fan-outs
// report the innermost task.
func asTaskPanic(task string, r any) *TaskPanic {
	if tp, ok := r.(*TaskPanic); ok {
		return tp
	}
	return &TaskPanic{Task: task, Value: r, Stack: debug.Stack()}
}

// runNodeInOrder walks n and runs every leaf in stored order on the caller,
// stopping at the first error.
func runNodeInOrder[W any](n *Node[W], world W) error {
	if n == nil {
		return nil
	}
	if n.Kind == KindSystem {
		return runTask(n.Task, world)
	}
	for _, c := range n.Children {
		if err := runNodeInOrder(c, world); err != nil {
			return err
		}
	}
	return nil
}
