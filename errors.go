package pipeline_go

import (
	"errors"
	"fmt"
	"strings"
)

// Build-time errors. They are returned by Install* and Build before any task
// has run; the typed errors below unwrap to these sentinels.
var (
	ErrDuplicateName     = errors.New("duplicate task name")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrCyclicDependency  = errors.New("cyclic dependency")
	ErrInvalidTask       = errors.New("invalid task")
	ErrBuilderConsumed   = errors.New("builder already built")
)

// Engine lifecycle errors.
var (
	ErrNilGraph          = errors.New("graph is nil")
	ErrNotConfigured     = errors.New("engine is not configured")
	ErrAlreadyConfigured = errors.New("engine is already configured")
	ErrEngineClosed      = errors.New("engine is closed")
)

// DuplicateNameError is returned when a task name is installed twice.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%v: %q", ErrDuplicateName, e.Name)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// UnknownDependencyError is returned by Build when Task names a dependency
// that is not registered on the same layer.
type UnknownDependencyError struct {
	Task       string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("%v: task %q depends on %q", ErrUnknownDependency, e.Task, e.Dependency)
}

func (e *UnknownDependencyError) Unwrap() error { return ErrUnknownDependency }

// CyclicDependencyError lists the tasks that could not be placed into any
// wave, in registration order.
type CyclicDependencyError struct {
	Tasks []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("%v among [%s]", ErrCyclicDependency, strings.Join(e.Tasks, ", "))
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// TaskError carries a task failure out of Run. The frame that produced it was
// aborted: no wave after the failing one ran.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// TaskPanic is the value re-panicked on the calling goroutine when a task
// panicked on a worker goroutine. Stack is the worker's stack at recovery.
type TaskPanic struct {
	Task  string
	Value any
	Stack []byte
}

func (p *TaskPanic) Error() string {
	return fmt.Sprintf("task %s panicked: %v", p.Task, p.Value)
}

func invalidTaskf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTask, fmt.Sprintf(format, args...))
}
