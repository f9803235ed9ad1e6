package pipeline_go

// NodeKind tags the variant held by a Node.
type NodeKind int

// KindSystem is a leaf running one task, KindSequence runs its children in
// order, KindParallel runs children that have no dependency edges between
// them and may interleave.
const (
	KindSystem NodeKind = iota
	KindSequence
	KindParallel
)

func (k NodeKind) String() string {
	switch k {
	case KindSystem:
		return "System"
	case KindSequence:
		return "Sequence"
	case KindParallel:
		return "Parallel"
	default:
		return "Unknown"
	}
}

// Node is one element of a compiled pipeline graph.
// Only Task is set for KindSystem; only Children for the other kinds.
type Node[W any] struct {
	Kind     NodeKind
	Task     *Task[W]
	Children []*Node[W]
}

// SystemNode returns a leaf for t.
func SystemNode[W any](t *Task[W]) *Node[W] {
	return &Node[W]{Kind: KindSystem, Task: t}
}

// SequenceNode returns a node running children strictly in order.
func SequenceNode[W any](children ...*Node[W]) *Node[W] {
	return &Node[W]{Kind: KindSequence, Children: children}
}

// ParallelNode returns a node whose children may run concurrently.
func ParallelNode[W any](children ...*Node[W]) *Node[W] {
	return &Node[W]{Kind: KindParallel, Children: children}
}

// IsExclusive reports whether n is an exclusive task or a subtree containing one.
func (n *Node[W]) IsExclusive() bool {
	if n == nil {
		return false
	}
	if n.Kind == KindSystem {
		return n.Task != nil && n.Task.Exclusive
	}
	for _, c := range n.Children {
		if c.IsExclusive() {
			return true
		}
	}
	return false
}

// walk visits every leaf task below n in stored order.
func (n *Node[W]) walk(visit func(*Task[W])) {
	if n == nil {
		return
	}
	if n.Kind == KindSystem {
		if n.Task != nil {
			visit(n.Task)
		}
		return
	}
	for _, c := range n.Children {
		c.walk(visit)
	}
}

// TaskStatus is the per-frame lifecycle state of a task inside the jobs engine.
type TaskStatus int

// TaskPending through TaskSkipped are the task states of a single frame.
const (
	TaskPending TaskStatus = iota
	TaskRunning
	TaskSucceeded
	TaskFailed
	TaskSkipped // set when the frame aborted before the task started
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	case TaskSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// isValidTransition reports whether from→to is an edge of the task state machine.
//
//	Pending  → Running | Skipped
//	Running  → Succeeded | Failed
//	Succeeded, Failed, Skipped → (terminal)
func isValidTransition(from, to TaskStatus) bool {
	switch from {
	case TaskPending:
		return to == TaskRunning || to == TaskSkipped
	case TaskRunning:
		return to == TaskSucceeded || to == TaskFailed
	default:
		return false
	}
}

// transition advances statuses[i] from `from` to `to` and reports success.
// The jobs engine mutates statuses only from its dispatch goroutine.
func transition(statuses []TaskStatus, i int, from, to TaskStatus) bool {
	if !isValidTransition(from, to) || statuses[i] != from {
		return false
	}
	statuses[i] = to
	return true
}
