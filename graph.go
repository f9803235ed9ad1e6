package pipeline_go

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Graph is a compiled, immutable pipeline: a Sequence of waves, each wave a
// System leaf or a Parallel node of leaves. A Graph is produced by
// Builder.Build (or NewGraph for hand-assembled trees) and handed to exactly
// one engine's Setup.
type Graph[W any] struct {
	// ID is the unique identifier assigned at creation time (UUID v4).
	ID string

	// Root is the top of the node tree.
	Root *Node[W]

	// Tasks is the task arena, indexed by Task.ID for compiled graphs.
	Tasks []*Task[W]
}

// NewGraph wraps a hand-assembled node tree. Tasks is filled from the leaves
// in pre-order.
func NewGraph[W any](root *Node[W]) *Graph[W] {
	g := &Graph[W]{ID: uuid.NewString(), Root: root}
	root.walk(func(t *Task[W]) {
		g.Tasks = append(g.Tasks, t)
	})
	return g
}

// Flatten returns the leaves in pre-order: Sequence children in order and
// Parallel children in their stored order. Any such order satisfies every
// dependency edge of a compiled graph.
func (g *Graph[W]) Flatten() []*Task[W] {
	if g == nil {
		return nil
	}
	out := make([]*Task[W], 0, len(g.Tasks))
	g.Root.walk(func(t *Task[W]) {
		out = append(out, t)
	})
	return out
}

// Waves returns the task names of every wave, in execution order. When the
// root is not a Sequence the whole tree counts as one wave.
func (g *Graph[W]) Waves() [][]string {
	if g == nil || g.Root == nil {
		return nil
	}
	if g.Root.Kind != KindSequence {
		return [][]string{leafNames(g.Root)}
	}
	waves := make([][]string, 0, len(g.Root.Children))
	for _, c := range g.Root.Children {
		waves = append(waves, leafNames(c))
	}
	return waves
}

// Len returns the number of tasks in the graph.
func (g *Graph[W]) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Tasks)
}

// Task looks up a task by name.
func (g *Graph[W]) Task(name string) (*Task[W], bool) {
	if g == nil {
		return nil, false
	}
	for _, t := range g.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

func leafNames[W any](n *Node[W]) []string {
	var names []string
	n.walk(func(t *Task[W]) {
		names = append(names, t.Name)
	})
	return names
}

// String renders the node tree on one line, e.g.
// Sequence[input Parallel[physics ai] render].
func (g *Graph[W]) String() string {
	if g == nil || g.Root == nil {
		return "<empty>"
	}
	var sb strings.Builder
	writeNode(&sb, g.Root)
	return sb.String()
}

func writeNode[W any](sb *strings.Builder, n *Node[W]) {
	if n == nil {
		return
	}
	if n.Kind == KindSystem {
		if n.Task == nil {
			sb.WriteString("<nil>")
			return
		}
		sb.WriteString(n.Task.Name)
		if n.Task.Exclusive {
			sb.WriteByte('!')
		}
		return
	}
	sb.WriteString(n.Kind.String())
	sb.WriteByte('[')
	for i, c := range n.Children {
		if i > 0 {
			sb.WriteByte(' ')
		}
		writeNode(sb, c)
	}
	sb.WriteByte(']')
}

// ToMermaid renders the graph as a Mermaid flowchart: one subgraph per wave,
// one arrow per declared dependency. Exclusive tasks get the "exclusive" class.
func (g *Graph[W]) ToMermaid() string {
	var sb strings.Builder
	sb.WriteString("flowchart TD\n")
	if g == nil {
		return sb.String()
	}
	for i, wave := range g.Waves() {
		fmt.Fprintf(&sb, "    subgraph wave%d [wave %d]\n", i, i)
		for _, name := range wave {
			fmt.Fprintf(&sb, "        %s[%q]\n", mermaidID(name), name)
		}
		sb.WriteString("    end\n")
	}
	var exclusive []string
	for _, t := range g.Tasks {
		for _, d := range t.Deps {
			fmt.Fprintf(&sb, "    %s --> %s\n", mermaidID(d), mermaidID(t.Name))
		}
		if t.Exclusive {
			exclusive = append(exclusive, mermaidID(t.Name))
		}
	}
	if len(exclusive) > 0 {
		sb.WriteString("    classDef exclusive stroke:#d33,stroke-width:2px\n")
		fmt.Fprintf(&sb, "    class %s exclusive\n", strings.Join(exclusive, ","))
	}
	return sb.String()
}

// mermaidID makes a task name safe to use as a Mermaid node identifier.
func mermaidID(name string) string {
	var sb strings.Builder
	sb.WriteString("t_")
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
