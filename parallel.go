package pipeline_go

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ParallelConfig holds the tunable parameters of a ParallelEngine.
type ParallelConfig struct {
	// Workers caps the number of goroutines one Parallel node fans out to at
	// a time. Default: runtime.GOMAXPROCS(0).
	Workers int

	// Parallel enables concurrent dispatch. When false (or Workers <= 1) the
	// engine walks the graph in stored order on the calling goroutine, which
	// gives the same per-wave grouping as SequentialEngine. Default: true.
	Parallel bool
}

// DefaultParallelConfig returns a ParallelConfig using every available CPU.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		Workers:  runtime.GOMAXPROCS(0),
		Parallel: true,
	}
}

// ParallelOption is a functional option for NewParallelEngine.
type ParallelOption func(*ParallelConfig)

// WithWorkers sets the fan-out limit. Values below 1 are treated as 1.
func WithWorkers(n int) ParallelOption {
	return func(c *ParallelConfig) {
		if n < 1 {
			n = 1
		}
		c.Workers = n
	}
}

// WithParallel switches concurrent dispatch on or off.
func WithParallel(on bool) ParallelOption {
	return func(c *ParallelConfig) {
		c.Parallel = on
	}
}

// ParallelEngine walks the graph every frame: Sequence children run in order,
// Parallel children run concurrently on goroutines scheduled by the Go
// runtime's work-stealing scheduler, joined before the next sibling starts.
//
// Inside a Parallel node, exclusive children (an exclusive task, or a subtree
// containing one) run first, one at a time, on the calling goroutine. Every
// leaf of an exclusive subtree runs in stored order. Only after all of them
// have finished do the remaining children fan out, so an exclusive task never
// overlaps with anything in its wave.
//
// The engine performs no aliasing checks. Concurrent dispatch is safe only
// because the compiler put no dependency edge between wave-mates and the
// application flagged as exclusive (or gave access sets to) every task whose
// world access is not disjoint from its wave-mates.
type ParallelEngine[W any] struct {
	setupOnce
	Config ParallelConfig
	graph  *Graph[W]
}

// NewParallelEngine returns an unconfigured ParallelEngine.
func NewParallelEngine[W any](opts ...ParallelOption) *ParallelEngine[W] {
	cfg := DefaultParallelConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ParallelEngine[W]{Config: cfg}
}

// Setup stores graph unchanged.
func (e *ParallelEngine[W]) Setup(graph *Graph[W]) error {
	if err := e.begin(graph == nil); err != nil {
		return err
	}
	e.graph = graph
	e.configured = true
	Log.WithField("graph_id", graph.ID).
		WithField("workers", e.Config.Workers).
		WithField("parallel", e.Config.Parallel).
		Debug("parallel engine configured")
	return nil
}

// Graph returns the configured graph, or nil before Setup.
func (e *ParallelEngine[W]) Graph() *Graph[W] {
	return e.graph
}

// Run executes one frame. The first task error aborts the frame after the
// wave it occurred in has joined. A panic on a worker goroutine is re-raised
// on the calling goroutine as *TaskPanic.
func (e *ParallelEngine[W]) Run(world W) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.Config.Parallel || e.Config.Workers <= 1 {
		return runNodeInOrder(e.graph.Root, world)
	}
	return e.runNode(e.graph.Root, world, nil)
}

// runNode executes n. g is nil on the calling goroutine and set on workers.
func (e *ParallelEngine[W]) runNode(n *Node[W], world W, g *panicGuard) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindSystem:
		g.enter(n.Task.Name)
		return runTask(n.Task, world)
	case KindSequence:
		for _, c := range n.Children {
			if err := e.runNode(c, world, g); err != nil {
				return err
			}
		}
		return nil
	default:
		return e.runParallel(n.Children, world, g)
	}
}

func (e *ParallelEngine[W]) runParallel(children []*Node[W], world W, g *panicGuard) error {
	concurrent := make([]*Node[W], 0, len(children))
	for _, c := range children {
		if !c.IsExclusive() {
			concurrent = append(concurrent, c)
			continue
		}
		if err := runExclusive(c, world, g); err != nil {
			return err
		}
	}

	switch len(concurrent) {
	case 0:
		return nil
	case 1:
		return e.runNode(concurrent[0], world, g)
	}

	var (
		eg    errgroup.Group
		mu    sync.Mutex
		first *TaskPanic
	)
	eg.SetLimit(e.Config.Workers)
	for _, c := range concurrent {
		c := c // per-iteration copy; go directive is 1.21 (local toolchain)
		eg.Go(func() error {
			guard := &panicGuard{}
			p, err := guard.do(func() error {
				return e.runNode(c, world, guard)
			})
			if p != nil {
				mu.Lock()
				if first == nil {
					first = p
				}
				mu.Unlock()
				return p
			}
			return err
		})
	}
	err := eg.Wait()
	if first != nil {
		panic(first)
	}
	return err
}

// runExclusive runs every leaf of an exclusive child in stored order on the
// current goroutine. Nested Parallel nodes do not fan out.
func runExclusive[W any](n *Node[W], world W, g *panicGuard) error {
	if n == nil {
		return nil
	}
	if n.Kind == KindSystem {
		g.enter(n.Task.Name)
		return runTask(n.Task, world)
	}
	for _, c := range n.Children {
		if err := runExclusive(c, world, g); err != nil {
			return err
		}
	}
	return nil
}
