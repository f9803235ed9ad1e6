package pipeline_go

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"
)

// JobsConfig holds the tunable parameters of a JobsEngine.
type JobsConfig struct {
	// Workers is the number of long-lived pool goroutines.
	// Default: runtime.GOMAXPROCS(0).
	Workers int
}

// DefaultJobsConfig returns a JobsConfig using every available CPU.
func DefaultJobsConfig() JobsConfig {
	return JobsConfig{Workers: runtime.GOMAXPROCS(0)}
}

// JobsOption is a functional option for NewJobsEngine.
type JobsOption func(*JobsConfig)

// WithJobWorkers sets the pool size. Values below 1 are treated as 1.
func WithJobWorkers(n int) JobsOption {
	return func(c *JobsConfig) {
		if n < 1 {
			n = 1
		}
		c.Workers = n
	}
}

// TaskStat reports the timing the jobs engine observed for one task.
type TaskStat struct {
	Name         string
	Runs         int64
	LastDuration time.Duration
}

type completion struct {
	idx   int
	dur   time.Duration
	err   error
	panic *TaskPanic
}

// JobsEngine schedules tasks dynamically instead of wave by wave. A task
// starts as soon as
//   - every dependency has succeeded in this frame,
//   - every task of an earlier layer has succeeded,
//   - its access set does not conflict with a running task, and
//   - for an exclusive task, nothing else is running.
//
// Non-exclusive tasks run on a persistent WorkerPool; exclusive tasks run on
// the calling goroutine while the pool is idle. Among ready tasks the ones
// that took longest last frame start first.
//
// Like the other engines it trusts the declarations: wave-mates in the
// compiled graph may run concurrently here as well.
type JobsEngine[W any] struct {
	setupOnce
	Config JobsConfig

	pool     *WorkerPool
	done     *SafeChannel[completion]
	tasks    []*Task[W]
	deps     [][]int
	statuses []TaskStatus
	closed   bool

	mu           sync.Mutex // guards lastDuration and runs
	lastDuration []time.Duration
	runs         []int64
}

// NewJobsEngine returns an unconfigured JobsEngine. The pool is started by
// Setup and stopped by Close.
func NewJobsEngine[W any](opts ...JobsOption) *JobsEngine[W] {
	cfg := DefaultJobsConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &JobsEngine[W]{Config: cfg}
}

// Setup flattens graph, resolves dependencies by name and starts the pool.
func (e *JobsEngine[W]) Setup(graph *Graph[W]) error {
	if e.closed {
		return ErrEngineClosed
	}
	if err := e.begin(graph == nil); err != nil {
		return err
	}

	tasks := graph.Flatten()
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		index[t.Name] = i
	}
	deps := make([][]int, len(tasks))
	for i, t := range tasks {
		for _, d := range t.Deps {
			j, ok := index[d]
			if !ok {
				return &UnknownDependencyError{Task: t.Name, Dependency: d}
			}
			deps[i] = append(deps[i], j)
		}
	}

	e.tasks = tasks
	e.deps = deps
	e.statuses = make([]TaskStatus, len(tasks))
	e.lastDuration = make([]time.Duration, len(tasks))
	e.runs = make([]int64, len(tasks))
	// Every task completes at most once per frame, so a buffer of len(tasks)
	// never blocks a worker.
	e.done = NewSafeChannelGen[completion](len(tasks) + 1)
	e.pool = NewWorkerPool(e.Config.Workers)
	e.configured = true

	Log.WithField("graph_id", graph.ID).
		WithField("tasks", len(tasks)).
		WithField("workers", e.pool.Size()).
		Debug("jobs engine configured")
	return nil
}

// Close stops the worker pool. The engine cannot run afterwards.
func (e *JobsEngine[W]) Close() {
	if e.closed {
		return
	}
	e.closed = true
	if e.pool != nil {
		e.pool.Close()
	}
	if e.done != nil {
		_ = e.done.Close()
	}
}

// Stats returns the observed per-task timings in flattened order.
func (e *JobsEngine[W]) Stats() []TaskStat {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TaskStat, len(e.tasks))
	for i, t := range e.tasks {
		out[i] = TaskStat{Name: t.Name, Runs: e.runs[i], LastDuration: e.lastDuration[i]}
	}
	return out
}

// Statuses returns the task states of the last frame, keyed by task name.
func (e *JobsEngine[W]) Statuses() map[string]TaskStatus {
	out := make(map[string]TaskStatus, len(e.tasks))
	for i, t := range e.tasks {
		out[t.Name] = e.statuses[i]
	}
	return out
}

// jobsFrame is the dispatch state of one Run call.
type jobsFrame[W any] struct {
	e       *JobsEngine[W]
	world   W
	running []int
	err     error
	panic   *TaskPanic
}

// Run executes one frame. A task error stops further dispatch; tasks already
// running are awaited and the remaining ones are marked skipped.
func (e *JobsEngine[W]) Run(world W) error {
	if e.closed {
		return ErrEngineClosed
	}
	if err := e.ready(); err != nil {
		return err
	}
	for i := range e.statuses {
		e.statuses[i] = TaskPending
	}

	f := &jobsFrame[W]{e: e, world: world}
	for {
		if !f.aborted() {
			f.dispatch()
		}
		if len(f.running) == 0 {
			break
		}
		f.complete(<-e.done.GetChannel())
	}

	var stuck []string
	for i, st := range e.statuses {
		if st != TaskPending {
			continue
		}
		if f.aborted() {
			transition(e.statuses, i, TaskPending, TaskSkipped)
		} else {
			stuck = append(stuck, e.tasks[i].Name)
		}
	}

	if f.panic != nil {
		panic(f.panic)
	}
	if f.err != nil {
		Log.WithError(f.err).Warn("frame aborted")
		return f.err
	}
	if len(stuck) > 0 {
		return &CyclicDependencyError{Tasks: stuck}
	}
	return nil
}

func (f *jobsFrame[W]) aborted() bool {
	return f.err != nil || f.panic != nil
}

// dispatch starts every task that may start now. It loops because an
// exclusive task runs inline and its completion can unblock others.
func (f *jobsFrame[W]) dispatch() {
	for !f.aborted() {
		ready := f.readyTasks()
		if len(ready) == 0 {
			return
		}
		ranInline := false
		for _, i := range ready {
			t := f.e.tasks[i]
			if t.Exclusive {
				if len(f.running) > 0 {
					// Hold everything back until the pool drains.
					return
				}
				f.runInline(i)
				ranInline = true
				break
			}
			if f.conflictsWithRunning(t) {
				continue
			}
			f.submit(i)
		}
		if !ranInline {
			return
		}
	}
}

// readyTasks returns the pending tasks whose dependencies and earlier layers
// are complete, longest last duration first.
func (f *jobsFrame[W]) readyTasks() []int {
	e := f.e
	layer := LayerPost + 1
	for i, st := range e.statuses {
		if st != TaskSucceeded && e.tasks[i].Layer < layer {
			layer = e.tasks[i].Layer
		}
	}

	var ready []int
	for i, st := range e.statuses {
		if st != TaskPending || e.tasks[i].Layer != layer {
			continue
		}
		ok := true
		for _, d := range e.deps[i] {
			if e.statuses[d] != TaskSucceeded {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, i)
		}
	}

	e.mu.Lock()
	sort.SliceStable(ready, func(a, b int) bool {
		return e.lastDuration[ready[a]] > e.lastDuration[ready[b]]
	})
	e.mu.Unlock()
	return ready
}

func (f *jobsFrame[W]) conflictsWithRunning(t *Task[W]) bool {
	if !t.hasAccess() {
		return false
	}
	for _, r := range f.running {
		if t.Conflicts(f.e.tasks[r]) {
			return true
		}
	}
	return false
}

func (f *jobsFrame[W]) submit(i int) {
	e := f.e
	t := e.tasks[i]
	transition(e.statuses, i, TaskPending, TaskRunning)
	f.running = append(f.running, i)

	world := f.world
	e.pool.Submit(func() {
		guard := &panicGuard{current: t.Name}
		start := time.Now()
		p, err := guard.do(func() error {
			return runTask(t, world)
		})
		e.done.SendBlocking(context.Background(), completion{idx: i, dur: time.Since(start), err: err, panic: p})
	})
}

// runInline runs an exclusive task on the calling goroutine. The pool is idle.
func (f *jobsFrame[W]) runInline(i int) {
	e := f.e
	transition(e.statuses, i, TaskPending, TaskRunning)
	start := time.Now()
	err := runTask(e.tasks[i], f.world)
	f.record(completion{idx: i, dur: time.Since(start), err: err})
}

func (f *jobsFrame[W]) complete(c completion) {
	for k, r := range f.running {
		if r == c.idx {
			f.running = append(f.running[:k], f.running[k+1:]...)
			break
		}
	}
	f.record(c)
}

func (f *jobsFrame[W]) record(c completion) {
	e := f.e
	e.mu.Lock()
	e.lastDuration[c.idx] = c.dur
	e.runs[c.idx]++
	e.mu.Unlock()

	switch {
	case c.panic != nil:
		transition(e.statuses, c.idx, TaskRunning, TaskFailed)
		if f.panic == nil {
			f.panic = c.panic
		}
	case c.err != nil:
		transition(e.statuses, c.idx, TaskRunning, TaskFailed)
		if f.err == nil {
			f.err = c.err
		}
	default:
		transition(e.statuses, c.idx, TaskRunning, TaskSucceeded)
	}
}
