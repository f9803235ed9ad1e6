package pipeline_go

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// world is the shared state used by the engine tests.
type world struct {
	mu    sync.Mutex
	order []string

	active        atomic.Int32
	exclusiveOn   atomic.Bool
	violations    atomic.Int32
	maxConcurrent atomic.Int32
}

func (w *world) record(name string) {
	w.mu.Lock()
	w.order = append(w.order, name)
	w.mu.Unlock()
}

func (w *world) snapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.order...)
}

func (w *world) reset() {
	w.mu.Lock()
	w.order = nil
	w.mu.Unlock()
}

// rec returns a task body that records name.
func rec(name string) func(*world) error {
	return func(w *world) error {
		w.record(name)
		return nil
	}
}

// busy returns a task body that holds the world for d while tracking how many
// tasks are active. Exclusive tasks count a violation when anything else is
// active; other tasks count one when an exclusive task is running.
func busy(name string, exclusive bool, d time.Duration) func(*world) error {
	return func(w *world) error {
		n := w.active.Add(1)
		defer w.active.Add(-1)
		for {
			m := w.maxConcurrent.Load()
			if n <= m || w.maxConcurrent.CompareAndSwap(m, n) {
				break
			}
		}
		if exclusive {
			w.exclusiveOn.Store(true)
			if n != 1 {
				w.violations.Add(1)
			}
		} else if w.exclusiveOn.Load() {
			w.violations.Add(1)
		}
		time.Sleep(d)
		if exclusive {
			if w.active.Load() != 1 {
				w.violations.Add(1)
			}
			w.exclusiveOn.Store(false)
		}
		w.record(name)
		return nil
	}
}

var errBoom = errors.New("boom")

func mustInstall(t testing.TB, b *Builder[*world], name string, fn func(*world) error, deps []string, opts ...TaskOption) {
	t.Helper()
	if err := b.Install(name, fn, deps, opts...); err != nil {
		t.Fatalf("Install(%q): %v", name, err)
	}
}

func mustBuild(t testing.TB, b *Builder[*world]) *Graph[*world] {
	t.Helper()
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

// scenarioBuilder registers input -> {physics, ai} -> render.
func scenarioBuilder(t testing.TB, opts ...BuilderOption) *Builder[*world] {
	t.Helper()
	b := NewBuilder[*world](opts...)
	mustInstall(t, b, "input", rec("input"), nil)
	mustInstall(t, b, "physics", rec("physics"), []string{"input"})
	mustInstall(t, b, "ai", rec("ai"), []string{"input"})
	mustInstall(t, b, "render", rec("render"), []string{"physics", "ai"})
	return b
}

// checkOrder fails unless every task in order appears after all of its
// dependencies.
func checkOrder(t *testing.T, g *Graph[*world], order []string) {
	t.Helper()
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	if len(pos) != g.Len() {
		t.Fatalf("expected %d distinct tasks to run, got %v", g.Len(), order)
	}
	for _, task := range g.Tasks {
		for _, d := range task.Deps {
			if pos[d] >= pos[task.Name] {
				t.Errorf("%s ran before its dependency %s: %v", task.Name, d, order)
			}
		}
	}
}

// waveOf maps each task name to its wave index.
func waveOf(g *Graph[*world]) map[string]int {
	out := make(map[string]int)
	for i, wave := range g.Waves() {
		for _, name := range wave {
			out[name] = i
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		seen[s]--
		if seen[s] < 0 {
			return false
		}
	}
	return true
}
