package pipeline_go

import (
	"errors"
	"reflect"
	"testing"

	"go.uber.org/goleak"
)

func TestBuilder_DuplicateName(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewBuilder[*world]()
	mustInstall(t, b, "A", rec("A"), nil)
	err := b.Install("A", rec("A"), nil)

	var dup *DuplicateNameError
	if !errors.As(err, &dup) {
		t.Fatalf("expected *DuplicateNameError, got %v", err)
	}
	if dup.Name != "A" {
		t.Errorf("expected name A, got %q", dup.Name)
	}
	if !errors.Is(err, ErrDuplicateName) {
		t.Error("expected error to wrap ErrDuplicateName")
	}
	if b.Len() != 1 {
		t.Errorf("rejected task must not be registered, Len=%d", b.Len())
	}
}

func TestBuilder_DuplicateNameAcrossLayers(t *testing.T) {
	b := NewBuilder[*world]()
	mustInstall(t, b, "A", rec("A"), nil, OnLayer(LayerPre))
	if err := b.InstallOnLayer("A", rec("A"), nil, LayerPost, false); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName across layers, got %v", err)
	}
}

func TestBuilder_InvalidTask(t *testing.T) {
	b := NewBuilder[*world]()
	cases := []struct {
		name string
		err  error
	}{
		{"empty name", b.Install("", rec("x"), nil)},
		{"blank name", b.Install("   ", rec("x"), nil)},
		{"nil fn", b.Install("x", nil, nil)},
		{"nil runnable", b.InstallRunnable("y", nil, nil)},
		{"bad layer", b.Install("z", rec("z"), nil, OnLayer(Layer(7)))},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, ErrInvalidTask) {
			t.Errorf("%s: expected ErrInvalidTask, got %v", tc.name, tc.err)
		}
	}
	if b.Len() != 0 {
		t.Errorf("expected no registered tasks, got %d", b.Len())
	}
}

func TestBuilder_UnknownDependency(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewBuilder[*world]()
	mustInstall(t, b, "A", rec("A"), []string{"ghost"})
	_, err := b.Build()

	var unk *UnknownDependencyError
	if !errors.As(err, &unk) {
		t.Fatalf("expected *UnknownDependencyError, got %v", err)
	}
	if unk.Task != "A" || unk.Dependency != "ghost" {
		t.Errorf("expected {A ghost}, got {%s %s}", unk.Task, unk.Dependency)
	}
	if !errors.Is(err, ErrUnknownDependency) {
		t.Error("expected error to wrap ErrUnknownDependency")
	}
}

func TestBuilder_UnknownDependencyBeatsCycle(t *testing.T) {
	b := NewBuilder[*world]()
	mustInstall(t, b, "A", rec("A"), []string{"B"})
	mustInstall(t, b, "B", rec("B"), []string{"A"})
	mustInstall(t, b, "C", rec("C"), []string{"ghost"})
	if _, err := b.Build(); !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected unknown dependency to be reported first, got %v", err)
	}
}

func TestBuilder_CrossLayerDependencyIsUnknown(t *testing.T) {
	b := NewBuilder[*world]()
	mustInstall(t, b, "load", rec("load"), nil, OnLayer(LayerPre))
	mustInstall(t, b, "step", rec("step"), []string{"load"})

	_, err := b.Build()
	var unk *UnknownDependencyError
	if !errors.As(err, &unk) || unk.Task != "step" || unk.Dependency != "load" {
		t.Fatalf("expected UnknownDependency{step load}, got %v", err)
	}
}

func TestBuilder_Cycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewBuilder[*world]()
	mustInstall(t, b, "A", rec("A"), []string{"B"})
	mustInstall(t, b, "B", rec("B"), []string{"A"})
	_, err := b.Build()

	var cyc *CyclicDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected *CyclicDependencyError, got %v", err)
	}
	if !reflect.DeepEqual(cyc.Tasks, []string{"A", "B"}) {
		t.Errorf("expected [A B], got %v", cyc.Tasks)
	}
	if !errors.Is(err, ErrCyclicDependency) {
		t.Error("expected error to wrap ErrCyclicDependency")
	}
}

func TestBuilder_CycleListsOnlyUnplacedTasks(t *testing.T) {
	b := NewBuilder[*world]()
	mustInstall(t, b, "root", rec("root"), nil)
	mustInstall(t, b, "X", rec("X"), []string{"root", "Z"})
	mustInstall(t, b, "Y", rec("Y"), []string{"X"})
	mustInstall(t, b, "Z", rec("Z"), []string{"Y"})
	mustInstall(t, b, "tail", rec("tail"), []string{"Z"})

	_, err := b.Build()
	var cyc *CyclicDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected *CyclicDependencyError, got %v", err)
	}
	// tail is blocked behind the cycle and cannot be placed either.
	if !reflect.DeepEqual(cyc.Tasks, []string{"X", "Y", "Z", "tail"}) {
		t.Errorf("unexpected cycle members %v", cyc.Tasks)
	}
}

func TestBuilder_SelfDependency(t *testing.T) {
	b := NewBuilder[*world]()
	mustInstall(t, b, "A", rec("A"), []string{"A"})
	_, err := b.Build()

	var cyc *CyclicDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected *CyclicDependencyError, got %v", err)
	}
	if !reflect.DeepEqual(cyc.Tasks, []string{"A"}) {
		t.Errorf("expected [A], got %v", cyc.Tasks)
	}
}

func TestBuilder_Consumed(t *testing.T) {
	b := NewBuilder[*world]()
	mustInstall(t, b, "A", rec("A"), nil)
	mustBuild(t, b)

	if _, err := b.Build(); !errors.Is(err, ErrBuilderConsumed) {
		t.Errorf("second Build: expected ErrBuilderConsumed, got %v", err)
	}
	if err := b.Install("B", rec("B"), nil); !errors.Is(err, ErrBuilderConsumed) {
		t.Errorf("Install after Build: expected ErrBuilderConsumed, got %v", err)
	}
}

func TestBuilder_RetryAfterFailedBuild(t *testing.T) {
	b := NewBuilder[*world]()
	mustInstall(t, b, "B", rec("B"), []string{"A"})

	if _, err := b.Build(); !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}
	mustInstall(t, b, "A", rec("A"), nil)
	g := mustBuild(t, b)
	if !reflect.DeepEqual(g.Waves(), [][]string{{"A"}, {"B"}}) {
		t.Errorf("expected [[A] [B]], got %v", g.Waves())
	}
	if _, err := b.Build(); !errors.Is(err, ErrBuilderConsumed) {
		t.Errorf("Build after success: expected ErrBuilderConsumed, got %v", err)
	}
}

func TestBuilder_EmptyBuild(t *testing.T) {
	g := mustBuild(t, NewBuilder[*world]())
	if g.Root == nil || g.Root.Kind != KindSequence || len(g.Root.Children) != 0 {
		t.Fatalf("expected empty Sequence, got %s", g)
	}
	if g.Len() != 0 {
		t.Errorf("expected no tasks, got %d", g.Len())
	}
}

func TestBuilder_LayerOrder(t *testing.T) {
	b := NewBuilder[*world]()
	// Registered out of layer order on purpose.
	mustInstall(t, b, "present", rec("present"), nil, OnLayer(LayerPost))
	mustInstall(t, b, "simulate", rec("simulate"), nil)
	mustInstall(t, b, "poll", rec("poll"), nil, OnLayer(LayerPre))
	mustInstall(t, b, "audio", rec("audio"), nil, OnLayer(LayerPost))

	g := mustBuild(t, b)
	want := [][]string{{"poll"}, {"simulate"}, {"present", "audio"}}
	if got := g.Waves(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected waves %v, got %v", want, got)
	}
}

func TestBuilder_TaskIDsFollowRegistration(t *testing.T) {
	b := scenarioBuilder(t)
	g := mustBuild(t, b)
	for i, task := range g.Tasks {
		if task.ID != i {
			t.Errorf("task %s: expected ID %d, got %d", task.Name, i, task.ID)
		}
	}
	render, ok := g.Task("render")
	if !ok {
		t.Fatal("render not found")
	}
	if !reflect.DeepEqual(render.DepIDs(), []int{1, 2}) {
		t.Errorf("expected render deps [1 2], got %v", render.DepIDs())
	}
}

func TestBuilder_InstallOnLayerExclusive(t *testing.T) {
	b := NewBuilder[*world]()
	if err := b.InstallOnLayer("save", rec("save"), nil, LayerPost, true); err != nil {
		t.Fatal(err)
	}
	g := mustBuild(t, b)
	task, _ := g.Task("save")
	if task.Layer != LayerPost || !task.Exclusive {
		t.Errorf("expected post/exclusive, got %v/%v", task.Layer, task.Exclusive)
	}
}

func TestParseLayer(t *testing.T) {
	cases := map[string]Layer{
		"":       LayerUpdate,
		"main":   LayerUpdate,
		"Update": LayerUpdate,
		"pre":    LayerPre,
		" POST ": LayerPost,
	}
	for in, want := range cases {
		got, err := ParseLayer(in)
		if err != nil || got != want {
			t.Errorf("ParseLayer(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLayer("late"); err == nil {
		t.Error("expected error for unknown layer")
	}
}
