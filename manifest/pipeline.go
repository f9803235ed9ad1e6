package manifest

import (
	"fmt"

	pipeline "github.com/seoyhaein/pipeline-go"
)

// CompileOption overrides a scheduler setting from the manifest.
type CompileOption func(*Scheduler)

// WithEngine replaces scheduler.engine.
func WithEngine(name string) CompileOption {
	return func(s *Scheduler) {
		if name != "" {
			s.Engine = name
		}
	}
}

// WithWorkers replaces scheduler.workers when n > 0.
func WithWorkers(n int) CompileOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.Workers = n
		}
	}
}

// Pipeline is a compiled manifest: its graph, a configured engine and the
// world it runs on.
type Pipeline struct {
	Graph      *pipeline.Graph[*Blackboard]
	EngineName string

	engine  pipeline.Engine[*Blackboard]
	world   *Blackboard
	scripts []*script
}

// Compile builds the graph and configures the engine the manifest selects.
// The returned Pipeline must be closed.
func (m *Manifest) Compile(opts ...CompileOption) (*Pipeline, error) {
	sched := m.Scheduler
	for _, opt := range opts {
		opt(&sched)
	}
	engineKind, err := engineName(sched.Engine)
	if err != nil {
		return nil, err
	}

	world, err := NewBlackboard(m.Resources)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{world: world, EngineName: engineKind}
	compiled := false
	defer func() {
		if !compiled {
			p.Close()
		}
	}()

	builderOpts := []pipeline.BuilderOption{pipeline.WithMaxWaveWidth(sched.MaxWaveWidth)}
	if sched.SplitOnAccess != nil {
		builderOpts = append(builderOpts, pipeline.WithAccessSplitting(*sched.SplitOnAccess))
	}
	b := pipeline.NewBuilder[*Blackboard](builderOpts...)

	for _, def := range m.Tasks {
		layer, err := pipeline.ParseLayer(def.Layer)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w: %q", def.Name, ErrUnknownLayer, def.Layer)
		}
		s, err := newScript(def, world)
		if err != nil {
			return nil, err
		}
		p.scripts = append(p.scripts, s)

		taskOpts := []pipeline.TaskOption{pipeline.OnLayer(layer)}
		if def.Exclusive {
			taskOpts = append(taskOpts, pipeline.AsExclusive())
		}
		if len(def.Reads) > 0 {
			taskOpts = append(taskOpts, pipeline.WithReads(def.Reads...))
		}
		if len(def.Writes) > 0 {
			taskOpts = append(taskOpts, pipeline.WithWrites(def.Writes...))
		}
		if err := b.InstallRunnable(def.Name, s, def.Deps, taskOpts...); err != nil {
			return nil, err
		}
	}

	switch engineKind {
	case EngineSequential:
		p.engine = pipeline.NewSequentialEngine[*Blackboard]()
	case EngineJobs:
		var jobsOpts []pipeline.JobsOption
		if sched.Workers > 0 {
			jobsOpts = append(jobsOpts, pipeline.WithJobWorkers(sched.Workers))
		}
		p.engine = pipeline.NewJobsEngine[*Blackboard](jobsOpts...)
	default:
		var parOpts []pipeline.ParallelOption
		if sched.Workers > 0 {
			parOpts = append(parOpts, pipeline.WithWorkers(sched.Workers))
		}
		p.engine = pipeline.NewParallelEngine[*Blackboard](parOpts...)
	}

	if p.Graph, err = b.Build(); err != nil {
		return nil, err
	}
	if err := p.engine.Setup(p.Graph); err != nil {
		return nil, err
	}
	compiled = true

	pipeline.Log.WithField("graph_id", p.Graph.ID).
		WithField("engine", engineKind).
		WithField("tasks", p.Graph.Len()).
		Debug("manifest compiled")
	return p, nil
}

// World returns the blackboard the pipeline runs on.
func (p *Pipeline) World() *Blackboard {
	return p.world
}

// RunFrame runs every task once and then advances the frame counter.
func (p *Pipeline) RunFrame() error {
	if err := p.engine.Run(p.world); err != nil {
		return err
	}
	p.world.advance()
	return nil
}

// Loop returns a frame loop driving RunFrame.
func (p *Pipeline) Loop(maxFrames int) (*pipeline.Loop[*Blackboard], error) {
	e := pipeline.NewClosureEngine(func(*Blackboard) error { return p.RunFrame() })
	if err := e.Setup(nil); err != nil {
		return nil, err
	}
	return &pipeline.Loop[*Blackboard]{Engine: e, World: p.world, MaxFrames: maxFrames}, nil
}

// Stats returns per-task timings when the jobs engine is in use, else nil.
func (p *Pipeline) Stats() []pipeline.TaskStat {
	if je, ok := p.engine.(*pipeline.JobsEngine[*Blackboard]); ok {
		return je.Stats()
	}
	return nil
}

// Close stops engine goroutines and releases the Lua states.
func (p *Pipeline) Close() {
	if p == nil {
		return
	}
	if c, ok := p.engine.(pipeline.Closer); ok {
		c.Close()
	}
	for _, s := range p.scripts {
		s.close()
	}
	p.scripts = nil
}
