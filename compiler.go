package pipeline_go

// compiler turns the tasks of one layer into waves.
type compiler[W any] struct {
	config BuilderConfig
}

// compileLayer returns the waves of one layer in execution order. Each wave is
// a System leaf (one task) or a Parallel node (several tasks).
//
// Tasks are processed in registration order, which makes the output
// reproducible; the order inside a wave carries no execution guarantee.
func (c *compiler[W]) compileLayer(tasks []*Task[W]) ([]*Node[W], error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	// Resolve every edge before any wave is built, so an unknown name is
	// reported even if the layer also contains a cycle.
	index := make(map[string]*Task[W], len(tasks))
	for _, t := range tasks {
		index[t.Name] = t
	}
	for _, t := range tasks {
		t.depIDs = t.depIDs[:0]
		for _, dep := range t.Deps {
			d, ok := index[dep]
			if !ok {
				return nil, &UnknownDependencyError{Task: t.Name, Dependency: dep}
			}
			t.depIDs = append(t.depIDs, d.ID)
		}
	}

	placed := make(map[int]bool, len(tasks))
	remaining := tasks
	var waves []*Node[W]

	for len(remaining) > 0 {
		ready, blocked := c.readySet(remaining, placed)
		if len(ready) == 0 {
			names := make([]string, 0, len(blocked))
			for _, t := range blocked {
				names = append(names, t.Name)
			}
			return nil, &CyclicDependencyError{Tasks: names}
		}

		wave, deferred := c.pack(ready)
		for _, t := range wave {
			placed[t.ID] = true
		}
		waves = append(waves, waveNode(wave))

		// Rebuild remaining in registration order.
		left := make(map[int]bool, len(deferred)+len(blocked))
		for _, t := range deferred {
			left[t.ID] = true
		}
		for _, t := range blocked {
			left[t.ID] = true
		}
		next := remaining[:0:0]
		for _, t := range remaining {
			if left[t.ID] {
				next = append(next, t)
			}
		}
		remaining = next
	}
	return waves, nil
}

// readySet splits remaining into tasks whose dependencies are all placed and
// tasks still waiting on something.
func (c *compiler[W]) readySet(remaining []*Task[W], placed map[int]bool) (ready, blocked []*Task[W]) {
	for _, t := range remaining {
		ok := true
		for _, id := range t.depIDs {
			if !placed[id] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, t)
		} else {
			blocked = append(blocked, t)
		}
	}
	return ready, blocked
}

// pack chooses the members of the next wave from a non-empty ready set. The
// first ready task is always taken, so every call makes progress. Later tasks
// are skipped when the wave is full or, with access splitting enabled, when
// their access set conflicts with a member.
func (c *compiler[W]) pack(ready []*Task[W]) (wave, deferred []*Task[W]) {
	for _, t := range ready {
		if len(wave) == 0 {
			wave = append(wave, t)
			continue
		}
		if c.config.MaxWaveWidth > 0 && len(wave) >= c.config.MaxWaveWidth {
			deferred = append(deferred, t)
			continue
		}
		if c.config.SplitOnAccessConflict && t.hasAccess() && conflictsWithAny(t, wave) {
			deferred = append(deferred, t)
			continue
		}
		wave = append(wave, t)
	}
	return wave, deferred
}

func conflictsWithAny[W any](t *Task[W], wave []*Task[W]) bool {
	for _, o := range wave {
		if t.Conflicts(o) {
			return true
		}
	}
	return false
}

func waveNode[W any](wave []*Task[W]) *Node[W] {
	if len(wave) == 1 {
		return SystemNode(wave[0])
	}
	children := make([]*Node[W], 0, len(wave))
	for _, t := range wave {
		children = append(children, SystemNode(t))
	}
	return ParallelNode(children...)
}
