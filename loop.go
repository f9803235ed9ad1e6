package pipeline_go

import (
	"context"
	"sync/atomic"
	"time"
)

// Loop drives an engine frame after frame against one world.
//
// The zero MaxFrames runs until ctx is done or a frame fails. FrameSleep, if
// set, is waited between frames and is interrupted by ctx.
type Loop[W any] struct {
	Engine     Engine[W]
	World      W
	MaxFrames  int
	FrameSleep time.Duration

	frames atomic.Int64
}

// Run executes frames until ctx is done, MaxFrames frames have completed, or a
// frame returns an error. It returns the number of frames completed by this
// call. Cancellation is not an error.
func (l *Loop[W]) Run(ctx context.Context) (int, error) {
	if l.Engine == nil {
		return 0, ErrNotConfigured
	}
	n := 0
	for l.MaxFrames <= 0 || n < l.MaxFrames {
		if ctx.Err() != nil {
			break
		}
		if err := l.Engine.Run(l.World); err != nil {
			Log.WithField("frame", l.frames.Load()).WithError(err).Warn("frame loop stopped")
			return n, err
		}
		n++
		l.frames.Add(1)

		if l.FrameSleep > 0 {
			t := time.NewTimer(l.FrameSleep)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
	}
	Log.WithField("frames", n).Debug("frame loop finished")
	return n, nil
}

// Frames returns the number of frames completed over the lifetime of l. It is
// safe to call while Run is in progress.
func (l *Loop[W]) Frames() int64 {
	return l.frames.Load()
}
