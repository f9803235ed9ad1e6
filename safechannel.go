package pipeline_go

import (
	"context"
	"fmt"
	"sync"
)

// SafeChannel wraps a channel so that Close is idempotent and sends after
// Close fail instead of panicking. The jobs engine uses it to carry task
// completions from pool workers back to the dispatch loop.
type SafeChannel[T any] struct {
	ch     chan T
	closed bool
	mu     sync.RWMutex
}

// NewSafeChannelGen creates a SafeChannel with the given buffer size.
func NewSafeChannelGen[T any](buffer int) *SafeChannel[T] {
	return &SafeChannel[T]{ch: make(chan T, buffer)}
}

// Send delivers value without blocking. It returns false when the channel is
// closed or the buffer is full.
func (sc *SafeChannel[T]) Send(value T) bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	if sc.closed {
		return false
	}
	select {
	case sc.ch <- value:
		return true
	default:
		return false
	}
}

// SendBlocking waits until value is delivered, ctx is done or the channel is
// closed. Use it where a lost value would leave the receiver waiting forever.
//
// The read lock is held while blocked so Close cannot race with the send.
func (sc *SafeChannel[T]) SendBlocking(ctx context.Context, value T) bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	if sc.closed {
		return false
	}
	select {
	case sc.ch <- value:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close closes the underlying channel once; later calls return an error.
func (sc *SafeChannel[T]) Close() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.closed {
		return fmt.Errorf("channel already closed")
	}
	close(sc.ch)
	sc.closed = true
	return nil
}

// GetChannel returns the underlying channel for receive and select.
func (sc *SafeChannel[T]) GetChannel() <-chan T {
	return sc.ch
}
