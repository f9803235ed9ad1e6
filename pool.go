package pipeline_go

import (
	"sync"
)

// WorkerPool is a fixed set of long-lived goroutines consuming jobs from a
// queue. The jobs engine keeps one pool for its whole lifetime so a frame does
// not pay for goroutine start-up.
type WorkerPool struct {
	workerLimit int
	taskQueue   chan func()
	wg          sync.WaitGroup

	mu     sync.RWMutex // guards closed against concurrent Submit/Close
	closed bool
}

// NewWorkerPool starts limit workers. limit < 1 is treated as 1.
func NewWorkerPool(limit int) *WorkerPool {
	if limit < 1 {
		limit = 1
	}
	pool := &WorkerPool{
		workerLimit: limit,
		taskQueue:   make(chan func(), limit*2), // two queued jobs per worker
	}

	for i := 0; i < limit; i++ { //nolint:intrange
		pool.wg.Add(1)
		go func() {
			defer pool.wg.Done()
			for job := range pool.taskQueue {
				job()
			}
		}()
	}
	return pool
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int {
	return p.workerLimit
}

// Submit queues job, blocking while the queue is full. It returns false if
// the pool has been closed.
func (p *WorkerPool) Submit(job func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.taskQueue <- job
	return true
}

// Close stops accepting jobs, lets the workers drain the queue and waits for
// them to exit. Calling Close more than once is safe.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.taskQueue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
