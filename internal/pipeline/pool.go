package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/aquasense/waterquality-server/internal/protocol"
)

// Job carries one decoded reading through the pool. Ack is called after
// the handler finishes so the consumer can commit the offset; it may be
// nil.
type Job struct {
	Reading *protocol.ReadingMessage
	Ack     func()
}

// Handler processes one reading
type Handler func(ctx context.Context, reading *protocol.ReadingMessage)

// Pool runs a fixed set of workers over a bounded job queue. Readings
// from different devices are processed concurrently; a slow store or
// dispatch call occupies one worker without stalling the rest of the
// pipeline.
type Pool struct {
	jobQueue    chan *Job
	workerCount int
	handler     Handler

	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool creates a worker pool
func NewPool(workerCount, jobQueueSize int, handler Handler) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	if workerCount <= 0 {
		workerCount = 10 // Default 10 workers
	}
	if jobQueueSize <= 0 {
		jobQueueSize = 1000 // Default queue size
	}

	return &Pool{
		jobQueue:    make(chan *Job, jobQueueSize),
		workerCount: workerCount,
		handler:     handler,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the workers
func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	fmt.Printf("Pipeline started with %d workers\n", p.workerCount)
}

// Submit enqueues a job, blocking when the queue is full. Returns an
// error once the pool is stopped. The mutex is held across the send so
// Stop cannot close the queue while a submit is in flight.
func (p *Pool) Submit(job *Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}
	p.jobQueue <- job
	return nil
}

// Stop drains the queue and waits for the workers to finish. Submits
// that lost the race fail with ErrPoolStopped instead of panicking on a
// closed channel.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.jobQueue)
	p.wg.Wait()
	p.cancel()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		p.handler(p.ctx, job.Reading)
		if job.Ack != nil {
			job.Ack()
		}
	}
}

var (
	ErrPoolStopped = &PoolError{"pipeline pool is stopped"}
)

// PoolError represents a pipeline error
type PoolError struct {
	msg string
}

func (e *PoolError) Error() string {
	return e.msg
}
