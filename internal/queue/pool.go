package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Stats are pool counters.
type Stats struct {
	Queued    int   `json:"queued"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

// Pool is a fixed set of workers draining a bounded job channel. Enqueue
// never blocks: a full channel rejects the job with ErrQueueFull.
type Pool struct {
	jobs       chan *Job
	handler    Handler
	workers    int
	jobTimeout time.Duration
	log        zerolog.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// NewPool creates a pool with the given worker count and queue capacity.
func NewPool(workers, capacity int, jobTimeout time.Duration, handler Handler, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = workers
	}
	if jobTimeout <= 0 {
		jobTimeout = time.Minute
	}
	return &Pool{
		jobs:       make(chan *Job, capacity),
		handler:    handler,
		workers:    workers,
		jobTimeout: jobTimeout,
		log:        log.With().Str("component", "refresh_pool").Logger(),
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		p.log.Warn().Msg("Refresh pool already started, ignoring")
		return
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.log.Info().Int("workers", p.workers).Int("capacity", cap(p.jobs)).Msg("Refresh pool started")
}

// Stop stops accepting jobs, drains the queue and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
	p.log.Info().Msg("Refresh pool stopped")
}

// Enqueue adds a job without blocking.
func (p *Pool) Enqueue(job *Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		p.rejected.Add(1)
		return ErrQueueFull
	}
}

// Stats returns pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Queued:    len(p.jobs),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.run(ctx, id, job)
	}
}

func (p *Pool) run(ctx context.Context, workerID int, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.log.Error().Interface("panic", r).Str("job_id", job.ID).Msg("Job panicked")
		}
	}()

	start := time.Now()
	for {
		jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
		err := p.handler(jobCtx, job)
		cancel()

		if err == nil {
			p.completed.Add(1)
			p.log.Debug().
				Int("worker", workerID).
				Str("job_id", job.ID).
				Str("job_type", string(job.Type)).
				Str("fund_code", job.FundCode).
				Dur("duration", time.Since(start)).
				Msg("Job completed")
			return
		}

		if job.Retries >= job.MaxRetries || ctx.Err() != nil {
			p.failed.Add(1)
			p.log.Error().
				Err(err).
				Str("job_id", job.ID).
				Str("job_type", string(job.Type)).
				Str("fund_code", job.FundCode).
				Int("retries", job.Retries).
				Msg("Job failed")
			return
		}
		job.Retries++
	}
}
