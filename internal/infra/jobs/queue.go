package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Job is one queued background task.
type Job struct {
	ID       string
	Name     string
	Run      func(ctx context.Context) error
	Attempt  int
	Enqueued time.Time
}

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	JobTimeout time.Duration
	Logger     *logrus.Entry
}

// Queue runs persistence writes in the background so that the operation
// that produced them never waits on disk or the database.
type Queue struct {
	workers    int
	maxRetries int
	retryDelay time.Duration
	jobTimeout time.Duration
	log        *logrus.Entry

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

func NewQueue(cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Queue{
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		jobTimeout: cfg.JobTimeout,
		log:        cfg.Logger.WithField("component", "jobs"),
		jobs:       make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Calling it twice has no effect.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.log.WithField("workers", q.workers).Info("Job queue started")
}

// Stop refuses new jobs, runs what is already buffered and waits for the workers.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.log.Info("Job queue stopped")
}

// Submit queues fn under name. It never blocks the caller.
func (q *Queue) Submit(name string, fn func(ctx context.Context) error) {
	job := Job{ID: uuid.NewString(), Name: name, Run: fn}
	if err := q.Enqueue(job); err != nil {
		q.log.WithError(err).WithField("job", name).Error("Dropping background job")
	}
}

// Enqueue adds job to the queue. When the buffer is full the job is handed
// over from a separate goroutine.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	started, stopped, ctx := q.started, q.stopped, q.ctx
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("job queue not started")
	}
	if stopped {
		return fmt.Errorf("job queue stopped")
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		return nil
	default:
	}
	go func() {
		select {
		case q.jobs <- job:
		case <-ctx.Done():
			q.log.WithField("job", job.Name).Warn("Job queue stopped before job was accepted")
		}
	}()
	return nil
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			q.drain()
			return
		case job := <-q.jobs:
			q.run(context.Background(), job)
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case job := <-q.jobs:
			q.run(context.Background(), job)
		default:
			return
		}
	}
}

func (q *Queue) run(parent context.Context, job Job) {
	for {
		ctx, cancel := context.WithTimeout(parent, q.jobTimeout)
		err := job.Run(ctx)
		cancel()
		if err == nil {
			return
		}

		entry := q.log.WithError(err).WithFields(logrus.Fields{
			"job":     job.Name,
			"job_id":  job.ID,
			"attempt": job.Attempt + 1,
		})
		if job.Attempt >= q.maxRetries || q.isStopped() {
			entry.Error("Background job failed")
			return
		}
		entry.Warn("Background job failed, retrying")
		job.Attempt++

		timer := time.NewTimer(q.retryDelay)
		select {
		case <-timer.C:
		case <-q.ctx.Done():
			timer.Stop()
		}
	}
}

func (q *Queue) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}
