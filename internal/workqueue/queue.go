package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Job is a unit of deferred work. It must honour ctx cancellation.
type Job func(ctx context.Context) error

// Status is the terminal status of a work item
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var ErrQueueStopped = errors.New("work queue is stopped")

// Result is reported once per work item when it reaches a terminal status
type Result struct {
	ID       uuid.UUID
	Tag      string
	Status   Status
	Err      error
	Duration time.Duration
}

type item struct {
	id         uuid.UUID
	tag        string
	job        Job
	ctx        context.Context
	cancel     context.CancelFunc
	enqueuedAt time.Time
}

// Queue runs jobs on a fixed pool of workers. Every job carries a tag, and
// CancelTag drops pending jobs and cancels running jobs with that tag.
type Queue struct {
	workerCount int
	logger      zerolog.Logger
	onResult    func(Result)

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*item
	running map[uuid.UUID]*item
	stopped bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a work queue. onResult may be nil.
func New(workerCount int, logger zerolog.Logger, onResult func(Result)) *Queue {
	if workerCount <= 0 {
		workerCount = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		workerCount: workerCount,
		logger:      logger.With().Str("component", "workqueue").Logger(),
		onResult:    onResult,
		running:     make(map[uuid.UUID]*item),
		baseCtx:     ctx,
		baseCancel:  cancel,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start starts the worker goroutines
func (q *Queue) Start() {
	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info().Int("workers", q.workerCount).Msg("work queue started")
}

// Stop cancels running jobs, drops pending ones and waits for the workers to exit
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	dropped := q.pending
	q.pending = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	q.baseCancel()
	for _, it := range dropped {
		it.cancel()
		q.report(it, StatusCancelled, context.Canceled, 0)
	}

	q.wg.Wait()
	q.logger.Info().Msg("work queue stopped")
}

// Enqueue adds a job under tag. It never blocks.
func (q *Queue) Enqueue(tag string, job Job) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return uuid.Nil, ErrQueueStopped
	}

	ctx, cancel := context.WithCancel(q.baseCtx)
	it := &item{
		id:         uuid.New(),
		tag:        tag,
		job:        job,
		ctx:        ctx,
		cancel:     cancel,
		enqueuedAt: time.Now(),
	}

	q.pending = append(q.pending, it)
	q.cond.Signal()

	return it.id, nil
}

// CancelTag cancels every pending and running job carrying tag.
// Returns the number of jobs affected.
func (q *Queue) CancelTag(tag string) int {
	q.mu.Lock()

	var dropped []*item
	kept := q.pending[:0]
	for _, it := range q.pending {
		if it.tag == tag {
			dropped = append(dropped, it)
			continue
		}
		kept = append(kept, it)
	}
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = nil
	}
	q.pending = kept

	count := len(dropped)
	for _, it := range q.running {
		if it.tag == tag {
			it.cancel()
			count++
		}
	}
	q.mu.Unlock()

	for _, it := range dropped {
		it.cancel()
		q.report(it, StatusCancelled, context.Canceled, 0)
	}

	if count > 0 {
		q.logger.Debug().Str("tag", tag).Int("count", count).Msg("cancelled tagged work")
	}

	return count
}

// Outstanding returns the number of pending and running jobs carrying tag
func (q *Queue) Outstanding(tag string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, it := range q.pending {
		if it.tag == tag {
			n++
		}
	}
	for _, it := range q.running {
		if it.tag == tag {
			n++
		}
	}
	return n
}

// Stats returns queue statistics
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Pending: len(q.pending),
		Running: len(q.running),
		Workers: q.workerCount,
	}
}

// Stats contains statistics about the queue
type Stats struct {
	Pending int
	Running int
	Workers int
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.stopped {
			q.cond.Wait()
		}
		if q.stopped {
			q.mu.Unlock()
			return
		}

		it := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.running[it.id] = it
		q.mu.Unlock()

		start := time.Now()
		err := q.safeRun(it)
		it.cancel()

		q.mu.Lock()
		delete(q.running, it.id)
		q.mu.Unlock()

		q.finish(id, it, err, start)
	}
}

func (q *Queue) finish(workerID int, it *item, err error, start time.Time) {
	status := StatusSucceeded
	switch {
	case errors.Is(err, context.Canceled):
		status = StatusCancelled
	case err != nil:
		status = StatusFailed
	}

	q.logger.Debug().
		Int("worker", workerID).
		Str("work_id", it.id.String()).
		Str("tag", it.tag).
		Str("status", string(status)).
		Dur("waited", start.Sub(it.enqueuedAt)).
		Msg("work item finished")

	q.report(it, status, err, time.Since(start))
}

func (q *Queue) safeRun(it *item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("work item %s panicked: %v", it.id, r)
		}
	}()
	return it.job(it.ctx)
}

func (q *Queue) report(it *item, status Status, err error, d time.Duration) {
	if q.onResult == nil {
		return
	}
	q.onResult(Result{ID: it.id, Tag: it.tag, Status: status, Err: err, Duration: d})
}
