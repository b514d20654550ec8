package hooks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

var (
	// ErrQueueNotStarted is returned when a hook is queued before Start
	ErrQueueNotStarted = errors.New("hook queue not started")

	// ErrQueueClosed is returned when a hook is queued after Shutdown or Stop
	ErrQueueClosed = errors.New("hook queue closed")
)

const (
	defaultWorkers = 4
	queueBuffer    = 100
)

type queueState int

const (
	queueIdle queueState = iota
	queueRunning
	queueClosed
)

// hookJob is one async hook run against a snapshot of the written document
type hookJob struct {
	entity   *schema.EntityType
	hookType schema.HookType
	hook     *Hook
	doc      docstore.Document
}

func (j hookJob) fields() []zap.Field {
	return []zap.Field{
		zap.String("collection", j.entity.Collection),
		zap.Stringer("hook", j.hookType),
		zap.String("name", j.hook.Name),
	}
}

// QueueStats counts the hooks the queue has run
type QueueStats struct {
	Completed uint64
	Failed    uint64
	Panicked  uint64
}

// AsyncQueue runs async hooks on a pool of workers after the write that queued them
type AsyncQueue struct {
	jobs    chan hookJob
	workers int
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu is held for reading while a job is sent so Shutdown never closes jobs under a sender
	mu    sync.RWMutex
	state queueState

	completed atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
}

// NewAsyncQueue creates a queue with the given number of workers (4 when not positive)
func NewAsyncQueue(workers int, logger *zap.Logger) *AsyncQueue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncQueue{
		jobs:    make(chan hookJob, queueBuffer),
		workers: workers,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Calling it again has no effect.
func (q *AsyncQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != queueIdle {
		return
	}
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.state = queueRunning
}

func (q *AsyncQueue) work() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.run(job)
		}
	}
}

func (q *AsyncQueue) run(job hookJob) {
	defer func() {
		if r := recover(); r != nil {
			q.panicked.Add(1)
			q.logger.Error("async hook panicked", append(job.fields(), zap.Any("panic", r))...)
		}
	}()

	if err := job.hook.Fn(NewContext(q.ctx, job.entity, job.hookType), job.doc); err != nil {
		q.failed.Add(1)
		q.logger.Warn("async hook failed", append(job.fields(), zap.Error(err))...)
		return
	}
	q.completed.Add(1)
}

// Enqueue schedules hook to run against a copy of doc. It blocks while the buffer is full.
func (q *AsyncQueue) Enqueue(entity *schema.EntityType, hookType schema.HookType, hook *Hook, doc docstore.Document) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	switch q.state {
	case queueIdle:
		return ErrQueueNotStarted
	case queueClosed:
		return ErrQueueClosed
	}

	job := hookJob{entity: entity, hookType: hookType, hook: hook, doc: doc.Clone()}
	select {
	case q.jobs <- job:
		return nil
	case <-q.ctx.Done():
		return ErrQueueClosed
	}
}

// Stats returns the counts of hooks run so far
func (q *AsyncQueue) Stats() QueueStats {
	return QueueStats{
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
		Panicked:  q.panicked.Load(),
	}
}

// Shutdown stops accepting hooks and waits for the queued ones to finish
func (q *AsyncQueue) Shutdown() {
	if !q.close() {
		return
	}
	close(q.jobs)
	q.wg.Wait()

	stats := q.Stats()
	q.logger.Debug("hook queue drained",
		zap.Uint64("completed", stats.Completed),
		zap.Uint64("failed", stats.Failed),
		zap.Uint64("panicked", stats.Panicked),
	)
}

// Stop cancels running hooks and returns without draining the queue
func (q *AsyncQueue) Stop() {
	q.close()
	q.cancel()
	q.wg.Wait()
}

// close moves a running queue to closed and reports whether it did
func (q *AsyncQueue) close() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != queueRunning {
		q.state = queueClosed
		return false
	}
	q.state = queueClosed
	return true
}
