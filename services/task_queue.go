package services

import (
	"context"
	"sync"
	"time"

	"github.com/kendall-kelly/delyra-api/logger"
	"github.com/kendall-kelly/delyra-api/metrics"
	"go.uber.org/zap"
)

const taskTimeout = 15 * time.Second

// Task is a background side effect. Its error is logged, never returned to the request.
type Task func(ctx context.Context) error

type queuedTask struct {
	ctx  context.Context
	name string
	fn   Task
}

// TaskQueue runs fire-and-forget work on a fixed pool of workers
type TaskQueue struct {
	tasks   chan queuedTask
	metrics *metrics.Metrics
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewTaskQueue starts workers goroutines reading from a queue of size capacity
func NewTaskQueue(workers, capacity int, m *metrics.Metrics) *TaskQueue {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	q := &TaskQueue{
		tasks:   make(chan queuedTask, capacity),
		metrics: m,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *TaskQueue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *TaskQueue) run(t queuedTask) {
	ctx, cancel := context.WithTimeout(t.ctx, taskTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("background task panicked", zap.String("task", t.name), zap.Any("panic", r))
		}
	}()
	if err := t.fn(ctx); err != nil {
		logger.FromContext(ctx).Warn("background task failed", zap.String("task", t.name), zap.Error(err))
	}
}

// Submit enqueues fn without blocking. The request context's values are kept
// but its cancellation is not. Returns false when the task was dropped.
func (q *TaskQueue) Submit(ctx context.Context, name string, fn Task) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	t := queuedTask{ctx: context.WithoutCancel(ctx), name: name, fn: fn}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		logger.FromContext(ctx).Warn("task queue closed, dropping task", zap.String("task", name))
		q.metrics.TaskDropped()
		return false
	}
	select {
	case q.tasks <- t:
		return true
	default:
		logger.FromContext(ctx).Warn("task queue full, dropping task", zap.String("task", name))
		q.metrics.TaskDropped()
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	q.wg.Wait()
}
