// Package jobs runs typed background work on a small goroutine pool with bounded retries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotRunning is returned by Enqueue before Start or after Stop.
var ErrNotRunning = errors.New("queue not running")

// ErrQueueFull is returned when the buffer has no room for another task.
var ErrQueueFull = errors.New("queue full")

// Task wraps a payload with its retry bookkeeping.
type Task[T any] struct {
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes one task. A non-nil error schedules a retry until MaxRetries is exhausted.
type Handler[T any] func(context.Context, T) error

// Config tunes the worker pool.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	// RetryDelay is the first backoff; each further attempt doubles it up to MaxDelay.
	RetryDelay time.Duration
	MaxDelay   time.Duration
	Logger     *zap.Logger
	// OnDrop is called when a task exhausts its retries or cannot be requeued.
	OnDrop func(payload any, err error)
}

// Queue dispatches tasks of type T to Handler.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config

	tasks   chan Task[T]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pending sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// New builds a queue; call Start before enqueueing.
func New[T any](name string, handler Handler[T], cfg Config) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.RetryDelay {
		cfg.MaxDelay = 30 * cfg.RetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		tasks:   make(chan Task[T], cfg.BufferSize),
	}
}

// Start launches the workers. Repeated calls are no-ops.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.running = true
	q.cfg.Logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.cfg.Workers))
}

// Stop cancels outstanding retries and waits for in-flight handlers to return.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.cfg.Logger.Info("queue stopped", zap.String("queue", q.name))
}

// Enqueue adds a payload without blocking.
func (q *Queue[T]) Enqueue(payload T) error {
	return q.push(Task[T]{Payload: payload, Enqueued: time.Now().UTC()})
}

// Wait blocks until every accepted task has either succeeded or been dropped.
func (q *Queue[T]) Wait() {
	q.pending.Wait()
}

func (q *Queue[T]) push(task Task[T]) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return fmt.Errorf("%s: %w", q.name, ErrNotRunning)
	}
	if task.Attempt == 0 {
		q.pending.Add(1)
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		if task.Attempt == 0 {
			q.pending.Done()
		}
		return fmt.Errorf("%s: %w", q.name, ErrQueueFull)
	}
}

func (q *Queue[T]) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			q.drain()
			return
		case task := <-q.tasks:
			q.run(task)
		}
	}
}

// drain settles whatever is still buffered so Wait does not hang after Stop.
func (q *Queue[T]) drain() {
	for {
		select {
		case task := <-q.tasks:
			q.drop(task, q.ctx.Err())
		default:
			return
		}
	}
}

func (q *Queue[T]) run(task Task[T]) {
	err := q.handler(q.ctx, task.Payload)
	if err == nil {
		q.pending.Done()
		return
	}
	task.Attempt++
	if task.Attempt > q.cfg.MaxRetries {
		q.drop(task, err)
		return
	}
	delay := q.backoff(task.Attempt)
	q.cfg.Logger.Warn("task failed, retrying",
		zap.String("queue", q.name),
		zap.Int("attempt", task.Attempt),
		zap.Duration("delay", delay),
		zap.Error(err),
	)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.drop(task, q.ctx.Err())
		case <-timer.C:
			if pushErr := q.push(task); pushErr != nil {
				q.drop(task, pushErr)
			}
		}
	}()
}

func (q *Queue[T]) backoff(attempt int) time.Duration {
	delay := q.cfg.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= q.cfg.MaxDelay {
			return q.cfg.MaxDelay
		}
	}
	return delay
}

func (q *Queue[T]) drop(task Task[T], err error) {
	defer q.pending.Done()
	q.cfg.Logger.Error("task dropped",
		zap.String("queue", q.name),
		zap.Int("attempt", task.Attempt),
		zap.Time("enqueued", task.Enqueued),
		zap.Error(err),
	)
	if q.cfg.OnDrop != nil {
		q.cfg.OnDrop(task.Payload, err)
	}
}
