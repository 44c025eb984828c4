package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by TryEnqueue when the buffer has no room.
var ErrQueueFull = errors.New("queue full")

// Task is a unit of background work referencing a persisted record.
type Task struct {
	ID         string
	Kind       string
	Attempt    int
	EnqueuedAt time.Time
}

// Handler processes a task. Returning an error schedules a retry until
// the attempt budget is spent.
type Handler func(context.Context, Task) error

// Config configures the worker pool.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	// OnGiveUp runs once a task exhausts its retries.
	OnGiveUp func(Task, error)
}

// Pool dispatches tasks to a fixed set of goroutines with linear retry backoff.
type Pool struct {
	name    string
	handler Handler
	cfg     Config
	logger  *zap.Logger

	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewPool builds a pool; call Start before enqueueing.
func NewPool(name string, handler Handler, cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 8
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pool{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With(zap.String("pool", name)),
		tasks:   make(chan Task, cfg.BufferSize),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	p.running = true
	p.logger.Info("worker pool started", zap.Int("workers", p.cfg.Workers))
}

// Stop cancels in-flight work and waits for every worker to return.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.running = false
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Enqueue blocks until the task is buffered, ctx ends or the pool stops.
func (p *Pool) Enqueue(ctx context.Context, task Task) error {
	poolCtx, err := p.context()
	if err != nil {
		return err
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-poolCtx.Done():
		return fmt.Errorf("pool %s stopped: %w", p.name, poolCtx.Err())
	case p.tasks <- task:
		return nil
	}
}

// TryEnqueue buffers the task without blocking.
func (p *Pool) TryEnqueue(task Task) error {
	if _, err := p.context(); err != nil {
		return err
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of buffered tasks.
func (p *Pool) Pending() int {
	return len(p.tasks)
}

func (p *Pool) context() (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil, fmt.Errorf("pool %s not running", p.name)
	}
	return p.ctx, nil
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.tasks:
			if err := p.handler(p.ctx, task); err != nil {
				p.retry(task, err)
			}
		}
	}
}

func (p *Pool) retry(task Task, cause error) {
	task.Attempt++
	fields := []zap.Field{zap.String("task_id", task.ID), zap.String("kind", task.Kind), zap.Int("attempt", task.Attempt), zap.Error(cause)}
	if task.Attempt > p.cfg.MaxRetries {
		p.logger.Error("task exhausted retries", fields...)
		if p.cfg.OnGiveUp != nil {
			p.cfg.OnGiveUp(task, cause)
		}
		return
	}
	p.logger.Warn("task failed, retrying", fields...)

	delay := p.cfg.RetryDelay * time.Duration(task.Attempt)
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-p.ctx.Done():
		case <-timer.C:
			if err := p.Enqueue(p.ctx, task); err != nil {
				p.logger.Error("requeue task", zap.String("task_id", task.ID), zap.Error(err))
			}
		}
	}()
}
