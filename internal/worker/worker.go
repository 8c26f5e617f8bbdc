// Package worker runs background tasks on a bounded in-memory queue, with
// instrumentation hooks and graceful shutdown handling.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrStopped is returned by Submit once Stop has been called.
	ErrStopped = errors.New("worker: pool stopped")
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("worker: queue full")
)

// TaskFunc is the unit of background work.
type TaskFunc func(ctx context.Context) error

// Task is a queued TaskFunc with bookkeeping.
type Task struct {
	ID         string
	Name       string
	EnqueuedAt time.Time
	run        TaskFunc
}

// Instrumentation provides hooks for monitoring task lifecycle
type Instrumentation struct {
	OnEnqueue   func(task *Task)
	OnStart     func(task *Task)
	OnComplete  func(task *Task, duration time.Duration)
	OnFail      func(task *Task, err error, duration time.Duration)
	OnHeartbeat func(workerID string, stats Stats)
}

// Stats holds worker statistics
type Stats struct {
	TasksProcessed  int64
	TasksSucceeded  int64
	TasksFailed     int64
	ActiveWorkers   int
	QueueDepth      int
	LastProcessedAt time.Time
}

// Config holds worker configuration
type Config struct {
	// MaxConcurrent is the number of processor goroutines
	MaxConcurrent int
	// QueueSize bounds the number of tasks waiting for a processor
	QueueSize int
	// TaskTimeout is the maximum time allowed for a task to run
	TaskTimeout time.Duration
	// ShutdownTimeout is the maximum time Stop waits for queued tasks to drain
	ShutdownTimeout time.Duration
	// HeartbeatInterval is the interval for sending heartbeat metrics
	HeartbeatInterval time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:     4,
		QueueSize:         256,
		TaskTimeout:       2 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Pool is the background task processor
type Pool struct {
	config          Config
	logger          *zap.Logger
	instrumentation *Instrumentation

	workerID string
	queue    chan *Task
	wg       sync.WaitGroup
	stopCh   chan struct{}
	mu       sync.RWMutex
	started  bool
	stopped  bool

	statsMu         sync.RWMutex
	active          int
	tasksProcessed  int64
	tasksSucceeded  int64
	tasksFailed     int64
	lastProcessedAt time.Time
}

// New creates a new Pool instance
func New(config Config, logger *zap.Logger) *Pool {
	def := DefaultConfig()
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = def.MaxConcurrent
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = def.TaskTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = def.HeartbeatInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	workerID := "worker-" + uuid.NewString()
	return &Pool{
		config:          config,
		logger:          logger.With(zap.String("worker_id", workerID)),
		instrumentation: &Instrumentation{},
		workerID:        workerID,
		queue:           make(chan *Task, config.QueueSize),
		stopCh:          make(chan struct{}),
	}
}

// SetInstrumentation sets the instrumentation hooks
func (p *Pool) SetInstrumentation(inst *Instrumentation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if inst == nil {
		inst = &Instrumentation{}
	}
	p.instrumentation = inst
}

func (p *Pool) hooks() *Instrumentation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.instrumentation
}

// Start launches the processors. Tasks inherit ctx's values but not its
// cancellation: once queued they run to completion or time out.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	base := context.WithoutCancel(ctx)

	if p.hooks().OnHeartbeat != nil {
		p.wg.Add(1)
		go p.heartbeat()
	}

	for i := 0; i < p.config.MaxConcurrent; i++ {
		p.wg.Add(1)
		go p.processor(base, i)
	}

	p.logger.Info("worker pool started", zap.Int("processors", p.config.MaxConcurrent), zap.Int("queue_size", p.config.QueueSize))
}

// Submit queues fn without blocking and returns the task id.
func (p *Pool) Submit(name string, fn TaskFunc) (string, error) {
	task := &Task{
		ID:         uuid.NewString(),
		Name:       name,
		EnqueuedAt: time.Now(),
		run:        fn,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return "", ErrStopped
	}

	select {
	case p.queue <- task:
	default:
		return "", ErrQueueFull
	}

	if p.instrumentation.OnEnqueue != nil {
		p.instrumentation.OnEnqueue(task)
	}
	return task.ID, nil
}

// Stop stops accepting tasks and waits for queued and running tasks to finish.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.queue)
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	p.logger.Info("worker pool draining", zap.Int("queued", len(p.queue)))

	shutdownCtx, cancel := context.WithTimeout(ctx, p.config.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped")
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn("worker pool shutdown timeout exceeded", zap.Int("abandoned", len(p.queue)))
		return fmt.Errorf("worker: shutdown timeout exceeded")
	}
}

func (p *Pool) processor(base context.Context, id int) {
	defer p.wg.Done()

	for task := range p.queue {
		p.process(base, task)
	}
	p.logger.Debug("processor exiting", zap.Int("processor", id))
}

func (p *Pool) process(base context.Context, task *Task) {
	start := time.Now()
	hooks := p.hooks()

	p.statsMu.Lock()
	p.active++
	p.statsMu.Unlock()
	defer func() {
		p.statsMu.Lock()
		p.active--
		p.statsMu.Unlock()
	}()

	if hooks.OnStart != nil {
		hooks.OnStart(task)
	}

	ctx, cancel := context.WithTimeout(base, p.config.TaskTimeout)
	defer cancel()

	err := runSafely(ctx, task.run)
	duration := time.Since(start)

	p.statsMu.Lock()
	p.tasksProcessed++
	if err != nil {
		p.tasksFailed++
	} else {
		p.tasksSucceeded++
	}
	p.lastProcessedAt = time.Now()
	p.statsMu.Unlock()

	log := p.logger.With(zap.String("task_id", task.ID), zap.String("task", task.Name), zap.Duration("duration", duration))
	if err != nil {
		log.Error("task failed", zap.Error(err))
		if hooks.OnFail != nil {
			hooks.OnFail(task, err, duration)
		}
		return
	}

	log.Debug("task completed")
	if hooks.OnComplete != nil {
		hooks.OnComplete(task, duration)
	}
}

func runSafely(ctx context.Context, fn TaskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// RunInline executes fn on the calling goroutine with the same panic
// protection and timeout a queued task gets.
func (p *Pool) RunInline(ctx context.Context, name string, fn TaskFunc) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.TaskTimeout)
	defer cancel()

	err := runSafely(ctx, fn)
	if err != nil {
		p.logger.Error("inline task failed", zap.String("task", name), zap.Error(err))
	}
	return err
}

// heartbeat periodically sends stats updates
func (p *Pool) heartbeat() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if hook := p.hooks().OnHeartbeat; hook != nil {
				hook(p.workerID, p.Stats())
			}
		}
	}
}

// Stats returns current worker statistics
func (p *Pool) Stats() Stats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()

	return Stats{
		TasksProcessed:  p.tasksProcessed,
		TasksSucceeded:  p.tasksSucceeded,
		TasksFailed:     p.tasksFailed,
		ActiveWorkers:   p.active,
		QueueDepth:      len(p.queue),
		LastProcessedAt: p.lastProcessedAt,
	}
}
