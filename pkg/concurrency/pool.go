// Package concurrency provides the bounded worker pool Stage B uses to
// fan out decode-join-price work across a fixed number of goroutines.
package concurrency

import (
	"fmt"
	"optionpricer/internal/core"
	"sync"
	"time"

	"github.com/alitto/pond"
)

// PoolConfig configures a WorkerPool.
type PoolConfig struct {
	Name        string
	MaxWorkers  int
	MaxCapacity int
	IdleTimeout time.Duration
	NonBlocking bool // If true, Submit returns an error instead of blocking when full.
}

// WorkerPool wraps alitto/pond with the pipeline's standard config
// defaults and structured logging.
type WorkerPool struct {
	pool   *pond.WorkerPool
	config PoolConfig
	logger core.ILogger
	mu     sync.RWMutex
}

// NewWorkerPool builds a WorkerPool per cfg, filling in defaults for any
// zero-valued field.
func NewWorkerPool(cfg PoolConfig, logger core.ILogger) *WorkerPool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = 100
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	strategy := pond.Strategy(pond.Balanced())

	pool := pond.New(
		cfg.MaxWorkers,
		cfg.MaxCapacity,
		pond.MinWorkers(1),
		pond.IdleTimeout(cfg.IdleTimeout),
		strategy,
		pond.PanicHandler(func(p interface{}) {
			logger.Error("worker pool panic recovered", "pool", cfg.Name, "panic", p)
		}),
	)

	return &WorkerPool{
		pool:   pool,
		config: cfg,
		logger: logger.WithField("component", "worker_pool").WithField("pool", cfg.Name),
	}
}

// Submit queues task. If the pool is configured NonBlocking, Submit
// returns an error rather than blocking when the queue is full; a
// pricing task dropped this way is a lost quote, never a stuck goroutine.
func (wp *WorkerPool) Submit(task func()) error {
	if wp.config.NonBlocking {
		if !wp.pool.TrySubmit(task) {
			return fmt.Errorf("worker pool '%s' is full (capacity: %d)", wp.config.Name, wp.config.MaxCapacity)
		}
		return nil
	}

	wp.pool.Submit(task)
	return nil
}

// SubmitAndWait submits task and blocks until it has run, used by tests
// that need a single pricing task's side effects before asserting.
func (wp *WorkerPool) SubmitAndWait(task func()) {
	done := make(chan struct{})
	wp.pool.Submit(func() {
		task()
		close(done)
	})
	<-done
}

// Stop drains and joins the pool, waiting for every in-flight pricing
// task to finish before returning.
func (wp *WorkerPool) Stop() {
	wp.pool.StopAndWait()
}

// Stats reports the pool's current worker and task counters, logged once
// at shutdown so a stall or a backlog of failed tasks shows up without
// needing a live metrics scrape.
func (wp *WorkerPool) Stats() map[string]interface{} {
	return map[string]interface{}{
		"running_workers":  wp.pool.RunningWorkers(),
		"idle_workers":     wp.pool.IdleWorkers(),
		"submitted_tasks":  wp.pool.SubmittedTasks(),
		"waiting_tasks":    wp.pool.WaitingTasks(),
		"successful_tasks": wp.pool.SuccessfulTasks(),
		"failed_tasks":     wp.pool.FailedTasks(),
	}
}
