package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner executes registered tasks on their cron schedules
type Runner struct {
	cron     *cron.Cron
	registry *TaskRegistry
	logger   *zap.Logger
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRunner creates a new task runner. Schedules take a leading seconds field.
func NewRunner(registry *TaskRegistry, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		registry: registry,
		logger:   logger.Named("runner"),
	}
}

// Schedule registers every task with cron and starts the scheduler.
func (r *Runner) Schedule(ctx context.Context) error {
	names := make([]string, 0, len(r.registry.All()))
	for name := range r.registry.All() {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		task := r.registry.All()[name]
		r.logger.Info("Registering task", zap.String("task", name), zap.String("schedule", task.Schedule()))

		if _, err := r.cron.AddFunc(task.Schedule(), func() {
			r.executeTask(ctx, task)
		}); err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", name, err)
		}
	}

	r.cron.Start()
	r.logger.Info("Task runner started", zap.Int("tasks", len(names)))
	return nil
}

// Start schedules the tasks and blocks until ctx is cancelled, then stops the
// scheduler and returns ctx.Err(). Callers own signal handling and cancel ctx
// on shutdown.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.Schedule(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	r.Stop()
	return ctx.Err()
}

// executeTask runs a single task with its timeout
func (r *Runner) executeTask(ctx context.Context, task Task) {
	r.wg.Add(1)
	defer r.wg.Done()

	taskCtx, cancel := context.WithTimeout(ctx, task.Timeout())
	defer cancel()

	r.logger.Debug("Executing task", zap.String("task", task.Name()))

	start := time.Now()
	err := task.Run(taskCtx)
	duration := time.Since(start)

	if err != nil {
		r.logger.Warn("Task failed", zap.String("task", task.Name()), zap.Duration("duration", duration), zap.Error(err))
	} else {
		r.logger.Info("Task completed", zap.String("task", task.Name()), zap.Duration("duration", duration))
	}
}

// Stop stops scheduling and waits for running tasks to finish. Safe to call
// more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.logger.Info("Stopping task runner...")
		ctx := r.cron.Stop()
		r.wg.Wait()
		<-ctx.Done()
		r.logger.Info("Task runner stopped")
	})
}
