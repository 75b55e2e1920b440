package runner

import (
	"context"
	"sync"
	"time"

	"github.com/wisdomia/uiverify/internal/config"
	"github.com/wisdomia/uiverify/internal/flows"
)

// Task is a unit of work run on a cron schedule
type Task interface {
	// Name returns the unique name of the task
	Name() string

	// Schedule returns the cron expression, seconds first
	Schedule() string

	Run(ctx context.Context) error

	// Timeout bounds a single run
	Timeout() time.Duration
}

// TaskRegistry holds all registered tasks
type TaskRegistry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks: make(map[string]Task),
	}
}

// Register adds a task, replacing any task with the same name
func (r *TaskRegistry) Register(task Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.Name()] = task
}

func (r *TaskRegistry) Get(name string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, exists := r.tasks[name]
	return task, exists
}

// All returns a snapshot of the registered tasks
func (r *TaskRegistry) All() map[string]Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Task, len(r.tasks))
	for name, task := range r.tasks {
		out[name] = task
	}
	return out
}

// FlowRunner runs a flow by name. *flows.Executor satisfies it.
type FlowRunner interface {
	Run(ctx context.Context, name string) (*flows.Result, error)
}

// FlowTask runs one verification flow on a schedule.
type FlowTask struct {
	flow     string
	schedule string
	timeout  time.Duration
	runner   FlowRunner
}

func NewFlowTask(flow, schedule string, timeout time.Duration, runner FlowRunner) *FlowTask {
	return &FlowTask{flow: flow, schedule: schedule, timeout: timeout, runner: runner}
}

func (t *FlowTask) Name() string { return t.flow }
func (t *FlowTask) Schedule() string { return t.schedule }
func (t *FlowTask) Timeout() time.Duration { return t.timeout }

// Run executes the flow. Non-fatal failures are recorded on the result and
// do not surface as task errors.
func (t *FlowTask) Run(ctx context.Context) error {
	_, err := t.runner.Run(ctx, t.flow)
	return err
}

// RegisterFlows adds a task for every flow with a schedule expression and
// returns how many were registered.
func RegisterFlows(registry *TaskRegistry, sched config.ScheduleConfig, runner FlowRunner) int {
	exprs := map[string]string{
		flows.Admin:  sched.Admin,
		flows.SignIn: sched.SignIn,
		flows.Probe:  sched.Probe,
	}
	n := 0
	for _, name := range flows.Names() {
		if exprs[name] == "" {
			continue
		}
		registry.Register(NewFlowTask(name, exprs[name], sched.Timeout, runner))
		n++
	}
	return n
}
