package flows

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wisdomia/uiverify/internal/browser"
	"github.com/wisdomia/uiverify/internal/config"
)

// RunObserver is told about every finished run.
type RunObserver interface {
	ObserveRun(flow, outcome string, duration time.Duration, screenshots int)
}

// Executor runs flows one at a time. It owns each flow's session: the
// session is opened before the flow starts and released exactly once after
// it ends, whatever the outcome.
type Executor struct {
	cfgMu sync.RWMutex
	cfg   *config.Config

	log      *zap.Logger
	launch   browser.Launcher
	observer RunObserver
	client   *http.Client

	runMu sync.Mutex

	latestMu sync.RWMutex
	latest   map[string]*Result
}

// Option configures an Executor.
type Option func(*Executor)

// WithLauncher replaces browser.Open.
func WithLauncher(l browser.Launcher) Option {
	return func(e *Executor) { e.launch = l }
}

// WithObserver reports finished runs, typically to metrics.
func WithObserver(o RunObserver) Option {
	return func(e *Executor) { e.observer = o }
}

// WithHTTPClient sets the client used by the probe flow.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) { e.client = c }
}

func NewExecutor(cfg *config.Config, log *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		cfg:    cfg,
		log:    log,
		launch: browser.Open,
		latest: make(map[string]*Result),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	return e
}

// SetConfig swaps the configuration used by subsequent runs.
func (e *Executor) SetConfig(cfg *config.Config) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	e.cfg = cfg
}

func (e *Executor) config() *config.Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

func (e *Executor) build(name string, cfg *config.Config) (Flow, error) {
	if name == Probe {
		return NewProbeFlow(cfg, e.client), nil
	}
	return New(name, cfg)
}

// Run executes the named flow. The returned error is non-nil only when the
// flow failed and the policy makes that failure fatal; the result carries
// the flow's own error either way.
func (e *Executor) Run(ctx context.Context, name string) (*Result, error) {
	cfg := e.config()
	flow, err := e.build(name, cfg)
	if err != nil {
		return nil, err
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	res := newResult(name)
	log := e.log.With(zap.String("flow", name), zap.String("run_id", res.RunID))

	res.finish(e.execute(ctx, flow, cfg, res, log))
	res.Fatal = res.Failed() && Fatal(cfg.Policy, name)

	switch {
	case res.Fatal:
		log.Error("Verification failed: "+res.Error, zap.Duration("duration", res.Duration))
	case res.Failed():
		log.Error("Error: "+res.Error, zap.Duration("duration", res.Duration))
	default:
		log.Info("Verification passed.", zap.Duration("duration", res.Duration))
	}

	e.record(res)

	if res.Fatal {
		return res, fmt.Errorf("%s flow failed: %w", name, res.Err)
	}
	return res, nil
}

func (e *Executor) execute(ctx context.Context, flow Flow, cfg *config.Config, res *Result, log *zap.Logger) (err error) {
	if cfg.Screenshots.CreateDir && cfg.Screenshots.Dir != "" {
		if err := os.MkdirAll(cfg.Screenshots.Dir, 0o755); err != nil {
			return fmt.Errorf("failed to create screenshot directory: %w", err)
		}
	}

	var session browser.Session
	if flow.NeedsBrowser() {
		session, err = e.launch(cfg.Browser, log)
		if err != nil {
			return fmt.Errorf("failed to open browser: %w", err)
		}
		defer func() {
			if closeErr := session.Close(); closeErr != nil {
				log.Debug("session close reported an error", zap.Error(closeErr))
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("flow panicked: %v", r)
		}
	}()
	return flow.Run(ctx, session, res, log)
}

// RunAll executes every flow in order and returns the first fatal error.
func (e *Executor) RunAll(ctx context.Context) ([]*Result, error) {
	var results []*Result
	var firstFatal error
	for _, name := range Names() {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := e.Run(ctx, name)
		if res != nil {
			results = append(results, res)
		}
		if err != nil && firstFatal == nil {
			firstFatal = err
		}
	}
	return results, firstFatal
}

func (e *Executor) record(res *Result) {
	e.latestMu.Lock()
	e.latest[res.Flow] = res
	e.latestMu.Unlock()

	if e.observer != nil {
		e.observer.ObserveRun(res.Flow, string(res.Outcome), res.Duration, len(res.Screenshots))
	}
}

// Latest returns the most recent result of the named flow.
func (e *Executor) Latest(name string) (*Result, bool) {
	e.latestMu.RLock()
	defer e.latestMu.RUnlock()
	res, ok := e.latest[name]
	return res, ok
}

// LatestAll returns the most recent result of every flow that has run,
// sorted by flow name.
func (e *Executor) LatestAll() []*Result {
	e.latestMu.RLock()
	defer e.latestMu.RUnlock()
	out := make([]*Result, 0, len(e.latest))
	for _, res := range e.latest {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Flow < out[j].Flow })
	return out
}

// Fatal reports whether a failure of the named flow should fail the process.
func Fatal(p config.PolicyConfig, name string) bool {
	switch name {
	case Admin:
		return p.AdminFatal
	case SignIn:
		return p.SignInFatal
	case Probe:
		return p.ProbeFatal
	default:
		return true
	}
}
