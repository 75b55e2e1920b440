package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wisdomia/uiverify/internal/api"
	"github.com/wisdomia/uiverify/internal/config"
	"github.com/wisdomia/uiverify/internal/runner"
)

var errNothingScheduled = errors.New("no flows scheduled: set schedule.admin, schedule.signin or schedule.probe")

func newScheduleCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run flows on cron schedules and serve their status",
		Long: `Schedule registers every flow that has a cron expression (seconds first,
e.g. "0 */15 * * * *") and serves the status API until SIGINT or SIGTERM.
Runs never overlap. The config file is watched and reloaded on change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.schedule(ctx)
		},
	}
}

func (a *app) schedule(ctx context.Context) error {
	exec := a.executor()

	registry := runner.NewTaskRegistry()
	if runner.RegisterFlows(registry, a.cfg.Schedule, exec) == 0 {
		return errNothingScheduled
	}

	if a.configFile != "" {
		config.Watch(a.v, a.log, func(next *config.Config) {
			if _, err := config.ValidateConfig(next); err != nil {
				a.log.Warn("Ignoring invalid config change", zap.Error(err))
				return
			}
			exec.SetConfig(next)
			a.log.Info("Configuration reloaded", zap.String("file", a.configFile))
		})
	}

	var metricsHandler http.Handler
	if a.recorder != nil {
		metricsHandler = a.recorder.Handler()
	}
	server := api.NewServer(exec, metricsHandler, a.log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := runner.NewRunner(registry, a.log).Start(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return server.Serve(ctx, a.cfg.Server.GetServerAddr(), a.cfg.Server.ShutdownTimeout)
	})
	return g.Wait()
}
