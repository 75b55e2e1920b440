// Package cli implements the uiverify command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wisdomia/uiverify/internal/browser"
	"github.com/wisdomia/uiverify/internal/config"
	"github.com/wisdomia/uiverify/internal/flows"
	"github.com/wisdomia/uiverify/internal/logging"
	"github.com/wisdomia/uiverify/internal/metrics"
	"github.com/wisdomia/uiverify/internal/version"
)

// app is the state shared by every command of one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	envFiles   []string

	cfg      *config.Config
	log      *zap.Logger
	recorder *metrics.Recorder

	// overridable in tests
	launcher browser.Launcher
	client   *http.Client
	out      io.Writer
}

func newApp() *app {
	return &app{
		v:        viper.New(),
		envFiles: []string{".env"},
		out:      os.Stdout,
	}
}

// flowFailure marks an error whose details were already logged by the executor.
type flowFailure struct{ err error }

func (f *flowFailure) Error() string { return f.err.Error() }
func (f *flowFailure) Unwrap() error { return f.err }

// NewRootCommand builds the uiverify command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(newApp())
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "uiverify",
		Short: "Headless-browser verification of the admin dashboard and sign-in page",
		Long: `uiverify drives a headless browser through the admin dashboard and the
public sign-in page of a running deployment, saving screenshots as evidence.

Configuration comes from defaults, an optional YAML file, a .env file,
UIVERIFY_* environment variables and flags, in increasing precedence.`,
		Version:           version.String(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup() },
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Path to a YAML config file")
	flags.String("base-url", "", "Base URL of the target application")
	flags.String("driver", "", "Browser driver: playwright or chromedp")
	flags.Bool("headless", true, "Run the browser headless")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: console or json")
	flags.String("screenshot-dir", "", "Directory screenshots are written to")

	bindings := map[string]string{
		"target.base_url":  "base-url",
		"browser.driver":   "driver",
		"browser.headless": "headless",
		"logging.level":    "log-level",
		"logging.format":   "log-format",
		"screenshots.dir":  "screenshot-dir",
	}
	for key, flag := range bindings {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newFlowCommand(a, flows.Admin, "Verify the secured admin dashboard"),
		newFlowCommand(a, flows.SignIn, "Capture the sign-in page before and after a placeholder submission"),
		newFlowCommand(a, flows.Probe, "Check the health endpoint and stylesheet assets without a browser"),
		newAllCommand(a),
		newScheduleCommand(a),
		newConfigCommand(a),
		newVersionCommand(a),
	)
	return root
}

// setup loads .env, the configuration and the logger.
func (a *app) setup() error {
	if _, err := config.LoadDotEnv(a.envFiles...); err != nil {
		return err
	}

	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.log == nil {
		log, err := logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		a.log = log
	}

	if cfg.Metrics.Enabled && a.recorder == nil {
		a.recorder = metrics.NewRecorder()
	}
	return nil
}

// flowSections names the configuration sections each flow reads.
var flowSections = map[string][]string{
	flows.Admin:  {config.SectionAdmin, config.SectionBrowser, config.SectionScreenshots},
	flows.SignIn: {config.SectionSignIn, config.SectionBrowser, config.SectionScreenshots},
	flows.Probe:  {config.SectionProbe},
}

// validate checks the given sections (all when none are named), fails on
// configuration errors and logs warnings.
func (a *app) validate(sections ...string) error {
	warnings, err := config.ValidateConfig(a.cfg, sections...)
	for _, w := range warnings {
		a.log.Warn(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(w), "⚠️")))
	}
	return err
}

func (a *app) executor() *flows.Executor {
	var opts []flows.Option
	if a.launcher != nil {
		opts = append(opts, flows.WithLauncher(a.launcher))
	}
	if a.client != nil {
		opts = append(opts, flows.WithHTTPClient(a.client))
	}
	if a.recorder != nil {
		opts = append(opts, flows.WithObserver(a.recorder))
	}
	return flows.NewExecutor(a.cfg, a.log, opts...)
}

// writeTextfile exports metrics for the node exporter when configured.
func (a *app) writeTextfile() {
	if a.recorder == nil || a.cfg.Metrics.TextfilePath == "" {
		return
	}
	if err := a.recorder.WriteTextfile(a.cfg.Metrics.TextfilePath); err != nil {
		a.log.Warn("Failed to write metrics textfile", zap.Error(err))
	}
}

// Execute runs root and maps the outcome to a process exit status.
func Execute(root *cobra.Command) int {
	err := root.Execute()
	if err == nil {
		return 0
	}
	var failure *flowFailure
	if !errors.As(err, &failure) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return 1
}

// Main runs the command tree with args and returns the exit status.
func Main(args []string) int {
	root := NewRootCommand()
	root.SetArgs(args)
	return Execute(root)
}
