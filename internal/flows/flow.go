// Package flows holds the scripted verification sequences and the executor
// that owns their browser sessions.
package flows

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wisdomia/uiverify/internal/browser"
	"github.com/wisdomia/uiverify/internal/config"
)

// Flow names.
const (
	Admin  = "admin"
	SignIn = "signin"
	Probe  = "probe"
)

var (
	ErrUnknownFlow          = errors.New("unknown flow")
	ErrScreenshotDirMissing = errors.New("screenshot directory does not exist")
)

// Names lists every flow in the order run-all executes them.
func Names() []string {
	return []string{Admin, SignIn, Probe}
}

// Flow is one scripted verification sequence. s is nil for flows that do not
// need a browser.
type Flow interface {
	Name() string
	NeedsBrowser() bool
	Run(ctx context.Context, s browser.Session, res *Result, log *zap.Logger) error
}

// New builds the named flow from cfg.
func New(name string, cfg *config.Config) (Flow, error) {
	switch name {
	case Admin:
		return NewAdminFlow(cfg), nil
	case SignIn:
		return NewSignInFlow(cfg), nil
	case Probe:
		return NewProbeFlow(cfg, nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlow, name)
	}
}

// capture writes a screenshot into the configured directory, which must
// already exist.
func capture(s browser.Session, shots config.ScreenshotsConfig, name string, res *Result, log *zap.Logger) error {
	path := shots.Path(name)
	if dir := filepath.Dir(path); dir != "." {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrScreenshotDirMissing, dir)
		}
	}
	if err := s.Screenshot(path); err != nil {
		return err
	}
	res.Screenshots = append(res.Screenshots, path)
	log.Info("Screenshot saved: "+path, zap.String("path", path))
	return nil
}

// waitAndExpect blocks until marker text appears, then asserts it is visible.
func waitAndExpect(s browser.Session, marker string) error {
	if err := s.WaitForText(marker); err != nil {
		return err
	}
	return s.ExpectTextVisible(marker)
}
