package flows

import (
	"context"

	"go.uber.org/zap"

	"github.com/wisdomia/uiverify/internal/browser"
	"github.com/wisdomia/uiverify/internal/config"
)

// SignInFlow captures the sign-in page before and after submitting
// placeholder credentials. The post-submit state is recorded, not asserted.
type SignInFlow struct {
	target      config.TargetConfig
	cfg         config.SignInConfig
	screenshots config.ScreenshotsConfig
}

func NewSignInFlow(cfg *config.Config) *SignInFlow {
	return &SignInFlow{
		target:      cfg.Target,
		cfg:         cfg.SignIn,
		screenshots: cfg.Screenshots,
	}
}

func (f *SignInFlow) Name() string       { return SignIn }
func (f *SignInFlow) NeedsBrowser() bool { return true }

// Run stops interacting after the first failing step but still attempts both
// screenshot checkpoints, so every run leaves evidence of the page state.
func (f *SignInFlow) Run(ctx context.Context, s browser.Session, res *Result, log *zap.Logger) error {
	var firstErr error
	do := func(step func() error) {
		if firstErr != nil {
			return
		}
		if err := ctx.Err(); err != nil {
			firstErr = err
			return
		}
		firstErr = step()
	}
	checkpoint := func(name string) {
		if err := capture(s, f.screenshots, name, res, log); err != nil {
			if firstErr == nil {
				firstErr = err
				return
			}
			log.Warn("screenshot checkpoint failed", zap.String("name", name), zap.Error(err))
		}
	}

	url := f.target.URL(f.cfg.Path)
	log.Info("Navigating to sign-in page...", zap.String("url", url))
	do(func() error { return s.Navigate(url) })
	do(func() error { return s.WaitForSelector(f.cfg.FormSelector) })
	checkpoint(f.cfg.InitialScreenshot)

	do(func() error { return s.Fill(f.cfg.EmailSelector, f.cfg.Email) })
	do(func() error { return s.Fill(f.cfg.PasswordSelector, f.cfg.Password) })
	do(func() error { return s.Click(f.cfg.SubmitSelector) })
	do(func() error {
		s.Pause(f.cfg.SettleDelay)
		return nil
	})
	checkpoint(f.cfg.SubmittedScreenshot)

	return firstErr
}
