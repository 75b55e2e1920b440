package browser

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/wisdomia/uiverify/internal/config"
)

// playwrightSession drives chromium through playwright-go.
type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	timeout time.Duration
	log     *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

func openPlaywright(cfg config.BrowserConfig, log *zap.Logger) (Session, error) {
	if cfg.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("could not install playwright browsers: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	s := &playwrightSession{
		pw:      pw,
		timeout: timeoutOrDefault(cfg.Timeout),
		log:     log,
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	}
	if cfg.SlowMo > 0 {
		launch.SlowMo = playwright.Float(float64(cfg.SlowMo.Milliseconds()))
	}
	if cfg.ExecPath != "" {
		launch.ExecutablePath = playwright.String(cfg.ExecPath)
	}
	if cfg.NoSandbox {
		launch.ChromiumSandbox = playwright.Bool(false)
	}

	s.browser, err = pw.Chromium.Launch(launch)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	s.context, err = s.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  cfg.ViewportWidth,
			Height: cfg.ViewportHeight,
		},
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("could not create context: %w", err)
	}

	s.page, err = s.context.NewPage()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	s.page.SetDefaultTimeout(float64(s.timeout.Milliseconds()))

	return s, nil
}

func (s *playwrightSession) Navigate(url string) error {
	_, err := s.page.Goto(url)
	if err != nil && strings.Contains(err.Error(), "ERR_TOO_MANY_REDIRECTS") {
		return fmt.Errorf("redirect loop navigating to %s: %w", url, err)
	}
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *playwrightSession) URL() (string, error) {
	return s.page.URL(), nil
}

func (s *playwrightSession) Fill(selector, value string) error {
	if err := s.page.Locator(selector).First().Fill(value); err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}
	return nil
}

func (s *playwrightSession) Click(selector string) error {
	if err := s.page.Locator(selector).First().Click(); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

func (s *playwrightSession) ClickText(text string) error {
	return s.Click(textSelector(text))
}

func (s *playwrightSession) ClickFirst(selector string) error {
	return s.Click(selector)
}

func (s *playwrightSession) Count(selector string) (int, error) {
	n, err := s.page.Locator(selector).Count()
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", selector, err)
	}
	return n, nil
}

func (s *playwrightSession) InputValue(selector string) (string, error) {
	v, err := s.page.Locator(selector).First().InputValue()
	if err != nil {
		return "", fmt.Errorf("failed to read value of %s: %w", selector, err)
	}
	return v, nil
}

func (s *playwrightSession) WaitForURL(url string, timeout time.Duration) error {
	err := s.page.WaitForURL(url, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("waiting for %s (at %s): %w", url, s.page.URL(), wrapTimeout(err))
	}
	return nil
}

func (s *playwrightSession) WaitForText(text string) error {
	return s.waitVisible(textSelector(text))
}

func (s *playwrightSession) WaitForSelector(selector string) error {
	return s.waitVisible(selector)
}

func (s *playwrightSession) waitVisible(selector string) error {
	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State: playwright.WaitForSelectorStateVisible,
	})
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, wrapTimeout(err))
	}
	return nil
}

func (s *playwrightSession) WaitForNetworkIdle() error {
	err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})
	if err != nil {
		return fmt.Errorf("waiting for network idle: %w", wrapTimeout(err))
	}
	return nil
}

func (s *playwrightSession) ExpectTextVisible(text string) error {
	expect := playwright.NewPlaywrightAssertions(float64(s.timeout.Milliseconds()))
	if err := expect.Locator(s.page.GetByText(text).First()).ToBeVisible(); err != nil {
		return fmt.Errorf("expected %q to be visible: %w", text, err)
	}
	return nil
}

func (s *playwrightSession) Pause(d time.Duration) {
	s.page.WaitForTimeout(float64(d.Milliseconds()))
}

func (s *playwrightSession) Screenshot(path string) error {
	if _, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	}); err != nil {
		return fmt.Errorf("failed to capture screenshot %s: %w", path, err)
	}
	return nil
}

// Close closes the page, context and browser, then stops the driver.
func (s *playwrightSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.page != nil {
			errs = append(errs, s.page.Close())
		}
		if s.context != nil {
			errs = append(errs, s.context.Close())
		}
		if s.browser != nil {
			errs = append(errs, s.browser.Close())
		}
		if s.pw != nil {
			errs = append(errs, s.pw.Stop())
		}
		s.closeErr = errors.Join(errs...)
		if s.closeErr != nil && s.log != nil {
			s.log.Debug("browser close reported errors", zap.Error(s.closeErr))
		}
	})
	return s.closeErr
}

func wrapTimeout(err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
