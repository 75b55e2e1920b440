package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/wisdomia/uiverify/internal/config"
)

// chromedpSession drives Chrome over the DevTools protocol without the
// playwright driver process.
type chromedpSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	requests    *requestTracker

	closeOnce sync.Once
	closeErr  error
}

func openChromedp(cfg config.BrowserConfig, log *zap.Logger) (Session, error) {
	options := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	if !cfg.Headless {
		options = append(options, chromedp.Flag("headless", false), chromedp.Flag("hide-scrollbars", false))
	}
	if cfg.NoSandbox {
		options = append(options, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		options = append(options, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), options...)

	sugar := zap.NewNop().Sugar()
	if log != nil {
		sugar = log.Named("chromedp").Sugar()
	}
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)

	s := &chromedpSession{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     timeoutOrDefault(cfg.Timeout),
		requests:    newRequestTracker(),
	}
	chromedp.ListenTarget(ctx, s.requests.handle)

	// Start the browser without a timeout; it lives until Close.
	if err := chromedp.Run(ctx, network.Enable()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}
	return s, nil
}

func (s *chromedpSession) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	err := chromedp.Run(ctx, actions...)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
	}
	return err
}

func (s *chromedpSession) Navigate(url string) error {
	if err := s.run(s.timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *chromedpSession) URL() (string, error) {
	var url string
	if err := s.run(s.timeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read page location: %w", err)
	}
	return url, nil
}

func (s *chromedpSession) Fill(selector, value string) error {
	err := s.run(s.timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}
	return nil
}

func (s *chromedpSession) Click(selector string) error {
	if err := s.run(s.timeout, chromedp.Click(selector, chromedp.NodeVisible, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

func (s *chromedpSession) ClickText(text string) error {
	if err := s.run(s.timeout, chromedp.Click(textXPath(text), chromedp.NodeVisible, chromedp.BySearch)); err != nil {
		return fmt.Errorf("failed to click text %q: %w", text, err)
	}
	return nil
}

// ClickFirst relies on ByQuery resolving to the first match in document order.
func (s *chromedpSession) ClickFirst(selector string) error {
	return s.Click(selector)
}

func (s *chromedpSession) Count(selector string) (int, error) {
	var nodes []*cdp.Node
	if err := s.run(s.timeout, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", selector, err)
	}
	return len(nodes), nil
}

func (s *chromedpSession) InputValue(selector string) (string, error) {
	var value string
	if err := s.run(s.timeout, chromedp.Value(selector, &value, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read value of %s: %w", selector, err)
	}
	return value, nil
}

func (s *chromedpSession) WaitForURL(url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var current string
	for {
		if err := s.run(s.timeout, chromedp.Location(&current)); err != nil {
			return fmt.Errorf("waiting for %s: %w", url, err)
		}
		if current == url {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("waiting for %s (at %s): %w after %s", url, current, ErrTimeout, timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (s *chromedpSession) WaitForText(text string) error {
	if err := s.run(s.timeout, chromedp.WaitVisible(textXPath(text), chromedp.BySearch)); err != nil {
		return fmt.Errorf("waiting for text %q: %w", text, err)
	}
	return nil
}

func (s *chromedpSession) WaitForSelector(selector string) error {
	if err := s.run(s.timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return nil
}

func (s *chromedpSession) WaitForNetworkIdle() error {
	deadline := time.Now().Add(s.timeout)
	for !s.requests.idle(time.Now(), NetworkQuiescence) {
		if time.Now().After(deadline) {
			return fmt.Errorf("waiting for network idle: %w after %s", ErrTimeout, s.timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

func (s *chromedpSession) ExpectTextVisible(text string) error {
	if err := s.run(s.timeout, chromedp.WaitVisible(textXPath(text), chromedp.BySearch)); err != nil {
		return fmt.Errorf("expected %q to be visible: %w", text, err)
	}
	return nil
}

func (s *chromedpSession) Pause(d time.Duration) {
	time.Sleep(d)
}

func (s *chromedpSession) Screenshot(path string) error {
	var buf []byte
	if err := s.run(s.timeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("failed to capture screenshot %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot %s: %w", path, err)
	}
	return nil
}

// Close shuts the browser down and releases the allocator.
func (s *chromedpSession) Close() error {
	s.closeOnce.Do(func() {
		if s.ctx != nil {
			s.closeErr = chromedp.Cancel(s.ctx)
		}
		if s.cancel != nil {
			s.cancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
	})
	return s.closeErr
}

// requestTracker follows in-flight requests from Network domain events.
type requestTracker struct {
	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
}

func newRequestTracker() *requestTracker {
	return &requestTracker{
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}
}

func (r *requestTracker) handle(ev interface{}) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		r.started(ev.RequestID)
	case *network.EventLoadingFinished:
		r.finished(ev.RequestID)
	case *network.EventLoadingFailed:
		r.finished(ev.RequestID)
	}
}

func (r *requestTracker) started(id network.RequestID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight[id] = struct{}{}
	r.lastActivity = time.Now()
}

func (r *requestTracker) finished(id network.RequestID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)
	r.lastActivity = time.Now()
}

// idle reports whether nothing has been in flight for at least window.
func (r *requestTracker) idle(now time.Time, window time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight) == 0 && now.Sub(r.lastActivity) >= window
}
