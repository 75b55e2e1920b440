// Package browser wraps the browser-automation drivers behind the small set of
// operations the verification flows need.
package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wisdomia/uiverify/internal/config"
)

// Supported driver names.
const (
	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"
)

// NetworkQuiescence is how long no request may be in flight before the
// network counts as idle.
const NetworkQuiescence = 500 * time.Millisecond

var (
	ErrUnknownDriver = errors.New("unknown browser driver")
	ErrTimeout       = errors.New("timed out")
)

// Session is a running browser with one active page. It is owned by a single
// flow and must be closed exactly once; Close is safe to call repeatedly.
type Session interface {
	// Navigate loads url and waits for the load event.
	Navigate(url string) error
	// URL reports the current page location.
	URL() (string, error)

	Fill(selector, value string) error
	Click(selector string) error
	// ClickText clicks the first element whose visible text contains text.
	ClickText(text string) error
	// ClickFirst clicks the first element matching selector in document order.
	ClickFirst(selector string) error
	Count(selector string) (int, error)
	InputValue(selector string) (string, error)

	WaitForURL(url string, timeout time.Duration) error
	WaitForText(text string) error
	WaitForSelector(selector string) error
	WaitForNetworkIdle() error
	// ExpectTextVisible asserts that text is rendered and visible.
	ExpectTextVisible(text string) error
	// Pause is a fixed delay, used only where no condition can be awaited.
	Pause(d time.Duration)

	Screenshot(path string) error
	Close() error
}

// Launcher opens a new session. Flows receive one so tests can substitute a
// scripted session.
type Launcher func(cfg config.BrowserConfig, log *zap.Logger) (Session, error)

// Open starts the configured driver.
func Open(cfg config.BrowserConfig, log *zap.Logger) (Session, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverPlaywright:
		return openPlaywright(cfg, log)
	case DriverChromedp:
		return openChromedp(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// textXPath matches elements owning a text node that contains text, skipping
// script and style contents.
func textXPath(text string) string {
	return "//*[not(self::script) and not(self::style)][text()[contains(normalize-space(.), " +
		xpathLiteral(text) + ")]]"
}

// textSelector is the playwright selector-engine form of a text match.
func textSelector(text string) string {
	return "text=" + text
}
