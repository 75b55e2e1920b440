package flows

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wisdomia/uiverify/internal/browser"
	"github.com/wisdomia/uiverify/internal/config"
)

const testBaseURL = "http://app.test"

// fakeSession is a scripted browser. Every call is recorded as "Op arg".
type fakeSession struct {
	url       string
	redirects map[string]string // navigate target -> landing URL
	onClick   map[string]string // selector -> URL after click
	visible   map[string]bool
	selectors map[string]bool
	counts    map[string]int
	values    map[string]string
	failOn    map[string]error
	panicOn   string

	calls  []string
	paused []time.Duration
	closed int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		redirects: map[string]string{},
		onClick:   map[string]string{},
		visible:   map[string]bool{},
		selectors: map[string]bool{},
		counts:    map[string]int{},
		values:    map[string]string{},
		failOn:    map[string]error{},
	}
}

func (f *fakeSession) call(op, arg string) error {
	key := op + " " + arg
	f.calls = append(f.calls, key)
	if f.panicOn == key {
		panic("driver crashed")
	}
	return f.failOn[key]
}

func (f *fakeSession) Navigate(url string) error {
	if err := f.call("Navigate", url); err != nil {
		return err
	}
	if to, ok := f.redirects[url]; ok {
		f.url = to
	} else {
		f.url = url
	}
	return nil
}

func (f *fakeSession) URL() (string, error) {
	if err := f.call("URL", ""); err != nil {
		return "", err
	}
	return f.url, nil
}

func (f *fakeSession) Fill(selector, value string) error {
	return f.call("Fill", selector+"="+value)
}

func (f *fakeSession) Click(selector string) error {
	if err := f.call("Click", selector); err != nil {
		return err
	}
	if to, ok := f.onClick[selector]; ok {
		f.url = to
	}
	return nil
}

func (f *fakeSession) ClickText(text string) error { return f.call("ClickText", text) }

func (f *fakeSession) ClickFirst(selector string) error { return f.call("ClickFirst", selector) }

func (f *fakeSession) Count(selector string) (int, error) {
	if err := f.call("Count", selector); err != nil {
		return 0, err
	}
	return f.counts[selector], nil
}

func (f *fakeSession) InputValue(selector string) (string, error) {
	if err := f.call("InputValue", selector); err != nil {
		return "", err
	}
	return f.values[selector], nil
}

func (f *fakeSession) WaitForURL(url string, timeout time.Duration) error {
	if err := f.call("WaitForURL", url); err != nil {
		return err
	}
	if f.url != url {
		return fmt.Errorf("waiting for %s (at %s): %w after %s", url, f.url, browser.ErrTimeout, timeout)
	}
	return nil
}

func (f *fakeSession) WaitForText(text string) error {
	if err := f.call("WaitForText", text); err != nil {
		return err
	}
	if !f.visible[text] {
		return fmt.Errorf("waiting for text=%s: %w", text, browser.ErrTimeout)
	}
	return nil
}

func (f *fakeSession) WaitForSelector(selector string) error {
	if err := f.call("WaitForSelector", selector); err != nil {
		return err
	}
	if !f.selectors[selector] {
		return fmt.Errorf("waiting for %s: %w", selector, browser.ErrTimeout)
	}
	return nil
}

func (f *fakeSession) WaitForNetworkIdle() error { return f.call("WaitForNetworkIdle", "") }

func (f *fakeSession) ExpectTextVisible(text string) error {
	if err := f.call("ExpectTextVisible", text); err != nil {
		return err
	}
	if !f.visible[text] {
		return fmt.Errorf("expected %q to be visible", text)
	}
	return nil
}

func (f *fakeSession) Pause(d time.Duration) {
	f.calls = append(f.calls, "Pause "+d.String())
	f.paused = append(f.paused, d)
}

func (f *fakeSession) Screenshot(path string) error {
	if err := f.call("Screenshot", path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("\x89PNG"), 0o644)
}

func (f *fakeSession) Close() error {
	f.closed++
	return nil
}

func (f *fakeSession) index(call string) int {
	for i, c := range f.calls {
		if c == call {
			return i
		}
	}
	return -1
}

func (f *fakeSession) called(prefix string) bool {
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// testConfig returns defaults aimed at testBaseURL with screenshots in a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)
	cfg.Target.BaseURL = testBaseURL
	cfg.Screenshots.Dir = t.TempDir()
	return cfg
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func launcherFor(s *fakeSession) browser.Launcher {
	return func(config.BrowserConfig, *zap.Logger) (browser.Session, error) {
		return s, nil
	}
}
