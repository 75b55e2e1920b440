package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaults(t *testing.T) {
	t.Run("Defaults reproduce the built-in literals", func(t *testing.T) {
		loaded, err := Load(viper.New(), "")
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:3000", loaded.Target.BaseURL)
		assert.Equal(t, "/admin", loaded.Admin.EntryPath)
		assert.Equal(t, "/admin/dashboard", loaded.Admin.DashboardPath)
		assert.Equal(t, "wisdomia2024", loaded.Admin.Password)
		assert.Equal(t, 10*time.Second, loaded.Admin.LoginTimeout)
		assert.Equal(t, "Dashboard Overview", loaded.Admin.DashboardMarker)
		assert.Equal(t, "Articles", loaded.Admin.SectionLinkText)
		assert.Equal(t, "Content Management", loaded.Admin.SectionMarker)
		assert.Equal(t, "a[href^='/admin/edit/']", loaded.Admin.EditLinkSelector)
		assert.Equal(t, "Edit Article", loaded.Admin.EditMarker)
		assert.Equal(t, "input[name='title']", loaded.Admin.TitleSelector)

		assert.Equal(t, "/signin", loaded.SignIn.Path)
		assert.Equal(t, "test@example.com", loaded.SignIn.Email)
		assert.Equal(t, "password", loaded.SignIn.Password)
		assert.Equal(t, 500*time.Millisecond, loaded.SignIn.SettleDelay)

		assert.Equal(t, "playwright", loaded.Browser.Driver)
		assert.True(t, loaded.Browser.Headless)
		assert.True(t, loaded.Policy.AdminFatal)
		assert.False(t, loaded.Policy.SignInFatal)
		assert.True(t, loaded.Policy.ProbeFatal)
	})

	t.Run("Screenshot names match the fixed artifact paths", func(t *testing.T) {
		loaded, err := Load(viper.New(), "")
		require.NoError(t, err)

		assert.Equal(t, filepath.Join("verification", "dashboard_articles_secured.png"),
			loaded.Screenshots.Path(loaded.Admin.SectionScreenshot))
		assert.Equal(t, filepath.Join("verification", "edit_page_secured.png"),
			loaded.Screenshots.Path(loaded.Admin.EditScreenshot))
		assert.Equal(t, filepath.Join("verification", "signin_page_initial.png"),
			loaded.Screenshots.Path(loaded.SignIn.InitialScreenshot))
		assert.Equal(t, filepath.Join("verification", "signin_page_submitted.png"),
			loaded.Screenshots.Path(loaded.SignIn.SubmittedScreenshot))
	})
}

func TestLoadFromFile(t *testing.T) {
	t.Run("Load valid YAML config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "uiverify.yaml")

		configContent := `
target:
  base_url: http://staging.internal:8080

admin:
  password: s3cret-admin
  login_timeout: 3s

browser:
  driver: chromedp
  headless: false

screenshots:
  dir: out
`
		require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

		loaded, err := LoadFromFile(configFile)
		require.NoError(t, err)

		assert.Equal(t, "http://staging.internal:8080", loaded.Target.BaseURL)
		assert.Equal(t, "s3cret-admin", loaded.Admin.Password)
		assert.Equal(t, 3*time.Second, loaded.Admin.LoginTimeout)
		assert.Equal(t, "chromedp", loaded.Browser.Driver)
		assert.False(t, loaded.Browser.Headless)
		assert.Equal(t, "out", loaded.Screenshots.Dir)
		// untouched keys keep their defaults
		assert.Equal(t, "Edit Article", loaded.Admin.EditMarker)
	})

	t.Run("Error on non-existent file", func(t *testing.T) {
		_, err := LoadFromFile("/non/existent/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("Error on invalid YAML", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "invalid-config.yaml")

		invalidContent := `
target:
  base_url: [this is invalid
`
		require.NoError(t, os.WriteFile(configFile, []byte(invalidContent), 0644))

		_, err := LoadFromFile(configFile)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("UIVERIFY_TARGET_BASE_URL", "http://127.0.0.1:4000")
	t.Setenv("UIVERIFY_ADMIN_PASSWORD", "from-env")
	t.Setenv("UIVERIFY_BROWSER_HEADLESS", "false")
	t.Setenv("UIVERIFY_SIGNIN_SETTLE_DELAY", "750ms")

	loaded, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:4000", loaded.Target.BaseURL)
	assert.Equal(t, "from-env", loaded.Admin.Password)
	assert.False(t, loaded.Browser.Headless)
	assert.Equal(t, 750*time.Millisecond, loaded.SignIn.SettleDelay)
}

func TestTargetURL(t *testing.T) {
	testCases := []struct {
		name     string
		base     string
		path     string
		expected string
	}{
		{"plain join", "http://localhost:3000", "/admin", "http://localhost:3000/admin"},
		{"trailing slash on base", "http://localhost:3000/", "/signin", "http://localhost:3000/signin"},
		{"relative path", "http://localhost:3000", "admin/dashboard", "http://localhost:3000/admin/dashboard"},
		{"empty path", "http://localhost:3000/", "", "http://localhost:3000"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			target := TargetConfig{BaseURL: tc.base}
			assert.Equal(t, tc.expected, target.URL(tc.path))
		})
	}
}

func TestServerConfig(t *testing.T) {
	server := ServerConfig{Host: "0.0.0.0", Port: 9464}
	assert.Equal(t, "0.0.0.0:9464", server.GetServerAddr())
}

func TestReloadHandler(t *testing.T) {
	t.Run("Valid change is handed over", func(t *testing.T) {
		v := viper.New()
		_, err := Load(v, "")
		require.NoError(t, err)
		v.Set("target.base_url", "http://127.0.0.1:5000")

		var got *Config
		reloadHandler(v, zap.NewNop(), func(next *Config) { got = next })(fsnotify.Event{Name: "uiverify.yaml"})

		require.NotNil(t, got)
		assert.Equal(t, "http://127.0.0.1:5000", got.Target.BaseURL)
	})

	t.Run("Undecodable change is logged and dropped", func(t *testing.T) {
		v := viper.New()
		_, err := Load(v, "")
		require.NoError(t, err)
		v.Set("browser.timeout", "soon")

		core, logs := observer.New(zap.WarnLevel)
		called := false
		reloadHandler(v, zap.New(core), func(*Config) { called = true })(fsnotify.Event{Name: "uiverify.yaml"})

		assert.False(t, called)
		entries := logs.FilterMessage("Failed to reload config").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "uiverify.yaml", entries[0].ContextMap()["file"])
	})
}
