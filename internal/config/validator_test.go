package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	loaded, err := Load(viper.New(), "")
	require.NoError(t, err)
	return loaded
}

func TestValidator(t *testing.T) {
	t.Run("Defaults against localhost only warn", func(t *testing.T) {
		warnings, err := ValidateConfig(defaultConfig(t))
		require.NoError(t, err)
		assert.Len(t, warnings, 2)
		assert.Contains(t, warnings[0], "admin.password")
	})

	t.Run("Admin literal against a remote target fails", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Target.BaseURL = "https://wisdomia.example.com"

		warnings, err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "admin.password is using the built-in literal")
		assert.NotContains(t, err.Error(), "signin.password")
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "signin.password is using the built-in placeholder")
	})

	t.Run("Sign-in sections pass against a remote target", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Target.BaseURL = "https://wisdomia.example.com"

		warnings, err := ValidateConfig(cfg, SectionSignIn, SectionBrowser, SectionScreenshots)
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "signin.password")
	})

	t.Run("Unselected sections are not checked", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Target.BaseURL = "https://wisdomia.example.com"
		cfg.Browser.Driver = "selenium"
		cfg.Admin.LoginTimeout = 0

		warnings, err := ValidateConfig(cfg, SectionProbe)
		require.NoError(t, err)
		assert.Empty(t, warnings)

		_, err = ValidateConfig(cfg, SectionAdmin, SectionBrowser)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.driver")
		assert.Contains(t, err.Error(), "admin.login_timeout_ms")
	})

	t.Run("Target is always checked", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Target.BaseURL = "localhost:3000"

		_, err := ValidateConfig(cfg, SectionProbe)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "target.base_url")
	})

	t.Run("Remote target with real credentials passes", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Target.BaseURL = "https://wisdomia.example.com"
		cfg.Admin.Password = "rotated-admin-secret"
		cfg.SignIn.Password = "rotated-user-secret"

		warnings, err := ValidateConfig(cfg)
		require.NoError(t, err)
		assert.Empty(t, warnings)
	})

	t.Run("Schema violations are reported per field", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Target.BaseURL = "localhost:3000"
		cfg.Browser.Driver = "selenium"
		cfg.Admin.LoginTimeout = 0
		cfg.Logging.Format = "xml"

		_, err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "target.base_url")
		assert.Contains(t, err.Error(), "browser.driver")
		assert.Contains(t, err.Error(), "admin.login_timeout_ms")
		assert.Contains(t, err.Error(), "logging.format")
	})

	t.Run("Loopback IPs count as local", func(t *testing.T) {
		assert.True(t, isLocalTarget("http://127.0.0.1:3000"))
		assert.True(t, isLocalTarget("http://[::1]:3000"))
		assert.True(t, isLocalTarget("http://localhost"))
		assert.False(t, isLocalTarget("http://10.0.0.5:3000"))
		assert.False(t, isLocalTarget("://bad"))
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := `
# comment
UIVERIFY_TEST_DOTENV_A=alpha
export UIVERIFY_TEST_DOTENV_B="quoted value"
UIVERIFY_TEST_DOTENV_C='single'
UIVERIFY_TEST_DOTENV_EXISTING=from-file
UIVERIFY_TEST_DOTENV_EMPTY=
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0644))

	t.Setenv("UIVERIFY_TEST_DOTENV_EXISTING", "from-env")
	for _, key := range []string{"UIVERIFY_TEST_DOTENV_A", "UIVERIFY_TEST_DOTENV_B", "UIVERIFY_TEST_DOTENV_C"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	set, err := LoadDotEnv(envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 3, set)
	assert.Equal(t, "alpha", os.Getenv("UIVERIFY_TEST_DOTENV_A"))
	assert.Equal(t, "quoted value", os.Getenv("UIVERIFY_TEST_DOTENV_B"))
	assert.Equal(t, "single", os.Getenv("UIVERIFY_TEST_DOTENV_C"))
	assert.Equal(t, "from-env", os.Getenv("UIVERIFY_TEST_DOTENV_EXISTING"))
	_, hasEmpty := os.LookupEnv("UIVERIFY_TEST_DOTENV_EMPTY")
	assert.False(t, hasEmpty)
}

func TestLoadDotEnvRejectsMalformedFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("UIVERIFY_TEST_DOTENV_BAD\n"), 0644))

	set, err := LoadDotEnv(envFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), envFile)
	assert.Zero(t, set)
}
