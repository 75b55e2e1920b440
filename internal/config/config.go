package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is prepended to every environment override, e.g. UIVERIFY_TARGET_BASE_URL.
const EnvPrefix = "UIVERIFY"

// Config represents the verifier configuration
type Config struct {
	Target      TargetConfig      `mapstructure:"target"`
	Admin       AdminConfig       `mapstructure:"admin"`
	SignIn      SignInConfig      `mapstructure:"signin"`
	Probe       ProbeConfig       `mapstructure:"probe"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Screenshots ScreenshotsConfig `mapstructure:"screenshots"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Report      ReportConfig      `mapstructure:"report"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Server      ServerConfig      `mapstructure:"server"`
	Policy      PolicyConfig      `mapstructure:"policy"`
}

type TargetConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// AdminConfig drives the admin dashboard flow. Selectors and marker texts
// describe the target application's pages.
type AdminConfig struct {
	EntryPath         string        `mapstructure:"entry_path"`
	DashboardPath     string        `mapstructure:"dashboard_path"`
	Password          string        `mapstructure:"password"`
	PasswordSelector  string        `mapstructure:"password_selector"`
	SubmitSelector    string        `mapstructure:"submit_selector"`
	LoginTimeout      time.Duration `mapstructure:"login_timeout"`
	DashboardMarker   string        `mapstructure:"dashboard_marker"`
	SectionLinkText   string        `mapstructure:"section_link_text"`
	SectionMarker     string        `mapstructure:"section_marker"`
	EditLinkSelector  string        `mapstructure:"edit_link_selector"`
	EditMarker        string        `mapstructure:"edit_marker"`
	TitleSelector     string        `mapstructure:"title_selector"`
	SectionScreenshot string        `mapstructure:"section_screenshot"`
	EditScreenshot    string        `mapstructure:"edit_screenshot"`
}

type SignInConfig struct {
	Path                string        `mapstructure:"path"`
	FormSelector        string        `mapstructure:"form_selector"`
	EmailSelector       string        `mapstructure:"email_selector"`
	PasswordSelector    string        `mapstructure:"password_selector"`
	SubmitSelector      string        `mapstructure:"submit_selector"`
	Email               string        `mapstructure:"email"`
	Password            string        `mapstructure:"password"`
	SettleDelay         time.Duration `mapstructure:"settle_delay"`
	InitialScreenshot   string        `mapstructure:"initial_screenshot"`
	SubmittedScreenshot string        `mapstructure:"submitted_screenshot"`
}

type ProbeConfig struct {
	HealthPath     string        `mapstructure:"health_path"`
	HomePath       string        `mapstructure:"home_path"`
	AssetSelector  string        `mapstructure:"asset_selector"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

type BrowserConfig struct {
	Driver         string        `mapstructure:"driver"`
	Headless       bool          `mapstructure:"headless"`
	SlowMo         time.Duration `mapstructure:"slow_mo"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ViewportWidth  int           `mapstructure:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height"`
	ExecPath       string        `mapstructure:"exec_path"`
	NoSandbox      bool          `mapstructure:"no_sandbox"`
	Install        bool          `mapstructure:"install"`
}

type ScreenshotsConfig struct {
	Dir       string `mapstructure:"dir"`
	CreateDir bool   `mapstructure:"create_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	TextfilePath string `mapstructure:"textfile_path"`
}

type ReportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// ScheduleConfig holds cron expressions (with seconds) per flow. An empty
// expression leaves the flow unscheduled.
type ScheduleConfig struct {
	Admin   string        `mapstructure:"admin"`
	SignIn  string        `mapstructure:"signin"`
	Probe   string        `mapstructure:"probe"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PolicyConfig decides which failed flows produce a non-zero exit status.
type PolicyConfig struct {
	AdminFatal  bool `mapstructure:"admin_fatal"`
	SignInFatal bool `mapstructure:"signin_fatal"`
	ProbeFatal  bool `mapstructure:"probe_fatal"`
}

// SetDefaults registers every key with its default so that environment
// overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("target.base_url", "http://localhost:3000")

	v.SetDefault("admin.entry_path", "/admin")
	v.SetDefault("admin.dashboard_path", "/admin/dashboard")
	v.SetDefault("admin.password", "wisdomia2024")
	v.SetDefault("admin.password_selector", "input[type='password']")
	v.SetDefault("admin.submit_selector", "button[type='submit']")
	v.SetDefault("admin.login_timeout", 10*time.Second)
	v.SetDefault("admin.dashboard_marker", "Dashboard Overview")
	v.SetDefault("admin.section_link_text", "Articles")
	v.SetDefault("admin.section_marker", "Content Management")
	v.SetDefault("admin.edit_link_selector", "a[href^='/admin/edit/']")
	v.SetDefault("admin.edit_marker", "Edit Article")
	v.SetDefault("admin.title_selector", "input[name='title']")
	v.SetDefault("admin.section_screenshot", "dashboard_articles_secured.png")
	v.SetDefault("admin.edit_screenshot", "edit_page_secured.png")

	v.SetDefault("signin.path", "/signin")
	v.SetDefault("signin.form_selector", "form")
	v.SetDefault("signin.email_selector", `input[type="email"]`)
	v.SetDefault("signin.password_selector", `input[type="password"]`)
	v.SetDefault("signin.submit_selector", `button[type="submit"]`)
	v.SetDefault("signin.email", "test@example.com")
	v.SetDefault("signin.password", "password")
	v.SetDefault("signin.settle_delay", 500*time.Millisecond)
	v.SetDefault("signin.initial_screenshot", "signin_page_initial.png")
	v.SetDefault("signin.submitted_screenshot", "signin_page_submitted.png")

	v.SetDefault("probe.health_path", "/api/health")
	v.SetDefault("probe.home_path", "/")
	v.SetDefault("probe.asset_selector", "link[rel='stylesheet']")
	v.SetDefault("probe.timeout", 5*time.Second)
	v.SetDefault("probe.max_concurrency", 4)

	v.SetDefault("browser.driver", "playwright")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_mo", time.Duration(0))
	v.SetDefault("browser.timeout", 30*time.Second)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.install", false)

	v.SetDefault("screenshots.dir", "verification")
	v.SetDefault("screenshots.create_dir", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.textfile_path", "")

	v.SetDefault("report.enabled", false)
	v.SetDefault("report.dir", "verification")

	v.SetDefault("schedule.admin", "")
	v.SetDefault("schedule.signin", "")
	v.SetDefault("schedule.probe", "")
	v.SetDefault("schedule.timeout", 2*time.Minute)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 9464)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("policy.admin_fatal", true)
	v.SetDefault("policy.signin_fatal", false)
	v.SetDefault("policy.probe_fatal", true)
}

// Load reads configuration from defaults, the optional config file and the
// environment. v may carry flag bindings made by the caller.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType(configType(configFile))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return loaded, nil
}

// LoadFromFile loads configuration from a specific file (useful for testing)
func LoadFromFile(configFile string) (*Config, error) {
	return Load(viper.New(), configFile)
}

// Watch reloads the configuration whenever the file behind v changes and
// hands the new value to onChange. Only meaningful after Load with a file.
func Watch(v *viper.Viper, log *zap.Logger, onChange func(*Config)) {
	v.OnConfigChange(reloadHandler(v, log, onChange))
	v.WatchConfig()
}

func reloadHandler(v *viper.Viper, log *zap.Logger, onChange func(*Config)) func(fsnotify.Event) {
	return func(e fsnotify.Event) {
		next := &Config{}
		if err := v.Unmarshal(next); err != nil {
			log.Warn("Failed to reload config", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if onChange != nil {
			onChange(next)
		}
	}
}

// URL joins the base URL and an absolute application path.
func (t *TargetConfig) URL(path string) string {
	base := strings.TrimRight(t.BaseURL, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// Path returns where a named screenshot is written.
func (s *ScreenshotsConfig) Path(name string) string {
	if s.Dir == "" {
		return name
	}
	return filepath.Join(s.Dir, name)
}

// GetServerAddr returns the server listen address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func configType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}
