package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// DefaultAdminPassword and DefaultSignInPassword are the built-in literal
// credentials; acceptable only against a local target.
const (
	DefaultAdminPassword  = "wisdomia2024"
	DefaultSignInPassword = "password"
)

const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["target"],
  "properties": {
    "target": {
      "type": "object",
      "required": ["base_url"],
      "properties": {
        "base_url": {"type": "string", "pattern": "^https?://[^/]+"}
      }
    },
    "admin": {
      "type": "object",
      "properties": {
        "entry_path": {"type": "string", "pattern": "^/"},
        "dashboard_path": {"type": "string", "pattern": "^/"},
        "password": {"type": "string", "minLength": 1},
        "login_timeout_ms": {"type": "integer", "minimum": 1},
        "dashboard_marker": {"type": "string", "minLength": 1},
        "section_link_text": {"type": "string", "minLength": 1},
        "section_marker": {"type": "string", "minLength": 1},
        "edit_link_selector": {"type": "string", "minLength": 1},
        "edit_marker": {"type": "string", "minLength": 1},
        "title_selector": {"type": "string", "minLength": 1},
        "section_screenshot": {"type": "string", "pattern": "\\.png$"},
        "edit_screenshot": {"type": "string", "pattern": "\\.png$"}
      }
    },
    "signin": {
      "type": "object",
      "properties": {
        "path": {"type": "string", "pattern": "^/"},
        "form_selector": {"type": "string", "minLength": 1},
        "email": {"type": "string", "minLength": 1},
        "password": {"type": "string", "minLength": 1},
        "settle_delay_ms": {"type": "integer", "minimum": 0},
        "initial_screenshot": {"type": "string", "pattern": "\\.png$"},
        "submitted_screenshot": {"type": "string", "pattern": "\\.png$"}
      }
    },
    "probe": {
      "type": "object",
      "properties": {
        "health_path": {"type": "string", "pattern": "^/"},
        "home_path": {"type": "string", "pattern": "^/"},
        "timeout_ms": {"type": "integer", "minimum": 1},
        "max_concurrency": {"type": "integer", "minimum": 1}
      }
    },
    "browser": {
      "type": "object",
      "properties": {
        "driver": {"type": "string", "enum": ["playwright", "chromedp"]},
        "timeout_ms": {"type": "integer", "minimum": 1},
        "slow_mo_ms": {"type": "integer", "minimum": 0},
        "viewport_width": {"type": "integer", "minimum": 1},
        "viewport_height": {"type": "integer", "minimum": 1}
      }
    },
    "screenshots": {
      "type": "object",
      "properties": {
        "dir": {"type": "string"}
      }
    },
    "logging": {
      "type": "object",
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "format": {"type": "string", "enum": ["console", "json"]}
      }
    },
    "server": {
      "type": "object",
      "properties": {
        "port": {"type": "integer", "minimum": 1, "maximum": 65535}
      }
    }
  }
}`

// Sections of the configuration a flow can be validated against. Target and
// logging are always checked.
const (
	SectionAdmin       = "admin"
	SectionSignIn      = "signin"
	SectionProbe       = "probe"
	SectionBrowser     = "browser"
	SectionScreenshots = "screenshots"
	SectionServer      = "server"
)

var allSections = []string{
	SectionAdmin, SectionSignIn, SectionProbe, SectionBrowser, SectionScreenshots, SectionServer,
}

// Validator checks a decoded configuration against the embedded JSON schema
// and flags literal credentials used against a non-local target. Only the
// selected sections are checked.
type Validator struct {
	config   *Config
	sections map[string]bool
	errors   []string
	warnings []string
}

// NewValidator returns a validator for the given sections, or for every
// section when none are named.
func NewValidator(cfg *Config, sections ...string) *Validator {
	if len(sections) == 0 {
		sections = allSections
	}
	selected := make(map[string]bool, len(sections))
	for _, s := range sections {
		selected[s] = true
	}
	return &Validator{
		config:   cfg,
		sections: selected,
		errors:   []string{},
		warnings: []string{},
	}
}

func (v *Validator) Validate() error {
	v.validateSchema()
	remote := !isLocalTarget(v.config.Target.BaseURL)
	v.validateCredentials(remote)

	if len(v.errors) > 0 {
		return fmt.Errorf("config validation failed:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

// Warnings returns the non-fatal findings of the last Validate call.
func (v *Validator) Warnings() []string {
	return v.warnings
}

func (v *Validator) validateSchema() {
	schema := gojsonschema.NewStringLoader(configSchema)
	doc := gojsonschema.NewGoLoader(v.config.document(v.sections))

	result, err := gojsonschema.Validate(schema, doc)
	if err != nil {
		v.errors = append(v.errors, "   ❌ schema check failed: "+err.Error())
		return
	}
	for _, e := range result.Errors() {
		v.errors = append(v.errors, fmt.Sprintf("   ❌ %s: %s", e.Field(), e.Description()))
	}
}

// validateCredentials rejects the admin literal against a remote target. The
// sign-in password is a placeholder submitted to a form nobody logs into, so
// it only ever warns.
func (v *Validator) validateCredentials(remote bool) {
	if v.sections[SectionAdmin] && v.config.Admin.Password == DefaultAdminPassword {
		if remote {
			v.errors = append(v.errors, "   ❌ admin.password is using the built-in literal")
		} else {
			v.addWarning("admin.password is using the built-in literal")
		}
	}
	if v.sections[SectionSignIn] && v.config.SignIn.Password == DefaultSignInPassword {
		v.addWarning("signin.password is using the built-in placeholder")
	}
}

func (v *Validator) addWarning(message string) {
	v.warnings = append(v.warnings, "   ⚠️  "+message)
}

// ValidateConfig validates the named sections of cfg (all when none are
// named) and returns the warnings and the error.
func ValidateConfig(cfg *Config, sections ...string) ([]string, error) {
	validator := NewValidator(cfg, sections...)
	err := validator.Validate()
	return validator.Warnings(), err
}

// document renders the selected sections covered by the schema; durations
// become milliseconds so the schema can bound them.
func (c *Config) document(sections map[string]bool) map[string]interface{} {
	doc := map[string]interface{}{
		"target": map[string]interface{}{
			"base_url": c.Target.BaseURL,
		},
		"logging": map[string]interface{}{
			"level":  strings.ToLower(c.Logging.Level),
			"format": strings.ToLower(c.Logging.Format),
		},
	}
	if sections[SectionAdmin] {
		doc[SectionAdmin] = map[string]interface{}{
			"entry_path":         c.Admin.EntryPath,
			"dashboard_path":     c.Admin.DashboardPath,
			"password":           c.Admin.Password,
			"login_timeout_ms":   c.Admin.LoginTimeout.Milliseconds(),
			"dashboard_marker":   c.Admin.DashboardMarker,
			"section_link_text":  c.Admin.SectionLinkText,
			"section_marker":     c.Admin.SectionMarker,
			"edit_link_selector": c.Admin.EditLinkSelector,
			"edit_marker":        c.Admin.EditMarker,
			"title_selector":     c.Admin.TitleSelector,
			"section_screenshot": c.Admin.SectionScreenshot,
			"edit_screenshot":    c.Admin.EditScreenshot,
		}
	}
	if sections[SectionSignIn] {
		doc[SectionSignIn] = map[string]interface{}{
			"path":                 c.SignIn.Path,
			"form_selector":        c.SignIn.FormSelector,
			"email":                c.SignIn.Email,
			"password":             c.SignIn.Password,
			"settle_delay_ms":      c.SignIn.SettleDelay.Milliseconds(),
			"initial_screenshot":   c.SignIn.InitialScreenshot,
			"submitted_screenshot": c.SignIn.SubmittedScreenshot,
		}
	}
	if sections[SectionProbe] {
		doc[SectionProbe] = map[string]interface{}{
			"health_path":     c.Probe.HealthPath,
			"home_path":       c.Probe.HomePath,
			"timeout_ms":      c.Probe.Timeout.Milliseconds(),
			"max_concurrency": c.Probe.MaxConcurrency,
		}
	}
	if sections[SectionBrowser] {
		doc[SectionBrowser] = map[string]interface{}{
			"driver":          c.Browser.Driver,
			"timeout_ms":      c.Browser.Timeout.Milliseconds(),
			"slow_mo_ms":      c.Browser.SlowMo.Milliseconds(),
			"viewport_width":  c.Browser.ViewportWidth,
			"viewport_height": c.Browser.ViewportHeight,
		}
	}
	if sections[SectionScreenshots] {
		doc[SectionScreenshots] = map[string]interface{}{
			"dir": c.Screenshots.Dir,
		}
	}
	if sections[SectionServer] {
		doc[SectionServer] = map[string]interface{}{
			"port": c.Server.Port,
		}
	}
	return doc
}

func isLocalTarget(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
