// Package report writes the run report of a batch of flows.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/wisdomia/uiverify/internal/flows"
)

const (
	YAMLFile = "report.yaml"
	HTMLFile = "report.html"
)

// pageTemplate wraps the sanitized report body; everything but body is autoescaped.
var pageTemplate = pongo2.Must(pongo2.FromString(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{ title }}</title></head>
<body>
{{ body|safe }}
<footer><p>Generated {{ generated_at }}</p></footer>
</body></html>
`))

// Report is the document written to report.yaml.
type Report struct {
	GeneratedAt time.Time       `yaml:"generated_at"`
	Passed      int             `yaml:"passed"`
	Failed      int             `yaml:"failed"`
	Fatal       bool            `yaml:"fatal"`
	Results     []*flows.Result `yaml:"results"`
}

// New summarizes results.
func New(results []*flows.Result) *Report {
	r := &Report{GeneratedAt: time.Now().UTC(), Results: results}
	for _, res := range results {
		if res.Failed() {
			r.Failed++
		} else {
			r.Passed++
		}
		if res.Fatal {
			r.Fatal = true
		}
	}
	return r
}

// Write renders results into dir and returns the paths written.
func Write(dir string, results []*flows.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	r := New(results)

	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	yamlPath := filepath.Join(dir, YAMLFile)
	if err := os.WriteFile(yamlPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", YAMLFile, err)
	}

	page, err := r.HTML()
	if err != nil {
		return nil, err
	}
	htmlPath := filepath.Join(dir, HTMLFile)
	if err := os.WriteFile(htmlPath, []byte(page), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", HTMLFile, err)
	}
	return []string{yamlPath, htmlPath}, nil
}

// Markdown renders the summary table and per-flow details.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Verification report\n\nGenerated %s: %d passed, %d failed.\n\n",
		r.GeneratedAt.Format(time.RFC3339), r.Passed, r.Failed)

	b.WriteString("| Flow | Outcome | Duration | Screenshots | Run ID |\n")
	b.WriteString("|------|---------|----------|-------------|--------|\n")
	for _, res := range r.Results {
		outcome := string(res.Outcome)
		if res.Failed() && !res.Fatal {
			outcome += " (non-fatal)"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d | `%s` |\n",
			cell(res.Flow), outcome, res.Duration.Round(time.Millisecond), len(res.Screenshots), res.RunID)
	}

	for _, res := range r.Results {
		fmt.Fprintf(&b, "\n## %s\n\n", cell(res.Flow))
		if res.Error != "" {
			fmt.Fprintf(&b, "- Error: %s\n", cell(res.Error))
		}
		if res.TitleValue != "" {
			fmt.Fprintf(&b, "- Title: %s\n", cell(res.TitleValue))
		}
		if res.Flow == flows.Admin {
			fmt.Fprintf(&b, "- Editable items: %d\n", res.EditableItems)
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "- Warning: %s\n", cell(w))
		}
		for _, path := range res.Screenshots {
			fmt.Fprintf(&b, "- Screenshot: `%s`\n", path)
		}
		for _, c := range res.Checks {
			status := fmt.Sprintf("%d", c.Status)
			if c.Error != "" {
				status = cell(c.Error)
			}
			fmt.Fprintf(&b, "- %s: %s\n", cell(c.URL), status)
		}
	}
	return b.String()
}

// HTML renders Markdown and sanitizes the result. Page-derived strings end up
// in the report, so nothing but the formatting survives.
func (r *Report) HTML() (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(r.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	out, err := pageTemplate.Execute(pongo2.Context{
		"title":        fmt.Sprintf("Verification report: %d passed, %d failed", r.Passed, r.Failed),
		"body":         policy().Sanitize(buf.String()),
		"generated_at": r.GeneratedAt.Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render report page: %w", err)
	}
	return out, nil
}

func policy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("h1", "h2", "p", "ul", "li", "code", "strong", "em")
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td")
	return p
}

// cell keeps a value on one line and out of table syntax.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
