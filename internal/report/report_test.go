package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wisdomia/uiverify/internal/flows"
)

func sampleResults() []*flows.Result {
	return []*flows.Result{
		{
			Flow:          flows.Admin,
			RunID:         "run-admin",
			Duration:      2 * time.Second,
			Outcome:       flows.OutcomePassed,
			EditableItems: 1,
			TitleValue:    `<script>alert("x")</script>`,
			Screenshots:   []string{"verification/dashboard_articles_secured.png", "verification/edit_page_secured.png"},
		},
		{
			Flow:     flows.SignIn,
			RunID:    "run-signin",
			Duration: time.Second,
			Outcome:  flows.OutcomeFailed,
			Error:    "waiting for form: timed out | retry",
			Err:      errors.New("waiting for form"),
		},
		{
			Flow:    flows.Probe,
			RunID:   "run-probe",
			Outcome: flows.OutcomeFailed,
			Fatal:   true,
			Error:   "1 of 2 checks failed",
			Checks: []flows.Check{
				{URL: "http://localhost:3000/api/health", Status: 200},
				{URL: "http://localhost:3000/app.css", Status: 404},
			},
		},
	}
}

func TestNew(t *testing.T) {
	r := New(sampleResults())
	assert.Equal(t, 1, r.Passed)
	assert.Equal(t, 2, r.Failed)
	assert.True(t, r.Fatal)

	assert.False(t, New(sampleResults()[:2]).Fatal)
}

func TestMarkdown(t *testing.T) {
	md := New(sampleResults()).Markdown()
	assert.Contains(t, md, "| admin | passed | 2s | 2 | `run-admin` |")
	assert.Contains(t, md, "| signin | failed (non-fatal) | 1s | 0 | `run-signin` |")
	assert.Contains(t, md, `- Error: waiting for form: timed out \| retry`)
	assert.Contains(t, md, "- Editable items: 1")
	assert.Contains(t, md, "- http://localhost:3000/app.css: 404")
}

func TestHTMLIsSanitized(t *testing.T) {
	page, err := New(sampleResults()).HTML()
	require.NoError(t, err)
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<h2>signin</h2>")
	assert.NotContains(t, page, "<script>")
}

func TestHTMLPage(t *testing.T) {
	r := New(sampleResults())
	r.GeneratedAt = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	page, err := r.HTML()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(page, "<!doctype html>\n"))
	assert.Contains(t, page, `<meta charset="utf-8">`)
	assert.Contains(t, page, "<title>Verification report: 1 passed, 2 failed</title>")
	assert.Contains(t, page, "<p>Generated 2026-10-15T09:30:00Z</p>")
	assert.True(t, strings.HasSuffix(page, "</body></html>\n"))
	// the body is inserted as markup, not escaped text
	assert.NotContains(t, page, "&lt;table&gt;")
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := Write(dir, sampleResults())
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, YAMLFile), filepath.Join(dir, HTMLFile)}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	var doc struct {
		Passed  int `yaml:"passed"`
		Failed  int `yaml:"failed"`
		Results []struct {
			Flow     string `yaml:"flow"`
			Duration string `yaml:"duration"`
		} `yaml:"results"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, 1, doc.Passed)
	assert.Equal(t, 2, doc.Failed)
	require.Len(t, doc.Results, 3)
	assert.Equal(t, "admin", doc.Results[0].Flow)
	assert.Equal(t, "2s", doc.Results[0].Duration)

	_, err = os.Stat(paths[1])
	assert.NoError(t, err)
}
