package flows

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the verdict of one flow run.
type Outcome string

const (
	OutcomePassed Outcome = "passed"
	OutcomeFailed Outcome = "failed"
)

// Check is one HTTP request made by the probe flow.
type Check struct {
	URL    string `json:"url" yaml:"url"`
	Status int    `json:"status" yaml:"status"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// OK reports whether the check got a 2xx response.
func (c Check) OK() bool {
	return c.Error == "" && c.Status >= 200 && c.Status < 300
}

// Result records what a flow observed. Values read from the page are kept
// only for reporting.
type Result struct {
	Flow          string        `json:"flow" yaml:"flow"`
	RunID         string        `json:"run_id" yaml:"run_id"`
	StartedAt     time.Time     `json:"started_at" yaml:"started_at"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
	Outcome       Outcome       `json:"outcome" yaml:"outcome"`
	Fatal         bool          `json:"fatal" yaml:"fatal"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
	LoggedIn      bool          `json:"logged_in,omitempty" yaml:"logged_in,omitempty"`
	EditableItems int           `json:"editable_items,omitempty" yaml:"editable_items,omitempty"`
	TitleValue    string        `json:"title_value,omitempty" yaml:"title_value,omitempty"`
	Screenshots   []string      `json:"screenshots,omitempty" yaml:"screenshots,omitempty"`
	Warnings      []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Checks        []Check       `json:"checks,omitempty" yaml:"checks,omitempty"`

	Err error `json:"-" yaml:"-"`
}

func newResult(flow string) *Result {
	return &Result{
		Flow:      flow,
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Outcome:   OutcomePassed,
	}
}

func (r *Result) finish(err error) {
	r.Duration = time.Since(r.StartedAt)
	if err != nil {
		r.Err = err
		r.Error = err.Error()
		r.Outcome = OutcomeFailed
	}
}

// Failed reports whether the flow ended with an error.
func (r *Result) Failed() bool {
	return r.Outcome == OutcomeFailed
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
