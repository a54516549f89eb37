// Package report records the outcome of script runs.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Run is the outcome of one script execution.
type Run struct {
	ID       string        `json:"id"`
	Script   string        `json:"script"`
	Driver   string        `json:"driver"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_ns"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Steps    []Step        `json:"steps"`
}

// Step is the outcome of one command.
type Step struct {
	Line     int           `json:"line"`
	Command  string        `json:"command"`
	Passed   bool          `json:"passed"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Received string        `json:"received,omitempty"` // hex
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// NewRun starts a run record with a fresh ID.
func NewRun(script, driver string) *Run {
	return &Run{
		ID:      uuid.NewString(),
		Script:  script,
		Driver:  driver,
		Started: time.Now().UTC(),
	}
}

// Finish stamps the duration and outcome.
func (r *Run) Finish(err error) {
	r.Duration = time.Since(r.Started)
	r.Passed = err == nil
	if err != nil {
		r.Error = err.Error()
	}
}

// Failed returns the number of failed steps.
func (r *Run) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.Passed {
			n++
		}
	}
	return n
}

// Recorder persists or forwards finished runs.
type Recorder interface {
	Record(ctx context.Context, run *Run) error
}

// Multi forwards a run to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, run *Run) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
