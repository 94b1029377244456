package pipeline

import (
	"errors"
	"fmt"
	"time"

	"reelsync/describe"
	"reelsync/internal/history"
	"reelsync/platform"
	"reelsync/transcribe"
	"reelsync/video"
)

// Stage is a step of a run.
type Stage string

const (
	StageResolving    Stage = "resolving"
	StageValidating   Stage = "validating"
	StageTranscribing Stage = "transcribing"
	StageDescribing   Stage = "describing"
	StageConfirming   Stage = "confirming"
	StageUploading    Stage = "uploading"
	StageDone         Stage = "done"
)

// StageError is returned by Run when a fail-fast stage aborts the run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Status is the result of one target.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome is the result of one enabled target.
type Outcome struct {
	Target platform.Target
	Status Status
	// Err is set when Status is StatusFailed.
	Err error
	// Reason explains a skip.
	Reason   string
	RemoteID string
	URL      string
	// Attempts counts upload attempts, 0 when none was made.
	Attempts int
	// Requested is true when the target was named explicitly.
	Requested bool
	Duration  time.Duration
}

// Detail returns the error text or skip reason.
func (o Outcome) Detail() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return o.Reason
}

// Report is the aggregate result of a run. Outcomes hold exactly one entry
// per enabled target, in canonical order.
type Report struct {
	RunID        string
	VideoPath    string
	Title        string
	DryRun       bool
	Asset        video.Asset
	Transcript   transcribe.Transcript
	Descriptions describe.Descriptions
	Outcomes     []Outcome
	// Stage is the last stage the run entered. It is StageDone after a
	// complete run and the failing stage after an abort.
	Stage Stage
	// Declined is true when the uploads were canceled at confirmation.
	Declined bool
	// Excluded lists targets disabled by configuration or selection.
	Excluded   []platform.Target
	StartedAt  time.Time
	FinishedAt time.Time
	// Err is the fatal error, if a fail-fast stage failed.
	Err error
}

// ExitCode is 2 after a fatal error, 1 if any target failed, else 0.
func (r *Report) ExitCode() int {
	if r.Err != nil {
		return 2
	}
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return 1
		}
	}
	return 0
}

// Outcome returns the outcome for t.
func (r *Report) Outcome(t platform.Target) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Target == t {
			return o, true
		}
	}
	return Outcome{}, false
}

// Counts tallies outcomes by status.
func (r *Report) Counts() (succeeded, failed, skipped int) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Record converts the report into its persisted form.
func (r *Report) Record() *history.Record {
	rec := &history.Record{
		ID:         r.RunID,
		VideoPath:  r.VideoPath,
		Title:      r.Title,
		DryRun:     r.DryRun,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		ExitCode:   r.ExitCode(),
		Outcomes:   make([]history.Outcome, 0, len(r.Outcomes)),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
		var serr *StageError
		if errors.As(r.Err, &serr) {
			rec.FailedStage = string(serr.Stage)
		}
	}
	for _, o := range r.Outcomes {
		rec.Outcomes = append(rec.Outcomes, history.Outcome{
			Target:   string(o.Target),
			Status:   string(o.Status),
			RemoteID: o.RemoteID,
			URL:      o.URL,
			Attempts: o.Attempts,
			Detail:   o.Detail(),
		})
	}
	return rec
}
