// Package history persists a summary of every upload run to a JSON file so
// the CLI can show what was published where.
package history

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors.
var (
	ErrNotFound    = errors.New("history: not found")
	ErrCorrupt     = errors.New("history: data corruption detected")
	ErrLockTimeout = errors.New("history: lock acquisition timeout")
)

// Error wraps history failures with the operation that failed.
type Error struct {
	// Op is "read", "write", "lock" or "get".
	Op string
	// ID is the run or file the operation concerned, if any.
	ID  string
	Err error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("history: %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("history: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Record is one persisted run.
type Record struct {
	ID         string    `json:"id"`
	VideoPath  string    `json:"video_path"`
	Title      string    `json:"title,omitempty"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// FailedStage is set when the run aborted before uploading.
	FailedStage string    `json:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	Outcomes    []Outcome `json:"outcomes"`
	ExitCode    int       `json:"exit_code"`
}

// Outcome is the persisted result for one platform.
type Outcome struct {
	Target   string `json:"target"`
	Status   string `json:"status"`
	RemoteID string `json:"remote_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Duration returns how long the run took.
func (r *Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
