// Package describe generates platform-tailored descriptions from a video
// transcript with an OpenAI chat model.
package describe

import (
	"context"
	"errors"
	"fmt"

	"reelsync/internal/retry"
	"reelsync/platform"
)

// Generator produces the description for one target.
type Generator interface {
	Generate(ctx context.Context, transcript string, target platform.Target) (platform.Description, error)
}

// Descriptions maps each target to its generated description.
type Descriptions map[platform.Target]platform.Description

// Targets returns the keys in canonical order.
func (d Descriptions) Targets() []platform.Target {
	var out []platform.Target
	for _, t := range platform.All {
		if _, ok := d[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// ErrMissingAPIKey is returned when no OpenAI key is configured.
var ErrMissingAPIKey = errors.New("OpenAI API key is not configured")

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Error is returned by every Generator in this package.
type Error struct {
	Target platform.Target
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("generate %s description: %v", e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether retrying may help.
func (e *Error) Transient() bool {
	if errors.Is(e.Err, ErrMissingAPIKey) {
		return false
	}
	return retry.IsTransient(e.Err)
}
