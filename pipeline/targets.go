package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"reelsync/platform"
)

// ErrInvalidSelection is returned for a selection that names a target in
// both Only and Skip, or an unknown target.
var ErrInvalidSelection = errors.New("invalid platform selection")

// Selection narrows the targets of a run. A non-empty Only enables exactly
// the listed targets regardless of configuration. Otherwise every target
// enabled in configuration runs, minus Skip.
type Selection struct {
	Only []platform.Target
	Skip []platform.Target
}

// Validate rejects unknown targets and contradictory selections.
func (s Selection) Validate() error {
	for _, t := range append(slices.Clone(s.Only), s.Skip...) {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown platform %q", ErrInvalidSelection, t)
		}
	}
	for _, t := range s.Only {
		if slices.Contains(s.Skip, t) {
			return fmt.Errorf("%w: %s is both selected and skipped", ErrInvalidSelection, t)
		}
	}
	return nil
}

// targetPlan is the resolved target set of a run.
type targetPlan struct {
	enabled   []platform.Target
	requested map[platform.Target]bool
	excluded  []platform.Target
}

// resolveTargets walks targets in canonical order and applies sel on top of
// the configured feature flags.
func resolveTargets(sel Selection, flagged func(platform.Target) bool) (targetPlan, error) {
	if err := sel.Validate(); err != nil {
		return targetPlan{}, err
	}

	plan := targetPlan{requested: make(map[platform.Target]bool)}
	for _, t := range platform.All {
		var on bool
		if len(sel.Only) > 0 {
			on = slices.Contains(sel.Only, t)
			plan.requested[t] = on
		} else {
			on = flagged(t) && !slices.Contains(sel.Skip, t)
		}

		if on {
			plan.enabled = append(plan.enabled, t)
		} else {
			plan.excluded = append(plan.excluded, t)
		}
	}
	return plan, nil
}
