// Package pipeline runs an upload: validation, transcription, description
// generation and the per-platform uploads, and reports what happened to
// each platform.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reelsync/config"
	"reelsync/describe"
	"reelsync/internal/history"
	"reelsync/internal/logging"
	"reelsync/internal/retry"
	"reelsync/platform"
	"reelsync/transcribe"
	"reelsync/video"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Validator checks a video before anything else runs.
type Validator interface {
	Validate(ctx context.Context, path string, limits video.Limits) (video.Asset, error)
}

// Recorder persists finished runs.
type Recorder interface {
	Append(ctx context.Context, rec *history.Record) error
}

// Deps are the collaborators of an Orchestrator. History, Logger and Now
// are optional.
type Deps struct {
	Validator   Validator
	Transcriber transcribe.Transcriber
	Generator   describe.Generator
	Uploaders   []platform.Uploader
	History     Recorder
	Logger      *zap.Logger
	Now         func() time.Time
}

// Request describes one run.
type Request struct {
	VideoPath string
	// Title overrides the generated YouTube title.
	Title     string
	Selection Selection
	// DryRun generates descriptions without uploading.
	DryRun bool
	// Confirm, when set, is shown the descriptions before anything is
	// uploaded. It returns the descriptions to upload, possibly edited, and
	// false to cancel the uploads. It is not called in dry-run.
	Confirm func(describe.Descriptions) (describe.Descriptions, bool)
}

// ErrNoTargets is returned when configuration and selection leave no
// platform enabled.
var ErrNoTargets = errors.New("no platform enabled")

// Orchestrator runs uploads. It holds no per-run state, so one value may
// serve many runs.
type Orchestrator struct {
	cfg         config.Config
	retry       retry.Config
	validator   Validator
	transcriber transcribe.Transcriber
	generator   describe.Generator
	uploaders   map[platform.Target]platform.Uploader
	history     Recorder
	log         *zap.Logger
	now         func() time.Time
}

// New builds an Orchestrator. cfg is copied.
func New(cfg *config.Config, deps Deps) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if deps.Validator == nil || deps.Transcriber == nil || deps.Generator == nil {
		return nil, errors.New("pipeline: validator, transcriber and generator are required")
	}

	uploaders := make(map[platform.Target]platform.Uploader, len(deps.Uploaders))
	for _, u := range deps.Uploaders {
		t := u.Target()
		if !t.Valid() {
			return nil, fmt.Errorf("pipeline: uploader for unknown platform %q", t)
		}
		if _, dup := uploaders[t]; dup {
			return nil, fmt.Errorf("pipeline: duplicate uploader for %s", t)
		}
		uploaders[t] = u
	}

	log := logging.OrNop(deps.Logger)
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		cfg:         *cfg,
		retry:       cfg.RetryPolicy(),
		validator:   deps.Validator,
		transcriber: deps.Transcriber,
		generator:   deps.Generator,
		uploaders:   uploaders,
		history:     deps.History,
		log:         log.Named("pipeline"),
		now:         now,
	}, nil
}

// Run executes one upload. The report is always returned, even alongside an
// error. The error is non-nil only when a fail-fast stage failed or the run
// was canceled before uploading; upload failures are reported per target.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		VideoPath: req.VideoPath,
		Title:     req.Title,
		DryRun:    req.DryRun,
		StartedAt: o.now(),
	}
	log := o.log.With(zap.String("run_id", report.RunID), zap.String("video", req.VideoPath))
	log.Info("run started", zap.Bool("dry_run", req.DryRun))

	defer func() {
		report.FinishedAt = o.now()
		o.record(ctx, report, log)
	}()

	report.Stage = StageResolving
	plan, err := resolveTargets(req.Selection, o.cfg.Enabled)
	if err == nil && len(plan.enabled) == 0 {
		err = ErrNoTargets
	}
	if err != nil {
		report.Err = &StageError{Stage: StageResolving, Err: err}
		log.Error("run aborted", zap.String("stage", string(StageResolving)), zap.Error(err))
		return report, report.Err
	}
	report.Excluded = plan.excluded
	runnable := o.initOutcomes(report, plan, log)

	// in dry-run every enabled target gets a description, configured or not
	describeFor := plan.enabled
	if !req.DryRun {
		describeFor = make([]platform.Target, 0, len(runnable))
		for _, i := range runnable {
			describeFor = append(describeFor, report.Outcomes[i].Target)
		}
	}

	report.Stage = StageValidating
	if err := ctx.Err(); err != nil {
		return o.abort(report, StageValidating, err, runnable, log)
	}
	asset, err := o.validator.Validate(ctx, req.VideoPath, o.cfg.VideoLimits())
	if err != nil {
		return o.abort(report, StageValidating, err, runnable, log)
	}
	report.Asset = asset
	for _, w := range asset.Warnings {
		log.Warn("video warning", zap.String("warning", w))
	}

	if len(describeFor) == 0 {
		report.Stage = StageDone
		log.Info("no platform to describe or upload")
		return report, nil
	}

	report.Stage = StageTranscribing
	if err := ctx.Err(); err != nil {
		return o.abort(report, StageTranscribing, err, runnable, log)
	}
	transcript, err := o.transcribe(ctx, asset.Path, log)
	if err != nil {
		return o.abort(report, StageTranscribing, err, runnable, log)
	}
	report.Transcript = transcript

	report.Stage = StageDescribing
	if err := ctx.Err(); err != nil {
		return o.abort(report, StageDescribing, err, runnable, log)
	}
	descriptions, err := o.describe(ctx, transcript.Text, describeFor, req.Title, log)
	if err != nil {
		return o.abort(report, StageDescribing, err, runnable, log)
	}
	report.Descriptions = descriptions

	if req.DryRun {
		for _, i := range runnable {
			report.Outcomes[i].Status = StatusSkipped
			report.Outcomes[i].Reason = "dry run"
		}
		report.Stage = StageDone
		log.Info("dry run complete", zap.Int("descriptions", len(descriptions)))
		return report, nil
	}

	if req.Confirm != nil {
		report.Stage = StageConfirming
		edited, ok := req.Confirm(descriptions)
		if !ok {
			for _, i := range runnable {
				report.Outcomes[i].Status = StatusSkipped
				report.Outcomes[i].Reason = "upload canceled"
			}
			report.Declined = true
			log.Info("uploads canceled at confirmation")
			return report, nil
		}
		if err := checkEdited(descriptions, edited); err != nil {
			return o.abort(report, StageConfirming, err, runnable, log)
		}
		report.Descriptions = edited
	}

	report.Stage = StageUploading
	if err := ctx.Err(); err != nil {
		return o.abort(report, StageUploading, err, runnable, log)
	}

	o.upload(ctx, report, runnable, log)
	report.Stage = StageDone

	succeeded, failed, skipped := report.Counts()
	log.Info("run finished",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
	)
	return report, nil
}

// initOutcomes creates one outcome per enabled target and returns the
// indexes of the runnable ones. Unconfigured targets are settled here.
func (o *Orchestrator) initOutcomes(report *Report, plan targetPlan, log *zap.Logger) []int {
	report.Outcomes = make([]Outcome, len(plan.enabled))
	var runnable []int

	for i, t := range plan.enabled {
		out := Outcome{Target: t, Requested: plan.requested[t]}

		u, ok := o.uploaders[t]
		switch {
		case ok && u.IsConfigured():
			runnable = append(runnable, i)
		case out.Requested:
			out.Status = StatusFailed
			if ok {
				out.Err = platform.NotConfigured(t, "")
			} else {
				out.Err = platform.NotConfigured(t, "no uploader available")
			}
			log.Error("requested platform is not configured", zap.String("platform", string(t)))
		default:
			out.Status = StatusSkipped
			out.Reason = "not configured"
			log.Warn("platform not configured, skipping", zap.String("platform", string(t)))
		}
		report.Outcomes[i] = out
	}
	return runnable
}

// checkEdited rejects confirmed descriptions that dropped a target.
func checkEdited(generated, edited describe.Descriptions) error {
	for t := range generated {
		if _, ok := edited[t]; !ok {
			return fmt.Errorf("confirmed descriptions are missing %s", t)
		}
	}
	return nil
}

// abort settles every pending outcome after a fatal error. Cancellation
// fails them, any other error skips them.
func (o *Orchestrator) abort(report *Report, stage Stage, err error, pending []int, log *zap.Logger) (*Report, error) {
	canceled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	for _, i := range pending {
		if report.Outcomes[i].Status != "" {
			continue
		}
		if canceled {
			report.Outcomes[i].Status = StatusFailed
			report.Outcomes[i].Err = err
		} else {
			report.Outcomes[i].Status = StatusSkipped
			report.Outcomes[i].Reason = fmt.Sprintf("not attempted: %s failed", stage)
		}
	}

	report.Stage = stage
	report.Err = &StageError{Stage: stage, Err: err}
	log.Error("run aborted", zap.String("stage", string(stage)), zap.Error(err))
	return report, report.Err
}

// transcribe prefers a sidecar transcript and falls back to the
// Transcriber under the retry policy.
func (o *Orchestrator) transcribe(ctx context.Context, path string, log *zap.Logger) (transcribe.Transcript, error) {
	if t, ok, err := transcribe.ReadSidecar(path); err != nil {
		log.Warn("could not read sidecar transcript", zap.Error(err))
	} else if ok && !t.Empty() {
		log.Info("using sidecar transcript", zap.String("source", t.Source), zap.Int("chars", len(t.Text)))
		return t, nil
	}

	detached := context.WithoutCancel(ctx)
	t, attempts, err := retry.DoValue(ctx, o.retry, retry.IsTransient, func(context.Context) (transcribe.Transcript, error) {
		return o.transcriber.Transcribe(detached, path)
	})
	if err != nil {
		var terr *transcribe.Error
		if !errors.As(err, &terr) {
			err = &transcribe.Error{Op: "request", Path: path, Err: err}
		}
		return transcribe.Transcript{}, err
	}
	if attempts > 1 {
		log.Info("transcription succeeded after retry", zap.Int("attempts", attempts))
	}

	if t.Empty() {
		log.Warn("no speech detected, using fallback text")
		t = transcribe.Transcript{Text: transcribe.FallbackText, Language: t.Language, Source: transcribe.SourceFallback}
	}
	return t, nil
}

// describe generates one description per target. A title override
// replaces the generated YouTube title.
func (o *Orchestrator) describe(ctx context.Context, transcript string, targets []platform.Target, title string, log *zap.Logger) (describe.Descriptions, error) {
	detached := context.WithoutCancel(ctx)
	out := make(describe.Descriptions, len(targets))

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		desc, attempts, err := retry.DoValue(ctx, o.retry, retry.IsTransient, func(context.Context) (platform.Description, error) {
			return o.generator.Generate(detached, transcript, t)
		})
		if err != nil {
			var derr *describe.Error
			if !errors.As(err, &derr) {
				err = &describe.Error{Target: t, Err: err}
			}
			return nil, err
		}

		if t == platform.YouTube && title != "" {
			desc.Title = platform.Truncate(title, platform.MaxYouTubeTitle)
		}
		out[t] = desc
		log.Debug("description generated",
			zap.String("platform", string(t)),
			zap.Int("chars", len(desc.Text)),
			zap.Int("attempts", attempts),
		)
	}
	return out, nil
}

// upload fans out over the runnable targets. Each goroutine owns one slot of
// report.Outcomes.
func (o *Orchestrator) upload(ctx context.Context, report *Report, runnable []int, log *zap.Logger) {
	limit := o.cfg.MaxParallelUploads
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	detached := context.WithoutCancel(ctx)

	for _, i := range runnable {
		out := &report.Outcomes[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out.Status = StatusFailed
				out.Err = err
				log.Warn("upload not started", zap.String("platform", string(out.Target)), zap.Error(err))
				return nil
			}

			up := o.uploaders[out.Target]
			desc := report.Descriptions[out.Target]
			tlog := log.With(zap.String("platform", string(out.Target)))
			tlog.Info("upload started")

			start := o.now()
			res, attempts, err := retry.DoValue(ctx, o.retry, retry.IsTransient, func(context.Context) (platform.Result, error) {
				return up.Upload(detached, report.Asset, desc)
			})
			out.Duration = o.now().Sub(start)
			out.Attempts = attempts

			if err != nil {
				if platform.KindOf(err) == 0 && !errors.Is(err, context.Canceled) {
					err = platform.Classify(out.Target, "upload", err)
				}
				out.Status = StatusFailed
				out.Err = err
				tlog.Error("upload failed", zap.Int("attempts", attempts), zap.Error(err))
				return nil
			}

			out.Status = StatusSucceeded
			out.RemoteID = res.RemoteID
			out.URL = res.URL
			tlog.Info("upload succeeded",
				zap.String("remote_id", res.RemoteID),
				zap.String("url", res.URL),
				zap.Int("attempts", attempts),
			)
			return nil
		})
	}
	g.Wait()
}

// record saves the report. Failures are logged only.
func (o *Orchestrator) record(ctx context.Context, report *Report, log *zap.Logger) {
	if o.history == nil {
		return
	}
	if err := o.history.Append(context.WithoutCancel(ctx), report.Record()); err != nil {
		log.Warn("could not save run history", zap.Error(err))
	}
}
