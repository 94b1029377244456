// Package reelsync publishes one short vertical video to YouTube Shorts,
// Instagram Reels and TikTok in a single run.
//
// Overview
//
// A run goes through fixed stages:
//
//   - validate the file (format, duration, size) with ffprobe
//   - transcribe the audio with Whisper, or read a .txt/.srt sidecar
//   - generate a description per platform with an OpenAI chat model
//   - upload to every selected platform concurrently
//
// Validation, transcription and description generation fail the whole run.
// Upload failures are isolated: each platform gets its own outcome and one
// failing platform never stops the others.
//
// Quick Start
//
//	cfg, err := config.Load(config.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	orch, err := pipeline.New(cfg, pipeline.Deps{
//		Validator:   video.NewValidator(video.NewFFprobe(), logger),
//		Transcriber: transcribe.NewWhisperClient(client, whisperCfg, nil, logger),
//		Generator:   describe.NewOpenAIClient(client, openaiCfg, logger),
//		Uploaders:   uploaders,
//	})
//	report, err := orch.Run(ctx, pipeline.Request{VideoPath: "clip.mp4"})
//	os.Exit(report.ExitCode())
//
// Configuration
//
// Settings are loaded from several sources:
//
//   1. Environment variables, REELSYNC_ prefixed (highest priority)
//   2. Config file (reelsync.yaml or ~/.config/reelsync/reelsync.yaml)
//   3. Default values (lowest priority)
//
// A .env file in the working directory is loaded first. The bare variable
// names OPENAI_API_KEY, INSTAGRAM_ACCESS_TOKEN, TIKTOK_ACCESS_TOKEN and
// ENABLE_<PLATFORM> are accepted as well.
//
// Error Handling
//
// Fatal errors arrive as *pipeline.StageError wrapping the stage's own type:
//
//	var verr *reelsync.ValidationError
//	if errors.As(err, &verr) {
//		fmt.Println(strings.Join(verr.Violations, "\n"))
//	}
//
// Per-platform failures are *platform.Error values on the report outcomes:
//
//	if errors.Is(outcome.Err, reelsync.ErrQuotaExceeded) {
//		fmt.Println("YouTube quota used up for today")
//	}
//
// Dependencies
//
// reelsync requires ffprobe and ffmpeg in PATH, or configured through
// tools.ffprobe and tools.ffmpeg.
package reelsync
