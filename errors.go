package reelsync

import (
	"reelsync/describe"
	"reelsync/internal/openai"
	"reelsync/internal/retry"
	"reelsync/pipeline"
	"reelsync/platform"
	"reelsync/transcribe"
	"reelsync/video"
)

// Type aliases for convenient error handling.
type (
	// StageError is returned by a run that aborted before uploading.
	StageError = pipeline.StageError
	// ValidationError lists every rule a video broke.
	ValidationError = video.ValidationError
	// TranscriptionError wraps transcription failures.
	TranscriptionError = transcribe.Error
	// DescriptionError wraps description generation failures.
	DescriptionError = describe.Error
	// PlatformError is the error of one platform upload.
	PlatformError = platform.Error
	// ExhaustedError wraps the last error once every retry failed.
	ExhaustedError = retry.ExhaustedError
)

// Sentinel errors exported from sub-packages.
var (
	ErrNotConfigured      = platform.ErrNotConfigured
	ErrPublicURLRequired  = platform.ErrPublicURLRequired
	ErrProcessingFailed   = platform.ErrProcessingFailed
	ErrProcessingTimeout  = platform.ErrProcessingTimeout
	ErrQuotaExceeded      = platform.ErrQuotaExceeded
	ErrUnauthorized       = platform.ErrUnauthorized
	ErrInvalidSelection   = pipeline.ErrInvalidSelection
	ErrNoTargets          = pipeline.ErrNoTargets
	ErrOpenAIQuota        = openai.ErrQuotaExhausted
	ErrNoAudio            = transcribe.ErrNoAudio
	ErrFFmpegNotInstalled = transcribe.ErrFFmpegNotInstalled
)

// IsRetryable reports whether err is worth retrying under the run's policy.
func IsRetryable(err error) bool {
	return retry.IsTransient(err)
}
