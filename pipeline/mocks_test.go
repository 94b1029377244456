package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reelsync/config"
	"reelsync/internal/history"
	"reelsync/platform"
	"reelsync/transcribe"
	"reelsync/video"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockValidator struct{ mock.Mock }

func (m *mockValidator) Validate(ctx context.Context, path string, limits video.Limits) (video.Asset, error) {
	args := m.Called(ctx, path, limits)
	return args.Get(0).(video.Asset), args.Error(1)
}

type mockTranscriber struct{ mock.Mock }

func (m *mockTranscriber) Transcribe(ctx context.Context, videoPath string) (transcribe.Transcript, error) {
	args := m.Called(ctx, videoPath)
	return args.Get(0).(transcribe.Transcript), args.Error(1)
}

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) Generate(ctx context.Context, transcript string, target platform.Target) (platform.Description, error) {
	args := m.Called(ctx, transcript, target)
	return args.Get(0).(platform.Description), args.Error(1)
}

type mockUploader struct {
	mock.Mock
	target     platform.Target
	configured bool
}

func (m *mockUploader) Target() platform.Target { return m.target }
func (m *mockUploader) IsConfigured() bool      { return m.configured }

func (m *mockUploader) Upload(ctx context.Context, asset video.Asset, desc platform.Description) (platform.Result, error) {
	args := m.Called(ctx, asset, desc)
	return args.Get(0).(platform.Result), args.Error(1)
}

type mockRecorder struct{ mock.Mock }

func (m *mockRecorder) Append(ctx context.Context, rec *history.Record) error {
	return m.Called(ctx, rec).Error(0)
}

// fixture wires mocks for every collaborator. Uploaders start configured.
type fixture struct {
	cfg         *config.Config
	validator   *mockValidator
	transcriber *mockTranscriber
	generator   *mockGenerator
	uploaders   map[platform.Target]*mockUploader
	history     *mockRecorder
	asset       video.Asset
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Retry = config.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
	cfg.YouTube.Enabled = true
	cfg.Instagram.Enabled = true
	cfg.TikTok.Enabled = false

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o644))

	f := &fixture{
		cfg:         cfg,
		validator:   new(mockValidator),
		transcriber: new(mockTranscriber),
		generator:   new(mockGenerator),
		uploaders:   make(map[platform.Target]*mockUploader),
		history:     new(mockRecorder),
		asset: video.Asset{
			Path:     path,
			Format:   "mp4",
			Duration: 30 * time.Second,
			Size:     5,
			Width:    1080,
			Height:   1920,
		},
	}
	for _, target := range platform.All {
		f.uploaders[target] = &mockUploader{target: target, configured: true}
	}
	f.history.On("Append", mock.Anything, mock.Anything).Return(nil).Maybe()
	return f
}

// happy sets up successful validation, transcription and generation.
func (f *fixture) happy() *fixture {
	f.validator.On("Validate", mock.Anything, f.asset.Path, mock.Anything).Return(f.asset, nil)
	f.transcriber.On("Transcribe", mock.Anything, f.asset.Path).
		Return(transcribe.Transcript{Text: "hello world", Language: "en", Source: transcribe.SourceWhisper}, nil)
	for _, target := range platform.All {
		f.generator.On("Generate", mock.Anything, mock.Anything, target).
			Return(platform.Description{Title: "title " + string(target), Text: "about " + string(target)}, nil).Maybe()
	}
	return f
}

func (f *fixture) succeed(target platform.Target, id string) {
	f.uploaders[target].On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return(platform.Result{RemoteID: id, URL: "https://example.com/" + id}, nil)
}

func (f *fixture) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	var ups []platform.Uploader
	for _, target := range platform.All {
		ups = append(ups, f.uploaders[target])
	}
	o, err := New(f.cfg, Deps{
		Validator:   f.validator,
		Transcriber: f.transcriber,
		Generator:   f.generator,
		Uploaders:   ups,
		History:     f.history,
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) request() Request {
	return Request{VideoPath: f.asset.Path}
}
