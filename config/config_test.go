package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"reelsync/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFrom(t *testing.T, dir string) (*Config, error) {
	t.Helper()
	return Load(Options{
		SearchPaths: []string{dir},
		EnvFile:     filepath.Join(dir, ".env"),
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 120*time.Second, cfg.Limits.MaxDuration)
	assert.Equal(t, int64(500), cfg.Limits.MaxFileSizeMB)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 3, cfg.MaxParallelUploads)
	assert.True(t, cfg.YouTube.Enabled)
	assert.True(t, cfg.Instagram.Enabled)
	assert.False(t, cfg.TikTok.Enabled)
	assert.Equal(t, "22", cfg.YouTube.CategoryID)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfigIgnoresEnvironment(t *testing.T) {
	t.Setenv("REELSYNC_MAX_PARALLEL_UPLOADS", "9")
	assert.Equal(t, 3, DefaultConfig().MaxParallelUploads)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := loadFrom(t, t.TempDir())

	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, DefaultConfig().Limits, cfg.Limits)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
limits:
  max_duration: 60s
  max_file_size_mb: 100
max_parallel_uploads: 1
tiktok:
  enabled: true
  privacy: friends
youtube:
  tags: [spanish, grammar]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reelsync.yaml"), []byte(yaml), 0644))

	cfg, err := loadFrom(t, dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reelsync.yaml"), cfg.File)
	assert.Equal(t, 60*time.Second, cfg.Limits.MaxDuration)
	assert.Equal(t, int64(100)*1024*1024, cfg.VideoLimits().MaxSize)
	assert.Equal(t, 1, cfg.MaxParallelUploads)
	assert.True(t, cfg.Enabled(platform.TikTok))
	assert.Equal(t, "friends", cfg.TikTok.Privacy)
	assert.Equal(t, []string{"spanish", "grammar"}, cfg.YouTube.Tags)
	// untouched keys keep defaults
	assert.Equal(t, "whisper-1", cfg.OpenAI.TranscriptionModel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reelsync.yaml"), []byte("max_parallel_uploads: 2\n"), 0644))
	t.Setenv("REELSYNC_MAX_PARALLEL_UPLOADS", "5")
	t.Setenv("REELSYNC_RETRY_INITIAL_BACKOFF", "250ms")

	cfg, err := loadFrom(t, dir)

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxParallelUploads)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialBackoff)
}

func TestLoad_BareEnvNames(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-bare")
	t.Setenv("ENABLE_TIKTOK", "true")
	t.Setenv("ENABLE_INSTAGRAM", "false")
	t.Setenv("TIKTOK_ACCESS_TOKEN", "act.123")

	cfg, err := loadFrom(t, t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "sk-bare", cfg.OpenAI.APIKey)
	assert.True(t, cfg.TikTok.Enabled)
	assert.False(t, cfg.Instagram.Enabled)
	assert.Equal(t, "act.123", cfg.TikTok.AccessToken)
}

func TestLoad_PrefixedBeatsBare(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-bare")
	t.Setenv("REELSYNC_OPENAI_API_KEY", "sk-prefixed")

	cfg, err := loadFrom(t, t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "sk-prefixed", cfg.OpenAI.APIKey)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REELSYNC_OPENAI_CHAT_MODEL=gpt-4o\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("REELSYNC_OPENAI_CHAT_MODEL") })

	cfg, err := loadFrom(t, dir)

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.ChatModel)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("REELSYNC_MAX_PARALLEL_UPLOADS", "0")

	_, err := loadFrom(t, t.TempDir())
	assert.ErrorContains(t, err, "max_parallel_uploads")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero duration", func(c *Config) { c.Limits.MaxDuration = 0 }, "max_duration"},
		{"zero size", func(c *Config) { c.Limits.MaxFileSizeMB = 0 }, "max_file_size_mb"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max_attempts"},
		{"backoff order", func(c *Config) { c.Retry.MaxBackoff = time.Millisecond }, "max_backoff"},
		{"jitter", func(c *Config) { c.Retry.Jitter = 1.5 }, "jitter"},
		{"youtube privacy", func(c *Config) { c.YouTube.PrivacyStatus = "secret" }, "privacy_status"},
		{"tiktok privacy", func(c *Config) { c.TikTok.Privacy = "everyone" }, "tiktok.privacy"},
		{"chunk size", func(c *Config) { c.TikTok.ChunkSizeMB = 100 }, "chunk_size_mb"},
		{"staging bucket", func(c *Config) { c.Staging.Endpoint = "s3.example.com" }, "staging.bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRetryPolicy(t *testing.T) {
	cfg := DefaultConfig()
	p := cfg.RetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.InitialBackoff)
	assert.Equal(t, 0.2, p.JitterFraction)
}

func TestStagingConfigured(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.StagingConfigured())

	cfg.Staging.PublicBaseURL = "https://cdn.example.com/videos"
	assert.True(t, cfg.StagingConfigured())

	cfg = DefaultConfig()
	cfg.Staging.Endpoint, cfg.Staging.Bucket = "minio.local:9000", "reels"
	assert.True(t, cfg.StagingConfigured())
}
