// Package config loads reelsync settings.
//
// Values are layered: built-in defaults, then a reelsync.yaml or
// reelsync.json file, then environment variables. A .env file in the
// working directory is loaded into the environment first. Every key can be
// set as REELSYNC_<SECTION>_<KEY>; the common credentials also accept
// their bare names (OPENAI_API_KEY, TIKTOK_ACCESS_TOKEN, ...).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelsync/internal/retry"
	"reelsync/platform"
	"reelsync/video"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Limits LimitsConfig `mapstructure:"limits"`
	Retry  RetryConfig  `mapstructure:"retry"`
	// MaxParallelUploads bounds concurrent platform uploads. 1 is sequential.
	MaxParallelUploads int `mapstructure:"max_parallel_uploads"`

	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	YouTube   YouTubeConfig   `mapstructure:"youtube"`
	Instagram InstagramConfig `mapstructure:"instagram"`
	TikTok    TikTokConfig    `mapstructure:"tiktok"`
	Staging   StagingConfig   `mapstructure:"staging"`
	Log       LogConfig       `mapstructure:"log"`
	History   HistoryConfig   `mapstructure:"history"`
	Tools     ToolsConfig     `mapstructure:"tools"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// LimitsConfig is the video acceptance policy.
type LimitsConfig struct {
	MaxDuration   time.Duration `mapstructure:"max_duration"`
	MaxFileSizeMB int64         `mapstructure:"max_file_size_mb"`
}

// RetryConfig is the policy applied to every external call.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
	Jitter         float64       `mapstructure:"jitter"`
}

// OpenAIConfig covers both transcription and description generation.
type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	TranscriptionModel string `mapstructure:"transcription_model"`
	ChatModel          string `mapstructure:"chat_model"`
	// Language is the spoken-language hint sent to Whisper.
	Language     string `mapstructure:"language"`
	SystemPrompt string `mapstructure:"system_prompt"`
	Hashtags     string `mapstructure:"hashtags"`
}

// YouTubeConfig configures the YouTube Data API uploader.
type YouTubeConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	ClientSecretFile string   `mapstructure:"client_secret_file"`
	TokenFile        string   `mapstructure:"token_file"`
	PrivacyStatus    string   `mapstructure:"privacy_status"`
	CategoryID       string   `mapstructure:"category_id"`
	Tags             []string `mapstructure:"tags"`
}

// InstagramConfig configures the Instagram Graph API uploader. Reels are
// fetched by Instagram from a public URL, see StagingConfig.
type InstagramConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	AccessToken       string        `mapstructure:"access_token"`
	UserID            string        `mapstructure:"user_id"`
	GraphURL          string        `mapstructure:"graph_url"`
	ShareToFeed       bool          `mapstructure:"share_to_feed"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout"`
}

// TikTokConfig configures the TikTok Content Posting API uploader.
type TikTokConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ClientKey         string        `mapstructure:"client_key"`
	ClientSecret      string        `mapstructure:"client_secret"`
	AccessToken       string        `mapstructure:"access_token"`
	BaseURL           string        `mapstructure:"base_url"`
	Privacy           string        `mapstructure:"privacy"`
	ChunkSizeMB       int64         `mapstructure:"chunk_size_mb"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout"`
}

// StagingConfig makes local files reachable over HTTPS. Either an S3
// compatible bucket (Endpoint and Bucket) or a PublicBaseURL under which
// files are already served.
type StagingConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	Region        string        `mapstructure:"region"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	Prefix        string        `mapstructure:"prefix"`
	URLExpiry     time.Duration `mapstructure:"url_expiry"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Dir     string `mapstructure:"dir"`
	Verbose bool   `mapstructure:"verbose"`
}

// HistoryConfig controls the run history file.
type HistoryConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxRecords int    `mapstructure:"max_records"`
}

// ToolsConfig locates external media tools.
type ToolsConfig struct {
	FFprobe string `mapstructure:"ffprobe"`
	FFmpeg  string `mapstructure:"ffmpeg"`
}

// Options controls Load.
type Options struct {
	// ConfigFile skips discovery and reads this file.
	ConfigFile string
	// EnvFile defaults to ".env". Missing files are ignored.
	EnvFile string
	// SearchPaths replaces the default discovery directories.
	SearchPaths []string
}

// defaults lists every key so AutomaticEnv and Unmarshal know about it.
var defaults = map[string]any{
	"limits.max_duration":     120 * time.Second,
	"limits.max_file_size_mb": 500,

	"retry.max_attempts":    3,
	"retry.initial_backoff": 1 * time.Second,
	"retry.max_backoff":     30 * time.Second,
	"retry.multiplier":      2.0,
	"retry.jitter":          0.2,

	"max_parallel_uploads": 3,

	"openai.api_key":             "",
	"openai.base_url":            "https://api.openai.com",
	"openai.transcription_model": "whisper-1",
	"openai.chat_model":          "gpt-4o-mini",
	"openai.language":            "es",
	"openai.system_prompt":       "",
	"openai.hashtags":            "",

	"youtube.enabled":            true,
	"youtube.client_secret_file": "credentials/youtube_client_secret.json",
	"youtube.token_file":         "credentials/tokens/youtube_token.json",
	"youtube.privacy_status":     "public",
	"youtube.category_id":        "22",
	"youtube.tags":               []string{},

	"instagram.enabled":            true,
	"instagram.access_token":       "",
	"instagram.user_id":            "",
	"instagram.graph_url":          "https://graph.facebook.com/v21.0",
	"instagram.share_to_feed":      true,
	"instagram.poll_interval":      5 * time.Second,
	"instagram.processing_timeout": 5 * time.Minute,

	"tiktok.enabled":            false,
	"tiktok.client_key":         "",
	"tiktok.client_secret":      "",
	"tiktok.access_token":       "",
	"tiktok.base_url":           "https://open.tiktokapis.com",
	"tiktok.privacy":            "public",
	"tiktok.chunk_size_mb":      10,
	"tiktok.poll_interval":      5 * time.Second,
	"tiktok.processing_timeout": 5 * time.Minute,

	"staging.endpoint":        "",
	"staging.access_key":      "",
	"staging.secret_key":      "",
	"staging.bucket":          "",
	"staging.region":          "",
	"staging.use_ssl":         true,
	"staging.prefix":          "reelsync/",
	"staging.url_expiry":      1 * time.Hour,
	"staging.public_base_url": "",

	"log.dir":     "logs",
	"log.verbose": false,

	"history.enabled":     true,
	"history.path":        defaultHistoryPath(),
	"history.max_records": 200,

	"tools.ffprobe": "ffprobe",
	"tools.ffmpeg":  "ffmpeg",
}

// legacyEnv lists bare variable names accepted in addition to the
// REELSYNC_ prefixed form.
var legacyEnv = map[string][]string{
	"openai.api_key":             {"OPENAI_API_KEY"},
	"youtube.client_secret_file": {"YOUTUBE_CLIENT_SECRET_FILE"},
	"youtube.token_file":         {"YOUTUBE_TOKEN_FILE"},
	"youtube.enabled":            {"ENABLE_YOUTUBE"},
	"instagram.enabled":          {"ENABLE_INSTAGRAM"},
	"instagram.access_token":     {"INSTAGRAM_ACCESS_TOKEN"},
	"instagram.user_id":          {"INSTAGRAM_USER_ID"},
	"tiktok.enabled":             {"ENABLE_TIKTOK"},
	"tiktok.client_key":          {"TIKTOK_CLIENT_KEY"},
	"tiktok.client_secret":       {"TIKTOK_CLIENT_SECRET"},
	"tiktok.access_token":        {"TIKTOK_ACCESS_TOKEN"},
	"limits.max_file_size_mb":    {"MAX_FILE_SIZE_MB"},
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	v := newViper()
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads configuration. Priority: env vars > config file > defaults.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := newViper()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("reelsync")
		paths := opts.SearchPaths
		if paths == nil {
			paths = defaultSearchPaths()
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("REELSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		prefixed := "REELSYNC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, prefixed}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func defaultSearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "reelsync"))
	}
	return paths
}

func defaultHistoryPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "reelsync", "history.json")
	}
	return "reelsync-history.json"
}

// Validate checks that configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Limits.MaxDuration <= 0 {
		return fmt.Errorf("limits.max_duration must be positive")
	}
	if c.Limits.MaxFileSizeMB <= 0 {
		return fmt.Errorf("limits.max_file_size_mb must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.InitialBackoff <= 0 {
		return fmt.Errorf("retry.initial_backoff must be positive")
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("retry.max_backoff must be >= retry.initial_backoff")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("retry.jitter must be between 0 and 1")
	}
	if c.MaxParallelUploads < 1 {
		return fmt.Errorf("max_parallel_uploads must be at least 1")
	}
	switch c.YouTube.PrivacyStatus {
	case "public", "unlisted", "private":
	default:
		return fmt.Errorf("youtube.privacy_status must be public, unlisted or private")
	}
	switch c.TikTok.Privacy {
	case "public", "friends", "private":
	default:
		return fmt.Errorf("tiktok.privacy must be public, friends or private")
	}
	if c.TikTok.ChunkSizeMB < 5 || c.TikTok.ChunkSizeMB > 64 {
		return fmt.Errorf("tiktok.chunk_size_mb must be between 5 and 64")
	}
	if c.Instagram.PollInterval <= 0 || c.TikTok.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.Staging.Endpoint != "" && c.Staging.Bucket == "" {
		return fmt.Errorf("staging.bucket is required when staging.endpoint is set")
	}
	return nil
}

// RetryPolicy returns the retry configuration shared by every call site.
func (c *Config) RetryPolicy() retry.Config {
	return retry.Config{
		MaxAttempts:    c.Retry.MaxAttempts,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
		Multiplier:     c.Retry.Multiplier,
		JitterFraction: c.Retry.Jitter,
	}
}

// VideoLimits returns the validation policy.
func (c *Config) VideoLimits() video.Limits {
	return video.Limits{
		MaxDuration: c.Limits.MaxDuration,
		MaxSize:     c.Limits.MaxFileSizeMB * 1024 * 1024,
	}
}

// Enabled reports the feature flag for target.
func (c *Config) Enabled(t platform.Target) bool {
	switch t {
	case platform.YouTube:
		return c.YouTube.Enabled
	case platform.Instagram:
		return c.Instagram.Enabled
	case platform.TikTok:
		return c.TikTok.Enabled
	}
	return false
}

// StagingConfigured reports whether Instagram can obtain a public URL.
func (c *Config) StagingConfigured() bool {
	return c.Staging.PublicBaseURL != "" || (c.Staging.Endpoint != "" && c.Staging.Bucket != "")
}
