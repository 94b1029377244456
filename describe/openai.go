package describe

import (
	"context"
	"fmt"
	"strings"

	rshttp "reelsync/http"
	"reelsync/internal/logging"
	"reelsync/internal/openai"
	"reelsync/platform"

	"go.uber.org/zap"
)

// DefaultBaseURL is the OpenAI API root.
const DefaultBaseURL = "https://api.openai.com"

// OpenAIConfig configures OpenAIClient.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// Model defaults to gpt-4o-mini.
	Model       string
	Temperature float64
	MaxTokens   int
	// SystemPrompt replaces the built-in persona.
	SystemPrompt string
	// Hashtags are appended to every prompt as mandatory tags.
	Hashtags string
}

// OpenAIClient implements Generator with the chat completions endpoint.
type OpenAIClient struct {
	http *rshttp.Client
	cfg  OpenAIConfig
	log  *zap.Logger
}

// NewOpenAIClient builds a client, filling unset fields with defaults.
func NewOpenAIClient(client *rshttp.Client, cfg OpenAIConfig, log *zap.Logger) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1500
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	log = logging.OrNop(log)
	return &OpenAIClient{http: client, cfg: cfg, log: log.Named("describe")}
}

// IsConfigured reports whether an API key is set.
func (c *OpenAIClient) IsConfigured() bool { return c.cfg.APIKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate makes one chat completion call and shapes the answer to the
// target's limits.
func (c *OpenAIClient) Generate(ctx context.Context, transcript string, target platform.Target) (platform.Description, error) {
	if !c.IsConfigured() {
		return platform.Description{}, &Error{Target: target, Err: ErrMissingAPIKey}
	}
	if !target.Valid() {
		return platform.Description{}, &Error{Target: target, Err: fmt.Errorf("unsupported platform")}
	}

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: userPrompt(target, transcript, c.cfg.Hashtags)},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/chat/completions"

	c.log.Debug("requesting description", zap.String("target", string(target)), zap.String("model", c.cfg.Model))

	var resp chatResponse
	if err := c.http.PostJSON(ctx, endpoint, headers, req, &resp); err != nil {
		return platform.Description{}, &Error{Target: target, Err: openai.ParseError(err)}
	}
	if len(resp.Choices) == 0 {
		return platform.Description{}, &Error{Target: target, Err: ErrEmptyCompletion}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return platform.Description{}, &Error{Target: target, Err: ErrEmptyCompletion}
	}

	var desc platform.Description
	if target == platform.YouTube {
		desc.Title, desc.Text = ParseTitled(content)
		desc.Title = platform.Truncate(desc.Title, platform.MaxYouTubeTitle)
	} else {
		desc.Text = content
	}

	if limit := target.MaxText(); len([]rune(desc.Text)) > limit {
		c.log.Warn("description truncated",
			zap.String("target", string(target)),
			zap.Int("length", len([]rune(desc.Text))),
			zap.Int("limit", limit),
		)
		desc.Text = platform.Truncate(desc.Text, limit)
	}

	c.log.Info("description generated",
		zap.String("target", string(target)),
		zap.Int("title_len", len([]rune(desc.Title))),
		zap.Int("text_len", len([]rune(desc.Text))),
	)
	return desc, nil
}

// ParseTitled splits a "TITLE: ... DESCRIPTION: ..." answer. When the
// markers are missing, the first line is the title and the rest is the
// description.
func ParseTitled(content string) (title, description string) {
	content = strings.TrimSpace(content)

	ti := strings.Index(content, "TITLE:")
	di := strings.Index(content, "DESCRIPTION:")
	if ti >= 0 && di > ti {
		title = strings.TrimSpace(content[ti+len("TITLE:") : di])
		description = strings.TrimSpace(content[di+len("DESCRIPTION:"):])
		if title != "" && description != "" {
			return title, description
		}
	}

	first, rest, found := strings.Cut(content, "\n")
	first = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(first), "TITLE:"))
	if !found || strings.TrimSpace(rest) == "" {
		return first, content
	}
	return first, strings.TrimSpace(rest)
}
