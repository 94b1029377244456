package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	rshttp "reelsync/http"
	"reelsync/internal/logging"
	"reelsync/internal/openai"

	"go.uber.org/zap"
)

// DefaultBaseURL is the OpenAI API root.
const DefaultBaseURL = "https://api.openai.com"

// WhisperConfig configures WhisperClient.
type WhisperConfig struct {
	APIKey string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Model defaults to whisper-1.
	Model string
	// Language is an ISO-639-1 hint such as "es". Empty lets Whisper detect it.
	Language string
}

// WhisperClient implements Transcriber with the OpenAI audio transcription
// endpoint. Each call makes exactly one API request.
type WhisperClient struct {
	http  *rshttp.Client
	cfg   WhisperConfig
	audio AudioExtractor
	log   *zap.Logger
}

// NewWhisperClient builds a client. A nil audio extractor uses ffmpeg.
func NewWhisperClient(client *rshttp.Client, cfg WhisperConfig, audio AudioExtractor, log *zap.Logger) *WhisperClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if audio == nil {
		audio = NewFFmpeg()
	}
	log = logging.OrNop(log)
	return &WhisperClient{http: client, cfg: cfg, audio: audio, log: log.Named("whisper")}
}

// IsConfigured reports whether an API key is set.
func (w *WhisperClient) IsConfigured() bool {
	return w.cfg.APIKey != ""
}

// Transcribe extracts the audio track and sends it to Whisper. An empty
// result is returned as an empty Transcript, not an error.
func (w *WhisperClient) Transcribe(ctx context.Context, videoPath string) (Transcript, error) {
	if !w.IsConfigured() {
		return Transcript{}, &Error{Op: "config", Path: videoPath, Err: ErrMissingAPIKey}
	}

	w.log.Debug("extracting audio", zap.String("video", videoPath))
	audioPath, cleanup, err := w.audio.ExtractAudio(ctx, videoPath)
	if err != nil {
		return Transcript{}, &Error{Op: "extract-audio", Path: videoPath, Err: err}
	}
	defer cleanup()

	body, contentType, err := w.buildForm(audioPath)
	if err != nil {
		return Transcript{}, &Error{Op: "request", Path: videoPath, Err: err}
	}

	headers := map[string]string{
		"Authorization": "Bearer " + w.cfg.APIKey,
		"Content-Type":  contentType,
	}
	endpoint := strings.TrimRight(w.cfg.BaseURL, "/") + "/v1/audio/transcriptions"

	resp, err := w.http.Do(ctx, http.MethodPost, endpoint, body, headers)
	if err != nil {
		return Transcript{}, &Error{Op: "request", Path: videoPath, Err: openai.ParseError(err)}
	}

	text := strings.TrimSpace(string(resp.Body))
	w.log.Info("transcription completed", zap.Int("chars", len(text)), zap.String("preview", preview(text, 100)))

	return Transcript{Text: text, Language: w.cfg.Language, Source: SourceWhisper}, nil
}

func (w *WhisperClient) buildForm(audioPath string) (io.Reader, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy audio: %w", err)
	}

	fields := map[string]string{
		"model":           w.cfg.Model,
		"response_format": "text",
	}
	if w.cfg.Language != "" {
		fields["language"] = w.cfg.Language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return &buf, mw.FormDataContentType(), nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
