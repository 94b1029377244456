package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelsync/config"
	"reelsync/platform"
	"reelsync/video"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

func newTestUploader(t *testing.T, handler http.HandlerFunc) *Uploader {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := youtube.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	return NewWithService(svc, config.YouTubeConfig{
		PrivacyStatus: "unlisted",
		CategoryID:    "24",
		Tags:          []string{"#cooking", "Shorts"},
	}, nil)
}

func writeVideo(t *testing.T) video.Asset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "my clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake mp4 payload"), 0o644))
	return video.Asset{Path: path, Format: "mp4", Size: 16, Duration: 30 * time.Second}
}

func TestUploadSuccess(t *testing.T) {
	var gotBody string
	u := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/upload/youtube/v3/videos"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"abc123"}`)
	})

	res, err := u.Upload(context.Background(), writeVideo(t), platform.Description{
		Title: "Pasta in five minutes",
		Text:  "Quick dinner #cooking",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.RemoteID)
	assert.Equal(t, "https://youtube.com/shorts/abc123", res.URL)

	assert.Contains(t, gotBody, `"title":"Pasta in five minutes"`)
	assert.Contains(t, gotBody, `"privacyStatus":"unlisted"`)
	assert.Contains(t, gotBody, `"categoryId":"24"`)
	assert.Contains(t, gotBody, "fake mp4 payload")
}

func TestUploadFallsBackToFileName(t *testing.T) {
	var gotBody string
	u := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, `{"id":"x"}`)
	})

	_, err := u.Upload(context.Background(), writeVideo(t), platform.Description{Text: "desc"})
	require.NoError(t, err)
	assert.Contains(t, gotBody, `"title":"my clip"`)
}

func TestUploadQuotaExceeded(t *testing.T) {
	u := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded","message":"quota"}]}}`)
	})

	_, err := u.Upload(context.Background(), writeVideo(t), platform.Description{Text: "d"})
	require.Error(t, err)

	var perr *platform.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, platform.KindPermanent, perr.Kind)
	assert.ErrorIs(t, err, platform.ErrQuotaExceeded)
	assert.False(t, perr.Transient())
}

func TestUploadMissingFile(t *testing.T) {
	u := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := u.Upload(context.Background(), video.Asset{Path: "/nonexistent/clip.mp4"}, platform.Description{})
	assert.Equal(t, platform.KindPermanent, platform.KindOf(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUploadNotConfigured(t *testing.T) {
	u := New(config.YouTubeConfig{ClientSecretFile: "/nonexistent/secret.json"}, nil)
	assert.False(t, u.IsConfigured())

	_, err := u.Upload(context.Background(), video.Asset{}, platform.Description{})
	assert.Equal(t, platform.KindConfiguration, platform.KindOf(err))
	assert.ErrorIs(t, err, platform.ErrNotConfigured)
}

func TestMediaOptionsBoundChunkRetries(t *testing.T) {
	mo := googleapi.ProcessMediaOptions(mediaOptions())

	assert.Equal(t, uploadChunkSize, mo.ChunkSize)
	assert.Equal(t, chunkRetryDeadline, mo.ChunkRetryDeadline)
	assert.Equal(t, "video/mp4", mo.ContentType)
}

func TestIsConfigured(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "secret.json")
	token := filepath.Join(dir, "token.json")
	require.NoError(t, os.WriteFile(secret, []byte("{}"), 0o600))

	u := New(config.YouTubeConfig{ClientSecretFile: secret, TokenFile: token}, nil)
	assert.False(t, u.IsConfigured(), "token file missing")

	require.NoError(t, os.WriteFile(token, []byte("{}"), 0o600))
	assert.True(t, u.IsConfigured())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind platform.Kind
		is   error
	}{
		{"server error", &googleapi.Error{Code: 503}, platform.KindTransient, nil},
		{"too many requests", &googleapi.Error{Code: 429}, platform.KindTransient, nil},
		{"rate limit reason", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}}, platform.KindTransient, nil},
		{"backend error", &googleapi.Error{Code: 400, Errors: []googleapi.ErrorItem{{Reason: "backendError"}}}, platform.KindTransient, nil},
		{"quota", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}}}, platform.KindPermanent, platform.ErrQuotaExceeded},
		{"unauthorized", &googleapi.Error{Code: 401}, platform.KindPermanent, platform.ErrUnauthorized},
		{"bad request", &googleapi.Error{Code: 400}, platform.KindPermanent, nil},
		{"refresh rejected", &oauth2.RetrieveError{Response: &http.Response{StatusCode: 400}}, platform.KindConfiguration, platform.ErrUnauthorized},
		{"refresh 5xx", &oauth2.RetrieveError{Response: &http.Response{StatusCode: 502}}, platform.KindTransient, nil},
		{"unknown", errors.New("connection reset"), platform.KindTransient, nil},
		{"canceled", context.Canceled, platform.KindPermanent, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("insert", tt.err)
			assert.Equal(t, tt.kind, platform.KindOf(err))
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Hello", Title("  Hello ", "/v/clip.mp4"))
	assert.Equal(t, "clip", Title("", "/v/clip.mp4"))

	long := Title(strings.Repeat("a", 150), "/v/clip.mp4")
	assert.Len(t, []rune(long), platform.MaxYouTubeTitle)
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestTags(t *testing.T) {
	assert.Equal(t, []string{"Shorts"}, Tags(nil))
	assert.Equal(t, []string{"Shorts", "food", "Travel"},
		Tags([]string{"#food", " shorts ", "Travel", "food", "#"}))

	many := make([]string, 50)
	for i := range many {
		many[i] = fmt.Sprintf("tag%d", i)
	}
	got := Tags(many)
	assert.Len(t, got, MaxTags)
	assert.Equal(t, "Shorts", got[0])
}

func TestLoadToken(t *testing.T) {
	dir := t.TempDir()

	goFormat := filepath.Join(dir, "go.json")
	require.NoError(t, os.WriteFile(goFormat,
		[]byte(`{"access_token":"a1","token_type":"Bearer","refresh_token":"r1","expiry":"2030-01-02T03:04:05Z"}`), 0o600))
	tok, err := loadToken(goFormat)
	require.NoError(t, err)
	assert.Equal(t, "a1", tok.AccessToken)
	assert.Equal(t, "r1", tok.RefreshToken)
	assert.Equal(t, 2030, tok.Expiry.Year())

	pyFormat := filepath.Join(dir, "py.json")
	require.NoError(t, os.WriteFile(pyFormat,
		[]byte(`{"token":"a2","refresh_token":"r2","client_id":"c","expiry":"2030-01-02T03:04:05.123456Z"}`), 0o600))
	tok, err = loadToken(pyFormat)
	require.NoError(t, err)
	assert.Equal(t, "a2", tok.AccessToken)
	assert.False(t, tok.Expiry.IsZero())

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o600))
	_, err = loadToken(empty)
	assert.Error(t, err)
}

type staticSource struct{ tok *oauth2.Token }

func (s staticSource) Token() (*oauth2.Token, error) { return s.tok, nil }

func TestPersistingTokenSourceSavesRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens", "yt.json")
	src := &persistingTokenSource{
		src:  staticSource{&oauth2.Token{AccessToken: "new", RefreshToken: "r"}},
		path: path,
		last: "old",
		log:  zap.NewNop(),
	}

	_, err := src.Token()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved oauth2.Token
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, "new", saved.AccessToken)

	require.NoError(t, os.Remove(path))
	_, err = src.Token()
	require.NoError(t, err)
	assert.NoFileExists(t, path, "unchanged token must not be rewritten")
}
