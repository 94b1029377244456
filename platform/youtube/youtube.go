// Package youtube uploads Shorts through the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"reelsync/config"
	"reelsync/internal/logging"
	"reelsync/platform"
	"reelsync/video"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	// MaxTags is the number of tags YouTube accepts on a video.
	MaxTags = 30
	// ShortsTag is always attached.
	ShortsTag = "Shorts"

	uploadChunkSize = 1 << 20
	// chunkRetryDeadline bounds the client library's own retries of one
	// chunk. Whole-upload attempts are counted by the caller's retry policy.
	chunkRetryDeadline = 10 * time.Second
)

// ShortsURL returns the public URL of a Short.
func ShortsURL(id string) string {
	return "https://youtube.com/shorts/" + id
}

// Uploader implements platform.Uploader for YouTube Shorts.
type Uploader struct {
	cfg config.YouTubeConfig
	log *zap.Logger

	mu  sync.Mutex
	svc *youtube.Service
}

// New returns an uploader that authorizes lazily from the client secret and
// token files in cfg.
func New(cfg config.YouTubeConfig, log *zap.Logger) *Uploader {
	log = logging.OrNop(log)
	return &Uploader{cfg: cfg, log: log.Named("youtube")}
}

// NewWithService uses an already authorized service.
func NewWithService(svc *youtube.Service, cfg config.YouTubeConfig, log *zap.Logger) *Uploader {
	u := New(cfg, log)
	u.svc = svc
	return u
}

func (u *Uploader) Target() platform.Target { return platform.YouTube }

// IsConfigured reports whether both credential files exist.
func (u *Uploader) IsConfigured() bool {
	return fileExists(u.cfg.ClientSecretFile) && fileExists(u.cfg.TokenFile)
}

// Upload inserts the video with a resumable media upload.
func (u *Uploader) Upload(ctx context.Context, asset video.Asset, desc platform.Description) (platform.Result, error) {
	svc, err := u.service(ctx)
	if err != nil {
		return platform.Result{}, err
	}

	f, err := os.Open(asset.Path)
	if err != nil {
		return platform.Result{}, platform.Errorf(platform.YouTube, platform.KindPermanent, "open-video", err)
	}
	defer f.Close()

	title := Title(desc.Title, asset.Path)
	v := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: platform.Truncate(desc.Text, platform.MaxYouTubeDescription),
			Tags:        Tags(u.cfg.Tags),
			CategoryId:  u.categoryID(),
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           u.privacy(),
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	u.log.Info("uploading short",
		zap.String("title", title),
		zap.String("privacy", v.Status.PrivacyStatus),
		zap.Int64("size", asset.Size),
	)

	call := svc.Videos.Insert([]string{"snippet", "status"}, v).
		Media(f, mediaOptions()...).
		ProgressUpdater(func(current, total int64) {
			u.log.Debug("upload progress", zap.Int64("sent", current), zap.Int64("total", total))
		}).
		Context(ctx)

	res, err := call.Do()
	if err != nil {
		return platform.Result{}, classify("insert", err)
	}

	result := platform.Result{RemoteID: res.Id, URL: ShortsURL(res.Id)}
	u.log.Info("short published", zap.String("video_id", result.RemoteID), zap.String("url", result.URL))
	return result, nil
}

// mediaOptions configures the resumable upload. The library retries a
// failed chunk on 5xx and 429 until chunkRetryDeadline passes. Only the
// error after that reaches the retry policy, as one attempt.
func mediaOptions() []googleapi.MediaOption {
	return []googleapi.MediaOption{
		googleapi.ChunkSize(uploadChunkSize),
		googleapi.ChunkRetryDeadline(chunkRetryDeadline),
		googleapi.ContentType("video/mp4"),
	}
}

func (u *Uploader) categoryID() string {
	if u.cfg.CategoryID == "" {
		return "22"
	}
	return u.cfg.CategoryID
}

func (u *Uploader) privacy() string {
	switch p := strings.ToLower(u.cfg.PrivacyStatus); p {
	case "private", "unlisted", "public":
		return p
	}
	return "public"
}

// service builds the API client on first use.
func (u *Uploader) service(ctx context.Context) (*youtube.Service, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.svc != nil {
		return u.svc, nil
	}
	if !u.IsConfigured() {
		return nil, platform.NotConfigured(platform.YouTube, "client secret or token file missing")
	}

	secret, err := os.ReadFile(u.cfg.ClientSecretFile)
	if err != nil {
		return nil, platform.Errorf(platform.YouTube, platform.KindConfiguration, "read-client-secret", err)
	}
	oauthCfg, err := google.ConfigFromJSON(secret, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, platform.Errorf(platform.YouTube, platform.KindConfiguration, "parse-client-secret", err)
	}

	tok, err := loadToken(u.cfg.TokenFile)
	if err != nil {
		return nil, platform.Errorf(platform.YouTube, platform.KindConfiguration, "read-token", err)
	}

	// The service outlives this call, so the refresh source must not
	// inherit its deadline.
	src := &persistingTokenSource{
		src:  oauthCfg.TokenSource(context.Background(), tok),
		path: u.cfg.TokenFile,
		last: tok.AccessToken,
		log:  u.log,
	}

	svc, err := youtube.NewService(ctx, option.WithTokenSource(oauth2.ReuseTokenSource(tok, src)))
	if err != nil {
		return nil, platform.Errorf(platform.YouTube, platform.KindConfiguration, "create-service", err)
	}
	u.svc = svc
	return svc, nil
}

// Title picks the upload title: the given one, else the file name without
// extension, cut to the YouTube limit.
func Title(title, videoPath string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		base := filepath.Base(videoPath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return platform.Truncate(title, platform.MaxYouTubeTitle)
}

// Tags normalizes configured tags: '#' stripped, duplicates removed,
// ShortsTag first, at most MaxTags.
func Tags(tags []string) []string {
	out := []string{ShortsTag}
	seen := map[string]bool{strings.ToLower(ShortsTag): true}
	for _, t := range tags {
		t = strings.TrimSpace(strings.ReplaceAll(t, "#", ""))
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}

// classify maps API failures onto platform error kinds.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case hasReason(gerr, "quotaExceeded", "uploadLimitExceeded"):
			return platform.Errorf(platform.YouTube, platform.KindPermanent, op,
				fmt.Errorf("%w: %w", platform.ErrQuotaExceeded, err))
		case gerr.Code == 401 || hasReason(gerr, "authError", "unauthorized"):
			return platform.Errorf(platform.YouTube, platform.KindPermanent, op,
				fmt.Errorf("%w: %w", platform.ErrUnauthorized, err))
		case gerr.Code == 408 || gerr.Code == 429 || gerr.Code >= 500,
			hasReason(gerr, "rateLimitExceeded", "userRateLimitExceeded", "backendError"):
			return platform.Errorf(platform.YouTube, platform.KindTransient, op, err)
		default:
			return platform.Errorf(platform.YouTube, platform.KindPermanent, op, err)
		}
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.Response != nil && rerr.Response.StatusCode >= 500 {
			return platform.Errorf(platform.YouTube, platform.KindTransient, "refresh-token", err)
		}
		return platform.Errorf(platform.YouTube, platform.KindConfiguration, "refresh-token",
			fmt.Errorf("%w: %w", platform.ErrUnauthorized, err))
	}

	return platform.Classify(platform.YouTube, op, err)
}

func hasReason(gerr *googleapi.Error, reasons ...string) bool {
	for _, item := range gerr.Errors {
		for _, r := range reasons {
			if item.Reason == r {
				return true
			}
		}
	}
	return false
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
