// Package tiktok publishes videos through the TikTok Content Posting API
// using direct file upload.
package tiktok

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"reelsync/config"
	rshttp "reelsync/http"
	"reelsync/internal/logging"
	"reelsync/platform"
	"reelsync/video"

	"go.uber.org/zap"
)

// DefaultBaseURL is the Content Posting API root.
const DefaultBaseURL = "https://open.tiktokapis.com"

// Chunk bounds from the upload guidelines. Files under MinChunkSize go up
// in one piece.
const (
	MinChunkSize = 5 << 20
	MaxChunkSize = 64 << 20
)

// Publish statuses reported by the status endpoint.
const (
	StatusProcessingUpload   = "PROCESSING_UPLOAD"
	StatusProcessingDownload = "PROCESSING_DOWNLOAD"
	StatusSendToInbox        = "SEND_TO_USER_INBOX"
	StatusPublishComplete    = "PUBLISH_COMPLETE"
	StatusFailed             = "FAILED"
)

// PrivacyLevel maps a configured privacy name onto the API value.
func PrivacyLevel(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "friends":
		return "MUTUAL_FOLLOW_FRIENDS"
	case "followers":
		return "FOLLOWER_OF_CREATOR"
	case "private":
		return "SELF_ONLY"
	}
	return "PUBLIC_TO_EVERYONE"
}

// Uploader implements platform.Uploader for TikTok.
type Uploader struct {
	cfg    config.TikTokConfig
	client *rshttp.Client
	log    *zap.Logger
}

// New returns an uploader. A nil client gets the default one.
func New(cfg config.TikTokConfig, client *rshttp.Client, log *zap.Logger) *Uploader {
	if client == nil {
		client = rshttp.New(nil)
	}
	log = logging.OrNop(log)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 5 * time.Minute
	}
	return &Uploader{cfg: cfg, client: client, log: log.Named("tiktok")}
}

func (u *Uploader) Target() platform.Target { return platform.TikTok }

// IsConfigured requires the feature flag, a client key and an access token.
// Posting needs an app approved by TikTok, hence the flag.
func (u *Uploader) IsConfigured() bool {
	return u.cfg.Enabled && u.cfg.ClientKey != "" && u.cfg.AccessToken != ""
}

// Upload initializes a direct post, sends the file in chunks and waits for
// TikTok to finish publishing.
func (u *Uploader) Upload(ctx context.Context, asset video.Asset, desc platform.Description) (platform.Result, error) {
	if !u.IsConfigured() {
		return platform.Result{}, platform.NotConfigured(platform.TikTok, "enable tiktok and set client key and access token")
	}

	f, err := os.Open(asset.Path)
	if err != nil {
		return platform.Result{}, platform.Errorf(platform.TikTok, platform.KindPermanent, "open-video", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return platform.Result{}, platform.Errorf(platform.TikTok, platform.KindPermanent, "open-video", err)
	}

	plan := PlanChunks(info.Size(), u.cfg.ChunkSizeMB<<20)
	session, err := u.initUpload(ctx, platform.Truncate(desc.Text, platform.MaxTikTokTitle), plan)
	if err != nil {
		return platform.Result{}, err
	}
	u.log.Info("upload initialized",
		zap.String("publish_id", session.PublishID),
		zap.Int64("size", plan.VideoSize),
		zap.Int("chunks", plan.Count),
	)

	if err := u.sendChunks(ctx, f, session.UploadURL, plan); err != nil {
		return platform.Result{}, err
	}

	postID, err := u.waitForPublish(ctx, session.PublishID)
	if err != nil {
		return platform.Result{}, err
	}

	result := platform.Result{RemoteID: session.PublishID}
	if postID != "" {
		result.RemoteID = postID
		result.URL = "https://www.tiktok.com/video/" + postID
	}
	u.log.Info("video published", zap.String("id", result.RemoteID))
	return result, nil
}

// ChunkPlan describes how a file is split for upload.
type ChunkPlan struct {
	VideoSize int64
	ChunkSize int64
	Count     int
}

// Range returns the byte range of chunk i. The last chunk absorbs the
// remainder.
func (p ChunkPlan) Range(i int) (start, end int64) {
	start = int64(i) * p.ChunkSize
	end = start + p.ChunkSize - 1
	if i == p.Count-1 {
		end = p.VideoSize - 1
	}
	return start, end
}

// PlanChunks splits size bytes into chunks of roughly chunkSize, clamped to
// the API bounds.
func PlanChunks(size, chunkSize int64) ChunkPlan {
	if chunkSize < MinChunkSize {
		chunkSize = MinChunkSize
	}
	if chunkSize > MaxChunkSize {
		chunkSize = MaxChunkSize
	}
	if size <= chunkSize {
		return ChunkPlan{VideoSize: size, ChunkSize: size, Count: 1}
	}
	return ChunkPlan{VideoSize: size, ChunkSize: chunkSize, Count: int(size / chunkSize)}
}

type postInfo struct {
	Title          string `json:"title"`
	PrivacyLevel   string `json:"privacy_level"`
	DisableDuet    bool   `json:"disable_duet"`
	DisableStitch  bool   `json:"disable_stitch"`
	DisableComment bool   `json:"disable_comment"`
}

type sourceInfo struct {
	Source          string `json:"source"`
	VideoSize       int64  `json:"video_size"`
	ChunkSize       int64  `json:"chunk_size"`
	TotalChunkCount int    `json:"total_chunk_count"`
}

type initRequest struct {
	PostInfo   postInfo   `json:"post_info"`
	SourceInfo sourceInfo `json:"source_info"`
}

type initData struct {
	PublishID string `json:"publish_id"`
	UploadURL string `json:"upload_url"`
}

func (u *Uploader) initUpload(ctx context.Context, title string, plan ChunkPlan) (initData, error) {
	req := initRequest{
		PostInfo: postInfo{
			Title:        title,
			PrivacyLevel: PrivacyLevel(u.cfg.Privacy),
		},
		SourceInfo: sourceInfo{
			Source:          "FILE_UPLOAD",
			VideoSize:       plan.VideoSize,
			ChunkSize:       plan.ChunkSize,
			TotalChunkCount: plan.Count,
		},
	}

	var resp envelope[initData]
	if err := u.client.PostJSON(ctx, u.endpoint("/v2/post/publish/video/init/"), u.authHeader(), req, &resp); err != nil {
		return initData{}, classify("init-upload", err)
	}
	if err := resp.Error.failure(); err != nil {
		return initData{}, classify("init-upload", err)
	}
	if resp.Data.PublishID == "" || resp.Data.UploadURL == "" {
		return initData{}, platform.Errorf(platform.TikTok, platform.KindPermanent, "init-upload",
			errors.New("response carried no publish id or upload url"))
	}
	return resp.Data, nil
}

func (u *Uploader) sendChunks(ctx context.Context, f io.ReaderAt, uploadURL string, plan ChunkPlan) error {
	for i := 0; i < plan.Count; i++ {
		start, end := plan.Range(i)
		buf := make([]byte, end-start+1)
		if _, err := f.ReadAt(buf, start); err != nil && !errors.Is(err, io.EOF) {
			return platform.Errorf(platform.TikTok, platform.KindPermanent, "read-chunk", err)
		}

		headers := map[string]string{
			"Content-Type":  "video/mp4",
			"Content-Range": fmt.Sprintf("bytes %d-%d/%d", start, end, plan.VideoSize),
		}
		if _, err := u.client.Do(ctx, http.MethodPut, uploadURL, bytes.NewReader(buf), headers); err != nil {
			return classify("upload-chunk", err)
		}
		u.log.Debug("chunk sent", zap.Int("chunk", i+1), zap.Int("of", plan.Count))
	}
	return nil
}

type statusData struct {
	Status     string  `json:"status"`
	FailReason string  `json:"fail_reason"`
	PostIDs    []int64 `json:"publicaly_available_post_id"`
}

// waitForPublish polls until the post completes and returns its post id,
// which TikTok only reports for public posts.
func (u *Uploader) waitForPublish(ctx context.Context, publishID string) (string, error) {
	deadline := time.Now().Add(u.cfg.ProcessingTimeout)

	for {
		var resp envelope[statusData]
		err := u.client.PostJSON(ctx, u.endpoint("/v2/post/publish/status/fetch/"), u.authHeader(),
			map[string]string{"publish_id": publishID}, &resp)
		if err == nil {
			err = resp.Error.failure()
		}
		if err != nil {
			return "", classify("publish-status", err)
		}

		switch resp.Data.Status {
		case StatusPublishComplete, StatusSendToInbox:
			if len(resp.Data.PostIDs) > 0 {
				return strconv.FormatInt(resp.Data.PostIDs[0], 10), nil
			}
			return "", nil
		case StatusFailed:
			return "", platform.Errorf(platform.TikTok, platform.KindPermanent, "publish-status",
				fmt.Errorf("%w: %s", platform.ErrProcessingFailed, resp.Data.FailReason))
		}

		if time.Now().Add(u.cfg.PollInterval).After(deadline) {
			return "", platform.Errorf(platform.TikTok, platform.KindTransient, "publish-status",
				fmt.Errorf("%w: %s still %s", platform.ErrProcessingTimeout, publishID, resp.Data.Status))
		}

		timer := time.NewTimer(u.cfg.PollInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", platform.Classify(platform.TikTok, "publish-status", ctx.Err())
		}
	}
}

func (u *Uploader) endpoint(path string) string {
	return strings.TrimRight(u.cfg.BaseURL, "/") + path
}

func (u *Uploader) authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + u.cfg.AccessToken}
}
