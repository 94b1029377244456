// Package instagram publishes Reels through the Instagram Graph API.
//
// The Graph API only accepts a video URL that Instagram fetches itself, so
// every upload first makes the local file public through a Publisher.
package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelsync/config"
	rshttp "reelsync/http"
	"reelsync/internal/logging"
	"reelsync/internal/retry"
	"reelsync/platform"
	"reelsync/video"

	"go.uber.org/zap"
)

// Container status codes.
const (
	StatusFinished   = "FINISHED"
	StatusInProgress = "IN_PROGRESS"
	StatusError      = "ERROR"
	StatusExpired    = "EXPIRED"
	StatusPublished  = "PUBLISHED"
)

// Publisher makes a local file reachable at a public URL.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (publicURL string, release func(context.Context) error, err error)
}

// Uploader implements platform.Uploader for Instagram Reels.
type Uploader struct {
	cfg       config.InstagramConfig
	client    *rshttp.Client
	publisher Publisher
	log       *zap.Logger
}

// New returns an uploader. publisher may be nil, in which case every upload
// fails with a precondition error.
func New(cfg config.InstagramConfig, client *rshttp.Client, publisher Publisher, log *zap.Logger) *Uploader {
	if client == nil {
		client = rshttp.New(nil)
	}
	log = logging.OrNop(log)
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 5 * time.Minute
	}
	return &Uploader{cfg: cfg, client: client, publisher: publisher, log: log.Named("instagram")}
}

func (u *Uploader) Target() platform.Target { return platform.Instagram }

// IsConfigured reports whether an access token and user id are set.
func (u *Uploader) IsConfigured() bool {
	return u.cfg.AccessToken != "" && u.cfg.UserID != ""
}

// Upload creates a Reels container, waits for Instagram to process it and
// publishes it.
func (u *Uploader) Upload(ctx context.Context, asset video.Asset, desc platform.Description) (platform.Result, error) {
	if !u.IsConfigured() {
		return platform.Result{}, platform.NotConfigured(platform.Instagram, "access token or user id missing")
	}
	if u.publisher == nil {
		return platform.Result{}, platform.Errorf(platform.Instagram, platform.KindPrecondition, "stage-video",
			fmt.Errorf("%w: configure staging.endpoint or staging.public_base_url", platform.ErrPublicURLRequired))
	}

	videoURL, release, err := u.publisher.Publish(ctx, asset.Path)
	if err != nil {
		return platform.Result{}, platform.Classify(platform.Instagram, "stage-video", err)
	}
	if release != nil {
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				u.log.Warn("could not release staged video", zap.Error(err))
			}
		}()
	}

	caption := platform.Truncate(desc.Text, platform.MaxInstagramCaption)
	containerID, err := u.createContainer(ctx, videoURL, caption)
	if err != nil {
		return platform.Result{}, err
	}
	u.log.Info("reel container created", zap.String("container_id", containerID))

	if err := u.waitForContainer(ctx, containerID); err != nil {
		return platform.Result{}, err
	}

	mediaID, err := u.publish(ctx, containerID)
	if err != nil {
		return platform.Result{}, err
	}

	result := platform.Result{RemoteID: mediaID, URL: u.permalink(ctx, mediaID)}
	u.log.Info("reel published", zap.String("media_id", mediaID), zap.String("url", result.URL))
	return result, nil
}

type idResponse struct {
	ID string `json:"id"`
}

func (u *Uploader) createContainer(ctx context.Context, videoURL, caption string) (string, error) {
	form := url.Values{
		"media_type":    {"REELS"},
		"video_url":     {videoURL},
		"caption":       {caption},
		"share_to_feed": {fmt.Sprint(u.cfg.ShareToFeed)},
	}

	var out idResponse
	if err := u.post(ctx, u.endpoint(u.cfg.UserID, "media"), form, &out); err != nil {
		return "", classify("create-container", err)
	}
	if out.ID == "" {
		return "", platform.Errorf(platform.Instagram, platform.KindPermanent, "create-container",
			errors.New("response carried no container id"))
	}
	return out.ID, nil
}

type containerStatus struct {
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

func (u *Uploader) waitForContainer(ctx context.Context, containerID string) error {
	deadline := time.Now().Add(u.cfg.ProcessingTimeout)

	for {
		var st containerStatus
		err := u.get(ctx, u.endpoint(containerID), url.Values{"fields": {"status_code,status"}}, &st)
		if err != nil {
			return classify("container-status", err)
		}

		switch st.StatusCode {
		case StatusFinished, StatusPublished:
			return nil
		case StatusError, StatusExpired:
			return platform.Errorf(platform.Instagram, platform.KindPermanent, "container-status",
				fmt.Errorf("%w: container %s is %s: %s", platform.ErrProcessingFailed, containerID, st.StatusCode, st.Status))
		}

		u.log.Debug("waiting for container", zap.String("container_id", containerID), zap.String("status", st.StatusCode))

		if time.Now().Add(u.cfg.PollInterval).After(deadline) {
			return platform.Errorf(platform.Instagram, platform.KindTransient, "container-status",
				fmt.Errorf("%w: container %s still %s after %v", platform.ErrProcessingTimeout, containerID, st.StatusCode, u.cfg.ProcessingTimeout))
		}

		timer := time.NewTimer(u.cfg.PollInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return platform.Classify(platform.Instagram, "container-status", ctx.Err())
		}
	}
}

func (u *Uploader) publish(ctx context.Context, containerID string) (string, error) {
	var out idResponse
	err := u.post(ctx, u.endpoint(u.cfg.UserID, "media_publish"), url.Values{"creation_id": {containerID}}, &out)
	if err != nil {
		return "", classify("publish", err)
	}
	if out.ID == "" {
		return "", platform.Errorf(platform.Instagram, platform.KindPermanent, "publish",
			errors.New("response carried no media id"))
	}
	return out.ID, nil
}

// permalink is best effort. An empty string means the URL is unknown.
func (u *Uploader) permalink(ctx context.Context, mediaID string) string {
	var out struct {
		Permalink string `json:"permalink"`
		Shortcode string `json:"shortcode"`
	}
	if err := u.get(ctx, u.endpoint(mediaID), url.Values{"fields": {"permalink,shortcode"}}, &out); err != nil {
		u.log.Debug("permalink lookup failed", zap.String("media_id", mediaID), zap.Error(err))
		return ""
	}
	if out.Permalink != "" {
		return out.Permalink
	}
	if out.Shortcode != "" {
		return "https://www.instagram.com/reel/" + out.Shortcode
	}
	return ""
}

func (u *Uploader) endpoint(parts ...string) string {
	return strings.TrimRight(u.cfg.GraphURL, "/") + "/" + strings.Join(parts, "/")
}

func (u *Uploader) post(ctx context.Context, endpoint string, form url.Values, out any) error {
	form.Set("access_token", u.cfg.AccessToken)
	resp, err := u.client.Do(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	if err != nil {
		return err
	}
	return decode(resp.Body, out)
}

func (u *Uploader) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	query.Set("access_token", u.cfg.AccessToken)
	resp, err := u.client.Get(ctx, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	return decode(resp.Body, out)
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return retry.Permanent(fmt.Errorf("decode graph response: %w", err))
	}
	return nil
}
