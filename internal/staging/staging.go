// Package staging makes a local video reachable at a public HTTPS URL, which
// Instagram requires because it fetches Reels itself.
package staging

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"reelsync/config"
	"reelsync/internal/logging"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned by New when neither a bucket nor a public
// base URL is configured.
var ErrNotConfigured = errors.New("staging: no bucket or public base URL configured")

// Publisher exposes a local file over HTTPS. The returned release function
// withdraws it again and may be nil.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (publicURL string, release func(context.Context) error, err error)
}

// New picks the publisher for cfg: a bucket when an endpoint is set,
// otherwise a static base URL.
func New(cfg config.StagingConfig, log *zap.Logger) (Publisher, error) {
	switch {
	case cfg.Endpoint != "" && cfg.Bucket != "":
		return NewBucket(cfg, log)
	case cfg.PublicBaseURL != "":
		return NewStatic(cfg.PublicBaseURL)
	}
	return nil, ErrNotConfigured
}

// objectStore is the subset of *minio.Client used here.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Bucket uploads videos to an S3 compatible bucket and hands out presigned
// GET URLs.
type Bucket struct {
	store  objectStore
	bucket string
	prefix string
	expiry time.Duration
	log    *zap.Logger
}

// NewBucket connects to the configured endpoint. No request is made until
// the first Publish.
func NewBucket(cfg config.StagingConfig, log *zap.Logger) (*Bucket, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("staging: init client for %s: %w", cfg.Endpoint, err)
	}
	return newBucket(client, cfg, log), nil
}

func newBucket(store objectStore, cfg config.StagingConfig, log *zap.Logger) *Bucket {
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	log = logging.OrNop(log)
	return &Bucket{
		store:  store,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		expiry: expiry,
		log:    log.Named("staging"),
	}
}

// Publish uploads localPath under a fresh object name and presigns it.
func (b *Bucket) Publish(ctx context.Context, localPath string) (string, func(context.Context) error, error) {
	exists, err := b.store.BucketExists(ctx, b.bucket)
	if err != nil {
		return "", nil, fmt.Errorf("staging: check bucket %s: %w", b.bucket, err)
	}
	if !exists {
		return "", nil, fmt.Errorf("staging: bucket %s does not exist", b.bucket)
	}

	object := b.prefix + uuid.NewString() + strings.ToLower(filepath.Ext(localPath))

	info, err := b.store.FPutObject(ctx, b.bucket, object, localPath, minio.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return "", nil, fmt.Errorf("staging: upload %s: %w", object, err)
	}

	u, err := b.store.PresignedGetObject(ctx, b.bucket, object, b.expiry, url.Values{})
	if err != nil {
		b.store.RemoveObject(ctx, b.bucket, object, minio.RemoveObjectOptions{})
		return "", nil, fmt.Errorf("staging: presign %s: %w", object, err)
	}

	b.log.Info("video staged",
		zap.String("bucket", b.bucket),
		zap.String("object", object),
		zap.Int64("size", info.Size),
		zap.Duration("expiry", b.expiry),
	)

	release := func(ctx context.Context) error {
		if err := b.store.RemoveObject(ctx, b.bucket, object, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("staging: remove %s: %w", object, err)
		}
		b.log.Debug("staged video removed", zap.String("object", object))
		return nil
	}
	return u.String(), release, nil
}

// Static assumes videos are already served under a base URL by file name,
// e.g. from a synced folder behind a CDN.
type Static struct {
	base *url.URL
}

// NewStatic parses base, which must be an absolute http(s) URL.
func NewStatic(base string) (*Static, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("staging: parse public base URL: %w", err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("staging: public base URL must be absolute http(s): %q", base)
	}
	return &Static{base: u}, nil
}

// Publish joins the base URL and the file name. Nothing is uploaded.
func (s *Static) Publish(ctx context.Context, localPath string) (string, func(context.Context) error, error) {
	u := *s.base
	u.Path = path.Join("/", u.Path, filepath.Base(localPath))
	return u.String(), nil, nil
}
