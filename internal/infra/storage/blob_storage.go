// Package storage stores uploaded media in a gocloud bucket.
package storage

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"kitchenline/config"
	"kitchenline/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/gcsblob"  // gs:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
	"gocloud.dev/gcerrors"
)

const (
	defaultBucketURL       = "mem://"
	defaultSignedURLExpiry = 15 * time.Minute
)

// Params holds dependencies for BlobStorage, injected by Fx.
type Params struct {
	fx.In
	fx.Lifecycle

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

type bucketStorage struct {
	bucket        *blob.Bucket
	bucketURL     string
	publicBaseURL string
	expiry        time.Duration
}

// NewBlobStorage opens the configured bucket and closes it on shutdown.
func NewBlobStorage(params Params) (service.BlobStorage, error) {
	var cfg config.BlobConfig
	if params.Config.Blob != nil {
		cfg = *params.Config.Blob
	}
	if cfg.BucketURL == "" {
		params.Logger.Warn("blob.bucketUrl not set, uploads are kept in memory")
		cfg.BucketURL = defaultBucketURL
	}

	storage, err := OpenBlobStorage(params.Ctx, cfg)
	if err != nil {
		return nil, err
	}

	params.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return storage.Close()
		},
	})

	return storage, nil
}

// OpenBlobStorage opens the bucket named by cfg.BucketURL.
func OpenBlobStorage(ctx context.Context, cfg config.BlobConfig) (service.BlobStorage, error) {
	bucket, err := blob.OpenBucket(ctx, cfg.BucketURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open bucket %s", cfg.BucketURL)
	}

	expiry := cfg.SignedURLExpiry
	if expiry <= 0 {
		expiry = defaultSignedURLExpiry
	}

	return &bucketStorage{
		bucket:        bucket,
		bucketURL:     cfg.BucketURL,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		expiry:        expiry,
	}, nil
}

// Upload writes data at path. The returned URL is public when a base URL is
// configured, a signed URL when the bucket supports signing, and the bucket
// URL of the object otherwise.
func (s *bucketStorage) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	err := s.bucket.WriteAll(ctx, path, data, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + path, nil
	}

	url, err := s.bucket.SignedURL(ctx, path, &blob.SignedURLOptions{Expiry: s.expiry})
	if gcerrors.Code(err) == gcerrors.Unimplemented {
		return strings.TrimSuffix(s.bucketURL, "/") + "/" + path, nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to sign URL for %s", path)
	}

	return url, nil
}

func (s *bucketStorage) Close() error {
	return s.bucket.Close()
}
