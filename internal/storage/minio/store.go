// Package minio stores catalog images in an S3-compatible MinIO bucket.
package minio

import (
	"bytes"
	"context"
	"mime"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/partstore/storefront/internal/domain/blob"
	"github.com/partstore/storefront/internal/domain/external"
)

const serviceName = "minio"

// Config holds MinIO connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the externally reachable base URL of the endpoint. When
	// empty it is derived from Endpoint and UseSSL.
	PublicURL string
}

// Store implements blob.Store.
type Store struct {
	client *miniogo.Client
	bucket string
	prefix string
}

var _ blob.Store = (*Store)(nil)

// New connects to MinIO. The bucket is not created; call EnsureBucket.
func New(cfg Config) (*Store, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: publicPrefix(cfg),
	}, nil
}

func publicPrefix(cfg Config) string {
	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		base = scheme + cfg.Endpoint
	}
	return base + "/" + cfg.Bucket + "/"
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return external.Wrap(serviceName, "bucket exists", err)
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
		return external.Wrap(serviceName, "make bucket", err)
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return external.Wrap(serviceName, "bucket exists", err)
	}
	if !ok {
		return errors.Errorf("bucket %q does not exist", s.bucket)
	}
	return nil
}

// Upload stores obj under folder with a random name.
func (s *Store) Upload(ctx context.Context, folder string, obj blob.Object) (string, error) {
	key := strings.Trim(folder, "/") + "/" + uuid.NewString() + extensionFor(obj.ContentType)
	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(obj.Data), int64(len(obj.Data)),
		miniogo.PutObjectOptions{ContentType: obj.ContentType},
	)
	if err != nil {
		return "", external.Wrap(serviceName, "put object", err)
	}
	return s.prefix + key, nil
}

// Destroy removes an object previously returned by Upload. Foreign URLs are
// ignored.
func (s *Store) Destroy(ctx context.Context, url string) error {
	key, ok := s.keyFromURL(url)
	if !ok {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return external.Wrap(serviceName, "remove object", err)
	}
	return nil
}

func (s *Store) keyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.prefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

var imageExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
	"image/avif":    ".avif",
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if ext, ok := imageExtensions[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
