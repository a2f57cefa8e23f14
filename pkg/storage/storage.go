package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dramaforge/dramaforge-backend/pkg/config"
	"github.com/dramaforge/dramaforge-backend/pkg/logger"
)

// Uploader is the surface generation services persist media through.
type Uploader interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64) (string, error)
	UploadBytes(ctx context.Context, objectName string, data []byte) (string, error)
}

// Store persists generated media in an S3-compatible bucket and hands
// back presigned URLs for playback.
type Store struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// New connects to the configured endpoint and ensures the bucket exists.
func New(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting object storage: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %q: %w", cfg.Bucket, err)
		}
	}

	if logg != nil {
		logg.Info(ctx, "object storage connection established")
	}

	return &Store{client: client, bucket: cfg.Bucket, expiry: cfg.URLExpiry}, nil
}

// Upload streams an object into the bucket and returns a presigned URL.
func (s *Store) Upload(ctx context.Context, objectName string, reader io.Reader, size int64) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("object storage not configured")
	}
	opts := minio.PutObjectOptions{ContentType: contentTypeForObject(objectName)}
	if _, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, opts); err != nil {
		return "", fmt.Errorf("uploading %q: %w", objectName, err)
	}
	return s.PresignedURL(ctx, objectName)
}

// UploadBytes uploads an in-memory payload.
func (s *Store) UploadBytes(ctx context.Context, objectName string, data []byte) (string, error) {
	return s.Upload(ctx, objectName, bytes.NewReader(data), int64(len(data)))
}

// PresignedURL returns a time-limited GET URL for an existing object.
func (s *Store) PresignedURL(ctx context.Context, objectName string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("object storage not configured")
	}
	expiry := s.expiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presigning %q: %w", objectName, err)
	}
	return signed.String(), nil
}

func contentTypeForObject(objectName string) string {
	switch filepath.Ext(objectName) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
