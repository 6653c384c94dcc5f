// Package storage_service stages intermediate media on S3-compatible
// object storage so the generation APIs can fetch it by URL, publishes
// final artifacts, and fetches remote artifacts to local scratch.
package storage_service

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/AitomaLab/ugc-engine/config"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Stager makes a local file reachable by URL. Staged objects are
// short-lived; callers must use the URL promptly.
type Stager interface {
	Stage(ctx context.Context, localPath string) (string, error)
}

// Publisher persists a final artifact and returns its public URL.
type Publisher interface {
	Publish(ctx context.Context, localPath, objectName string) (string, error)
}

// MinIOStorage wraps the object-store operations the pipeline needs.
type MinIOStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *slog.Logger
}

func NewMinIOStorage(cfg config.StorageConfig, logger *slog.Logger) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	s := &MinIOStorage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		logger:    logger,
	}

	if err := s.ensureBucket(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}
	return s, nil
}

// ensureBucket creates the bucket on first use and opens it for public
// reads, which the generation services need to fetch staged media.
func (s *MinIOStorage) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	policy := fmt.Sprintf(`{
		"Version": "2012-10-17",
		"Statement": [
			{
				"Effect": "Allow",
				"Principal": {"AWS": ["*"]},
				"Action": ["s3:GetObject"],
				"Resource": ["arn:aws:s3:::%s/*"]
			}
		]
	}`, s.bucket)
	if err := s.client.SetBucketPolicy(ctx, s.bucket, policy); err != nil {
		return fmt.Errorf("failed to set bucket policy: %w", err)
	}
	return nil
}

// Stage uploads a local file under staging/ with a unique name and
// returns its public URL.
func (s *MinIOStorage) Stage(ctx context.Context, localPath string) (string, error) {
	objectName := fmt.Sprintf("staging/%s%s", uuid.New().String(), filepath.Ext(localPath))
	return s.upload(ctx, localPath, objectName)
}

// Publish uploads a final artifact under videos/ with the given name.
func (s *MinIOStorage) Publish(ctx context.Context, localPath, objectName string) (string, error) {
	return s.upload(ctx, localPath, "videos/"+objectName)
}

func (s *MinIOStorage) upload(ctx context.Context, localPath, objectName string) (string, error) {
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := s.client.FPutObject(ctx, s.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", localPath, err)
	}

	url := s.objectURL(objectName)
	s.logger.Info("Uploaded to object storage",
		slog.String("object", objectName),
		slog.Int64("bytes", info.Size),
		slog.String("url", url))
	return url, nil
}

func (s *MinIOStorage) objectURL(objectName string) string {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, objectName)
	}
	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucket, objectName)
}
