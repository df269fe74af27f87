package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/heimdex/clipdiary/internal/config"
	"github.com/heimdex/clipdiary/internal/diary"
	"github.com/heimdex/clipdiary/internal/logging"
)

// ObjectStoreUploader puts the source into an S3 compatible bucket and
// hands the render backend a presigned GET URL.
type ObjectStoreUploader struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	logger *slog.Logger
}

func NewObjectStoreUploader(cfg config.MinioConfig, logger *slog.Logger) (*ObjectStoreUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &ObjectStoreUploader{client: client, bucket: cfg.Bucket, expiry: expiry, logger: logger}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (u *ObjectStoreUploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", minioError(err))
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", minioError(err))
	}
	u.logger.Info("bucket created", "bucket", u.bucket)
	return nil
}

func (u *ObjectStoreUploader) UploadSource(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	key := ObjectKey(localPath)
	_, err = u.client.PutObject(ctx, u.bucket, key, f, info.Size(), minio.PutObjectOptions{
		ContentType: diary.MIMEType(localPath),
	})
	if err != nil {
		return "", minioError(err)
	}

	presigned, err := u.client.PresignedGetObject(ctx, u.bucket, key, u.expiry, nil)
	if err != nil {
		return "", &APIError{Message: "presign source", Err: err}
	}
	u.logger.Debug("source stored", "bucket", u.bucket, "key", key, "bytes", info.Size())
	return presigned.String(), nil
}

// ObjectKey places each upload under sources/ with a fresh id and the
// original extension.
func ObjectKey(localPath string) string {
	return "sources/" + diary.NewID() + strings.ToLower(filepath.Ext(localPath))
}

func minioError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode != 0 {
		return &APIError{StatusCode: resp.StatusCode, Message: firstNonEmpty(resp.Message, resp.Code), Err: err}
	}
	return transportError("object store", err)
}
