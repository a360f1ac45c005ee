package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"TikTokAuto-server/config"
	"TikTokAuto-server/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorage wraps the MinIO bucket holding narration and video media.
type ObjectStorage struct {
	client *minio.Client
	bucket string
}

func InitMinIO() *ObjectStorage {
	cfg := config.AppConfig.MinIO
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		logger.S().Fatalf("minio init failed: %v", err)
	}
	return &ObjectStorage{client: client, bucket: cfg.Bucket}
}

var _ ObjectRemover = (*ObjectStorage)(nil)

// Put streams an object into the bucket and returns a presigned URL.
func (o *ObjectStorage) Put(ctx context.Context, reader io.Reader, objectName string, size int64) (string, error) {
	exists, err := o.client.BucketExists(ctx, o.bucket)
	if err != nil {
		return "", fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := o.client.MakeBucket(ctx, o.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("create bucket: %w", err)
		}
	}

	contentType := "application/octet-stream"
	switch filepath.Ext(objectName) {
	case ".mp4":
		contentType = "video/mp4"
	case ".mp3":
		contentType = "audio/mpeg"
	case ".wav":
		contentType = "audio/wav"
	case ".json":
		contentType = "application/json"
	}

	_, err = o.client.PutObject(ctx, o.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	presigned, err := o.client.PresignedGetObject(ctx, o.bucket, objectName, 72*time.Hour, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	logger.S().Infof("[oss] stored %s", objectName)
	return presigned.String(), nil
}

// Remove deletes one object. Missing objects are skipped silently so the
// retention sweep can re-run over already-cleaned paths.
func (o *ObjectStorage) Remove(ctx context.Context, objectPath string) error {
	name := objectNameFromPath(objectPath, o.bucket)
	err := o.client.RemoveObject(ctx, o.bucket, name, minio.RemoveObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil
		}
		return fmt.Errorf("remove object %s: %w", name, err)
	}
	return nil
}

// objectNameFromPath accepts either a bare object name or a full URL
// produced by Put and strips it down to the bucket-relative name.
func objectNameFromPath(path, bucket string) string {
	if u, err := url.Parse(path); err == nil && u.Host != "" {
		p := strings.TrimPrefix(u.Path, "/")
		p = strings.TrimPrefix(p, bucket+"/")
		return p
	}
	return strings.TrimPrefix(path, "/")
}
