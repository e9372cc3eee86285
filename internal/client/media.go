// Client for the external media asset host (any S3-compatible store,
// e.g. MinIO).
//
// Environment variables (see internal/config):
//   - MEDIA_S3_ENDPOINT: base endpoint override for self-hosted stores
//   - MEDIA_S3_REGION (default: us-east-1)
//   - MEDIA_S3_BUCKET
//   - MEDIA_S3_ACCESS_KEY / MEDIA_S3_SECRET_KEY
//   - MEDIA_PUBLIC_BASE_URL: public base for returned object URLs

package client

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	appconfig "github.com/vidtube/backend/internal/config"
)

type MediaClient struct {
	cfg appconfig.MediaConfig
}

func NewMediaClient(cfg appconfig.MediaConfig) *MediaClient {
	return &MediaClient{cfg: cfg}
}

func (c *MediaClient) IsConfigured() bool {
	return c.cfg.Bucket != "" && c.cfg.AccessKey != "" && c.cfg.SecretKey != ""
}

// Upload pushes a locally staged file to the asset host and returns its
// public URL. An empty path is the normal "no file" case, not a fault. On
// upload failure the staged file is removed so failed uploads never pile
// up in the temp dir.
func (c *MediaClient) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", nil
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open upload file: %w", err)
	}
	defer file.Close()

	s3Client, err := c.newS3Client(ctx)
	if err != nil {
		return "", err
	}

	key := storageKey(localPath)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.Bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		_ = os.Remove(localPath)
		return "", fmt.Errorf("failed to upload media: %w", err)
	}

	return c.objectURL(key), nil
}

func (c *MediaClient) newS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(c.cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.cfg.AccessKey,
			c.cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (c *MediaClient) objectURL(key string) string {
	base := strings.TrimSuffix(c.cfg.PublicBaseURL, "/")
	if base == "" {
		base = strings.TrimSuffix(c.cfg.Endpoint, "/") + "/" + c.cfg.Bucket
	}
	return base + "/" + key
}

// storageKey partitions objects by date and keeps the original extension.
func storageKey(localPath string) string {
	d := time.Now()
	return fmt.Sprintf("media/%d/%d/%d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), filepath.Ext(localPath))
}
