package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrUploadFailed is an exported constant or variable used by the media client.
var ErrUploadFailed = errors.New("media upload failed")

// ErrDeleteFailed is an exported constant or variable used by the media client.
var ErrDeleteFailed = errors.New("media delete failed")

// Config holds the S3-compatible media host settings. BaseEndpoint and
// static credentials allow MinIO and other S3-compatible hosts.
type Config struct {
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	PublicURL    string
}

// Client uploads blog images to an S3-compatible bucket and deletes them
// when the owning blog is removed.
type Client struct {
	s3     *s3.Client
	bucket string
	public string
}

// NewClient creates a media [Client]. Static credentials are used when
// provided; otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("media bucket required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	public := strings.TrimRight(cfg.PublicURL, "/")
	if public == "" {
		public = strings.TrimRight(cfg.BaseEndpoint, "/") + "/" + cfg.Bucket
	}

	return &Client{
		s3:     client,
		bucket: cfg.Bucket,
		public: public,
	}, nil
}

// Upload stores a blob under a generated date-partitioned key and returns
// the public URL plus the key needed for deletion.
func (c *Client) Upload(ctx context.Context, data []byte, contentType, filename string) (url, key string, err error) {
	key = objectKey(filename)

	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return c.public + "/" + key, key, nil
}

// Delete removes an object by key. Deleting a missing object succeeds.
func (c *Client) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

func objectKey(filename string) string {
	ext := path.Ext(filename)
	now := time.Now().UTC()
	return fmt.Sprintf("blogs/%d/%02d/%s%s", now.Year(), now.Month(), uuid.NewString(), ext)
}
