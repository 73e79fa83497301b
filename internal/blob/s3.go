package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 stores blobs in one bucket of an S3-compatible service (AWS S3 or
// MinIO). Keys map to object keys directly.
type S3 struct {
	client *s3.Client
	bucket string
}

// S3Config holds explicit construction parameters. Credentials come
// from the default chain.
type S3Config struct {
	Bucket    string
	Region    string // default us-east-1
	Endpoint  string // optional; if set enables a custom endpoint (e.g. MinIO)
	PathStyle bool
}

// Environment variables:
//   PETREC_S3_REGION=<region> (default us-east-1)
//   PETREC_S3_ENDPOINT=<url> (optional, for MinIO)
//   PETREC_S3_PATH_STYLE=true|false (default false)
//   AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// s3ConfigFromEnv fills the optional settings from the process
// environment.
func s3ConfigFromEnv(bucket string) S3Config {
	return S3Config{
		Bucket:    bucket,
		Region:    os.Getenv("PETREC_S3_REGION"),
		Endpoint:  os.Getenv("PETREC_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("PETREC_S3_PATH_STYLE"), "true"),
	}
}

// NewS3 creates an S3 blob store.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3{client: client, bucket: cfg.Bucket}, nil
}

// Get downloads one object.
func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// Put uploads one object, replacing any previous version.
func (s *S3) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}
