// Package storage copies finished WAV files to S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

const wavContentType = "audio/wav"

var ErrNoBucket = errors.New("s3 bucket is empty")

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Storage handles S3 uploads for generated audio files.
type Storage struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3Storage builds a Storage from the default AWS credential chain.
// The region comes from AWS_REGION or the shared config file.
func NewS3Storage(ctx context.Context, bucket, prefix string) (*Storage, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)
	return NewStorage(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewStorage wraps an existing client.
func NewStorage(client putObjectAPI, bucket, prefix string) *Storage {
	return &Storage{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a local file.
func (s *Storage) Key(localPath string) string {
	name := filepath.Base(localPath)
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Upload puts the file at localPath under the configured prefix and returns
// its s3:// location.
func (s *Storage) Upload(ctx context.Context, localPath string) (string, error) {
	key := s.Key(localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat wav: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentType:   aws.String(wavContentType),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
