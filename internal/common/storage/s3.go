package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds settings for AWS S3 or an S3-compatible endpoint.
type S3Config struct {
	Region       string `yaml:"region" toml:"region"`
	Endpoint     string `yaml:"endpoint" toml:"endpoint"`
	UsePathStyle bool   `yaml:"usePathStyle" toml:"usePathStyle"`
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Storage implements ObjectStorage with aws-sdk-go-v2.
type S3Storage struct {
	client s3API
}

// NewS3Storage loads credentials from the default AWS chain.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Storage{client: client}, nil
}

func (s *S3Storage) PutObject(ctx context.Context, bucket, objectKey string, body io.Reader, sizeBytes int64, contentType string) error {
	if body == nil {
		return fmt.Errorf("body is required")
	}
	if objectKey == "" {
		return fmt.Errorf("objectKey is required")
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
		Body:   body,
	}
	if sizeBytes >= 0 {
		input.ContentLength = aws.Int64(sizeBytes)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put object failed: %w", err)
	}
	return nil
}

func (s *S3Storage) GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var respErr *awshttp.ResponseError
		if errors.As(err, &noSuchKey) || (errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("s3 get object failed: %w", err)
	}
	return out.Body, nil
}
