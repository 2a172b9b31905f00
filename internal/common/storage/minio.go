package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" toml:"endpoint"`
	AccessKey string `yaml:"accessKey" toml:"accessKey"`
	SecretKey string `yaml:"secretKey" toml:"secretKey"`
	Region    string `yaml:"region" toml:"region"`
	UseSSL    bool   `yaml:"useSSL" toml:"useSSL"`
}

func (c MinIOConfig) validate() error {
	switch {
	case c.Endpoint == "":
		return errors.New("minio endpoint is required")
	case c.AccessKey == "" || c.SecretKey == "":
		return errors.New("minio credentials are required")
	}
	return nil
}

// MinIOStorage stores report archives in a MinIO deployment.
type MinIOStorage struct {
	client *minio.Client
}

// NewMinIOStorage creates a client with static credentials.
func NewMinIOStorage(cfg MinIOConfig) (*MinIOStorage, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOStorage{client: client}, nil
}

func (s *MinIOStorage) PutObject(ctx context.Context, bucket, objectKey string, body io.Reader, sizeBytes int64, contentType string) error {
	if body == nil || objectKey == "" {
		return errors.New("object key and body are required")
	}
	_, err := s.client.PutObject(ctx, bucket, objectKey, body, sizeBytes, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("minio put %s/%s: %w", bucket, objectKey, err)
	}
	return nil
}

// GetObject stats the object first so a missing key surfaces here and not on the first Read.
func (s *MinIOStorage) GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, minioError(err, bucket, objectKey)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, minioError(err, bucket, objectKey)
	}
	return obj, nil
}

func minioError(err error, bucket, objectKey string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectNotFound
	}
	return fmt.Errorf("minio get %s/%s: %w", bucket, objectKey, err)
}
