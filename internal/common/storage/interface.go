package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by GetObject when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the object store used for judge report archives.
// MinIO and AWS S3 implementations are interchangeable.
type ObjectStorage interface {
	PutObject(ctx context.Context, bucket, objectKey string, body io.Reader, sizeBytes int64, contentType string) error
	// GetObject opens a reader for an object; the caller closes it.
	GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error)
}
