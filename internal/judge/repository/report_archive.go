package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"ojjudge/internal/common/storage"
	"ojjudge/internal/judge/model"
	appErr "ojjudge/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

const (
	defaultReportPrefix   = "reports"
	reportContentType     = "application/zstd"
	maxReportDecodedBytes = 32 << 20
)

// ReportArchive stores zstd-compressed JSON judge reports in object storage.
type ReportArchive struct {
	storage storage.ObjectStorage
	bucket  string
	prefix  string
}

// NewReportArchive creates an archive writing to bucket under prefix.
func NewReportArchive(store storage.ObjectStorage, bucket, prefix string) (*ReportArchive, error) {
	if store == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("report bucket is required")
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultReportPrefix
	}
	return &ReportArchive{storage: store, bucket: bucket, prefix: prefix}, nil
}

// ReportKey returns the object key of a submission's report.
func (a *ReportArchive) ReportKey(submissionID int64) string {
	return fmt.Sprintf("%s/%d.json.zst", a.prefix, submissionID)
}

// Save compresses and uploads report, replacing any earlier run's report.
func (a *ReportArchive) Save(ctx context.Context, report model.JudgeReport) error {
	if report.SubmissionID <= 0 {
		return appErr.ValidationError("submission_id", "required")
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report failed: %w", err)
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	defer encoder.Close()
	compressed := encoder.EncodeAll(data, make([]byte, 0, len(data)/2))

	key := a.ReportKey(report.SubmissionID)
	if err := a.storage.PutObject(ctx, a.bucket, key, bytes.NewReader(compressed), int64(len(compressed)), reportContentType); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "upload report %s", key)
	}
	return nil
}

// Load downloads and decodes a submission's report.
func (a *ReportArchive) Load(ctx context.Context, submissionID int64) (*model.JudgeReport, error) {
	key := a.ReportKey(submissionID)
	body, err := a.storage.GetObject(ctx, a.bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErr.New(appErr.NotFound).WithMessage("judge report not found")
		}
		return nil, appErr.Wrapf(err, appErr.StorageError, "download report %s", key)
	}
	defer body.Close()

	decoder, err := zstd.NewReader(body, zstd.WithDecoderMaxMemory(maxReportDecodedBytes))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()
	data, err := io.ReadAll(io.LimitReader(decoder, maxReportDecodedBytes))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "decompress report %s", key)
	}
	var report model.JudgeReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidFormat, "decode report %s", key)
	}
	return &report, nil
}
