package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ojjudge/internal/common/cache"
	"ojjudge/internal/judge/model"
	appErr "ojjudge/pkg/errors"
)

const (
	statusKeyPrefix      = "judge:status:"
	defaultStatusTTL     = 30 * time.Minute
	defaultStatusMissTTL = time.Minute
)

// StatusRepository caches judge status views in redis.
type StatusRepository struct {
	cache   cache.Cache
	TTL     time.Duration
	MissTTL time.Duration
}

// NewStatusRepository creates a status repository; zero TTLs use the defaults.
func NewStatusRepository(cacheClient cache.Cache, ttl, missTTL time.Duration) *StatusRepository {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	if missTTL <= 0 {
		missTTL = defaultStatusMissTTL
	}
	return &StatusRepository{cache: cacheClient, TTL: ttl, MissTTL: missTTL}
}

// StatusKey returns the cache key of a submission's status.
func StatusKey(submissionID int64) string {
	return statusKeyPrefix + strconv.FormatInt(submissionID, 10)
}

// Get returns the cached status of a submission.
func (r *StatusRepository) Get(ctx context.Context, submissionID int64) (model.JudgeStatus, error) {
	if submissionID <= 0 {
		return model.JudgeStatus{}, appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return model.JudgeStatus{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, StatusKey(submissionID))
	if err != nil || val == "" || val == cache.NullCacheValue {
		return model.JudgeStatus{}, appErr.New(appErr.NotFound).WithMessage("submission status not found")
	}
	return unmarshalStatus(val)
}

// GetOrLoad serves the cached status, falling back to load on a miss. A load result
// with zero SubmissionID is cached as absent and reported as SubmissionNotFound.
func (r *StatusRepository) GetOrLoad(ctx context.Context, submissionID int64, load func(context.Context) (model.JudgeStatus, error)) (model.JudgeStatus, error) {
	if submissionID <= 0 {
		return model.JudgeStatus{}, appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return load(ctx)
	}
	status, err := cache.GetWithCached(ctx, r.cache, StatusKey(submissionID),
		cache.Expiry{Hit: r.TTL, Miss: r.MissTTL}, statusCodec, load)
	if err != nil {
		return model.JudgeStatus{}, err
	}
	if status.SubmissionID == 0 {
		return model.JudgeStatus{}, appErr.Newf(appErr.SubmissionNotFound, "submission %d not found", submissionID)
	}
	return status, nil
}

// Save stores a status view.
func (r *StatusRepository) Save(ctx context.Context, status model.JudgeStatus) error {
	if status.SubmissionID <= 0 {
		return appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := marshalStatus(status)
	if err != nil {
		return err
	}
	ttl := r.TTL
	if !status.Status.IsTerminal() {
		// in-flight entries expire quickly if the worker dies
		ttl = r.MissTTL * 10
	}
	if err := r.cache.Set(ctx, StatusKey(status.SubmissionID), data, cache.JitterTTL(ttl)); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store status failed")
	}
	return nil
}

func marshalStatus(status model.JudgeStatus) (string, error) {
	data, err := json.Marshal(status)
	if err != nil {
		return "", fmt.Errorf("marshal status failed: %w", err)
	}
	return string(data), nil
}

func unmarshalStatus(val string) (model.JudgeStatus, error) {
	var status model.JudgeStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return model.JudgeStatus{}, appErr.Wrapf(err, appErr.CacheError, "decode status failed")
	}
	return status, nil
}

var statusCodec = cache.Codec[model.JudgeStatus]{
	Encode: marshalStatus,
	Decode: unmarshalStatus,
	Absent: func(s model.JudgeStatus) bool { return s.SubmissionID == 0 },
}
