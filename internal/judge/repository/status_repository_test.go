package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"ojjudge/internal/common/cache"
	"ojjudge/internal/common/mq"
	"ojjudge/internal/judge/model"
	appErr "ojjudge/pkg/errors"
	"ojjudge/pkg/utils/contextkey"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newStatusRepo(t *testing.T) (*StatusRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return NewStatusRepository(c, time.Minute, 10*time.Second), mr
}

func TestStatusSaveAndGet(t *testing.T) {
	repo, mr := newStatusRepo(t)
	ctx := context.Background()
	status := model.JudgeStatus{SubmissionID: 8, Status: model.StatusAccepted, Result: "所有测试用例通过", ExecutionTime: 0.2, UpdatedAt: 100}
	require.NoError(t, repo.Save(ctx, status))
	require.True(t, mr.Exists("judge:status:8"))
	require.LessOrEqual(t, mr.TTL("judge:status:8"), time.Minute)

	got, err := repo.Get(ctx, 8)
	require.NoError(t, err)
	require.Equal(t, status, got)

	_, err = repo.Get(ctx, 9)
	require.True(t, appErr.Is(err, appErr.NotFound))
}

func TestStatusGetOrLoad(t *testing.T) {
	repo, mr := newStatusRepo(t)
	ctx := context.Background()
	loads := 0
	load := func(context.Context) (model.JudgeStatus, error) {
		loads++
		return model.JudgeStatus{SubmissionID: 4, Status: model.StatusJudging}, nil
	}
	for i := 0; i < 2; i++ {
		got, err := repo.GetOrLoad(ctx, 4, load)
		require.NoError(t, err)
		require.Equal(t, model.StatusJudging, got.Status)
	}
	require.Equal(t, 1, loads)

	missing := func(context.Context) (model.JudgeStatus, error) { return model.JudgeStatus{}, nil }
	_, err := repo.GetOrLoad(ctx, 5, missing)
	require.True(t, appErr.Is(err, appErr.SubmissionNotFound))
	val, _ := mr.Get("judge:status:5")
	require.Equal(t, cache.NullCacheValue, val)

	failing := func(context.Context) (model.JudgeStatus, error) { return model.JudgeStatus{}, errors.New("db down") }
	_, err = repo.GetOrLoad(ctx, 6, failing)
	require.EqualError(t, err, "db down")
}

func TestStatusValidation(t *testing.T) {
	repo, _ := newStatusRepo(t)
	require.True(t, appErr.Is(repo.Save(context.Background(), model.JudgeStatus{}), appErr.ValidationFailed))
	_, err := NewStatusRepository(nil, 0, 0).Get(context.Background(), 1)
	require.True(t, appErr.Is(err, appErr.CacheError))
}

type recordingPublisher struct {
	topic    string
	messages []*mq.Message
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, m *mq.Message) error {
	p.topic = topic
	p.messages = append(p.messages, m)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestPublishFinalStatus(t *testing.T) {
	pub := &recordingPublisher{}
	events := NewMQStatusEventPublisher(pub, "judge.status")
	ctx := context.WithValue(context.Background(), contextkey.TraceID, "trace-7")
	err := events.PublishFinalStatus(ctx, model.StatusEvent{SubmissionID: 3, UserID: 11, Status: model.StatusWrongAnswer})
	require.NoError(t, err)
	require.Equal(t, "judge.status", pub.topic)
	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	require.Equal(t, "3", msg.ID)
	for header, want := range map[string]string{HeaderStatus: "wrong_answer", HeaderUserID: "11", HeaderTraceID: "trace-7"} {
		got, ok := msg.GetHeader(header)
		require.True(t, ok, header)
		require.Equal(t, want, got, header)
	}
	require.JSONEq(t, `{"submission_id":3,"user_id":11,"problem_id":0,"status":"wrong_answer","execution_time":0,"is_overdue":false,"finished_at":0}`, string(msg.Body))
}

func TestPublishFinalStatusErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	ctx := context.Background()
	events := NewMQStatusEventPublisher(pub, "judge.status")

	err := events.PublishFinalStatus(ctx, model.StatusEvent{SubmissionID: 3, Status: model.StatusAccepted})
	require.True(t, appErr.Is(err, appErr.QueueError))

	err = events.PublishFinalStatus(ctx, model.StatusEvent{SubmissionID: 3, Status: model.StatusJudging})
	require.True(t, appErr.Is(err, appErr.ValidationFailed))

	err = NewMQStatusEventPublisher(pub, "").PublishFinalStatus(ctx, model.StatusEvent{SubmissionID: 1, Status: model.StatusAccepted})
	require.True(t, appErr.Is(err, appErr.InvalidParams))
	require.Len(t, pub.messages, 1)
}
