package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingPublisher struct {
	mu       sync.Mutex
	err      error
	topics   []string
	messages []*Message
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, m *Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, m)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestDeliverRetriesThenDeadLetters(t *testing.T) {
	t.Parallel()
	dlq := &recordingPublisher{}
	opts := ConsumeOptions{MaxRetries: 2, RetryDelay: time.Millisecond, DeadLetterTopic: "judge.dlq"}
	calls := 0
	handler := func(context.Context, *Message) error {
		calls++
		return errors.New("db unavailable")
	}

	acked := deliver(context.Background(), NewMessage([]byte(`{"submission_id":1}`)), opts, handler, dlq)
	if !acked {
		t.Fatalf("dead-lettered message should be acknowledged")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(dlq.topics) != 1 || dlq.topics[0] != "judge.dlq" {
		t.Fatalf("unexpected dlq publishes: %v", dlq.topics)
	}
	if dlq.messages[0].RetryCount != 3 {
		t.Fatalf("unexpected retry count %d", dlq.messages[0].RetryCount)
	}
}

func TestDeliverKeepsMessageWithoutDeadLetterTopic(t *testing.T) {
	t.Parallel()
	calls := 0
	handler := func(context.Context, *Message) error {
		calls++
		return errors.New("db unavailable")
	}
	opts := ConsumeOptions{MaxRetries: 2, RetryDelay: time.Millisecond}

	if deliver(context.Background(), NewMessage(nil), opts, handler, nil) {
		t.Fatalf("exhausted message without a dead-letter topic must stay unacknowledged")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}

	calls = 0
	if deliver(context.Background(), NewMessage(nil), opts, handler, &recordingPublisher{}) {
		t.Fatalf("publisher without a topic must not acknowledge")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDeliverKeepsMessageWhenDeadLetterFails(t *testing.T) {
	t.Parallel()
	dlq := &recordingPublisher{err: errors.New("broker down")}
	opts := ConsumeOptions{MaxRetries: 1, RetryDelay: time.Millisecond, DeadLetterTopic: "judge.dlq"}
	acked := deliver(context.Background(), NewMessage(nil), opts, func(context.Context, *Message) error {
		return errors.New("db unavailable")
	}, dlq)
	if acked {
		t.Fatalf("failed dead-letter publish must not acknowledge")
	}
}

func TestDeliverSucceedsAfterRetry(t *testing.T) {
	t.Parallel()
	calls := 0
	handler := func(context.Context, *Message) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}
	opts := ConsumeOptions{MaxRetries: 3, RetryDelay: time.Millisecond}
	if !deliver(context.Background(), NewMessage(nil), opts, handler, nil) {
		t.Fatalf("expected ack")
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestDeliverDropsExpiredMessage(t *testing.T) {
	t.Parallel()
	m := NewMessage(nil)
	m.Timestamp = time.Now().Add(-time.Hour)
	opts := ConsumeOptions{MaxRetries: 1, RetryDelay: time.Millisecond, MessageTTL: time.Minute}
	called := false
	acked := deliver(context.Background(), m, opts, func(context.Context, *Message) error {
		called = true
		return nil
	}, nil)
	if !acked || called {
		t.Fatalf("expired message should be acked without handling: acked=%v called=%v", acked, called)
	}
}

func TestDeliverLeavesMessageOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	opts := ConsumeOptions{MaxRetries: 5, RetryDelay: time.Hour}
	acked := deliver(ctx, NewMessage(nil), opts, func(context.Context, *Message) error {
		cancel()
		return errors.New("interrupted")
	}, nil)
	if acked {
		t.Fatalf("canceled delivery must not be acknowledged")
	}
}

func TestTokenLimiter(t *testing.T) {
	t.Parallel()
	l := NewTokenLimiter(2)
	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if l.Available() != 0 {
		t.Fatalf("expected no tokens left")
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := l.Acquire(timeoutCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	l.Release()
	l.Release()
	l.Release()
	if l.Available() != 2 {
		t.Fatalf("release must not exceed capacity, got %d", l.Available())
	}
}
