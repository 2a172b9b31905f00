package main

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"ojjudge/internal/common/mq"

	"github.com/stretchr/testify/require"
)

type stubConsumer struct {
	pingErr error
	pinged  bool
}

func (c *stubConsumer) Consume(context.Context, mq.HandlerFunc) error { return nil }

func (c *stubConsumer) Ping(ctx context.Context) error {
	c.pinged = true
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("ping without deadline")
	}
	return c.pingErr
}

func (c *stubConsumer) Close() error { return nil }

func TestPingQueue(t *testing.T) {
	ok := &stubConsumer{}
	require.NoError(t, pingQueue(context.Background(), ok))
	require.True(t, ok.pinged)

	down := &stubConsumer{pingErr: errors.New("connection refused")}
	err := pingQueue(context.Background(), down)
	require.Error(t, err)
	require.ErrorIs(t, err, down.pingErr)
}

func TestPingQueueUnreachableKafka(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	consumer, err := mq.NewKafkaConsumer(mq.KafkaConfig{
		Brokers:     []string{addr},
		Topics:      []mq.WeightedTopic{{Topic: "judge.submissions", Weight: 1}},
		DialTimeout: time.Second,
	}, mq.ConsumeOptions{}, nil, nil)
	require.NoError(t, err)
	defer func() {
		_ = consumer.Close()
	}()

	require.Error(t, pingQueue(context.Background(), consumer))
}
