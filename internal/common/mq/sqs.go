package mq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const attrTimestamp = "x-message-ts"

// SQSConfig defines configuration for the SQS driver.
type SQSConfig struct {
	Region            string `yaml:"region" toml:"region"`
	Endpoint          string `yaml:"endpoint" toml:"endpoint"`
	QueueURL          string `yaml:"queueURL" toml:"queueURL"`
	WaitTimeSeconds   int32  `yaml:"waitTimeSeconds" toml:"waitTimeSeconds"`
	VisibilityTimeout int32  `yaml:"visibilityTimeout" toml:"visibilityTimeout"`
	MaxAttempts       int    `yaml:"maxAttempts" toml:"maxAttempts"`
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SQSQueue consumes one SQS queue and publishes to any queue URL.
type SQSQueue struct {
	client  sqsAPI
	cfg     SQSConfig
	opts    ConsumeOptions
	limiter FetchLimiter

	wg sync.WaitGroup
}

// NewSQSQueue loads AWS credentials from the default chain.
func NewSQSQueue(ctx context.Context, cfg SQSConfig, opts ConsumeOptions, limiter FetchLimiter) (*SQSQueue, error) {
	if cfg.QueueURL == "" {
		return nil, errors.New("queue url is required")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 10
	}
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRetryer(func() aws.Retryer {
			return retry.AddWithMaxAttempts(retry.NewStandard(), cfg.MaxAttempts)
		}),
	}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newSQSQueue(client, cfg, opts, limiter), nil
}

func newSQSQueue(client sqsAPI, cfg SQSConfig, opts ConsumeOptions, limiter FetchLimiter) *SQSQueue {
	opts.SetDefaults()
	if cfg.WaitTimeSeconds == 0 {
		cfg.WaitTimeSeconds = 20
	}
	if limiter == nil {
		limiter = NewTokenLimiter(1)
	}
	return &SQSQueue{client: client, cfg: cfg, opts: opts, limiter: limiter}
}

// Publish sends a message; topic is a queue URL.
func (q *SQSQueue) Publish(ctx context.Context, topic string, message *Message) error {
	if message == nil {
		return errors.New("message is nil")
	}
	if topic == "" {
		topic = q.cfg.QueueURL
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	attrs := make(map[string]types.MessageAttributeValue, len(message.Headers)+1)
	for k, v := range message.Headers {
		attrs[k] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	attrs[attrTimestamp] = types.MessageAttributeValue{
		DataType:    aws.String("Number"),
		StringValue: aws.String(strconv.FormatInt(message.Timestamp.UnixMilli(), 10)),
	}
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(topic),
		MessageBody:       aws.String(string(message.Body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Consume long-polls the queue. A message is deleted after the handler succeeds or the
// message is dead-lettered; otherwise it reappears after the visibility timeout.
func (q *SQSQueue) Consume(ctx context.Context, handler HandlerFunc) error {
	if handler == nil {
		return errors.New("handler is required")
	}
	defer q.wg.Wait()

	for {
		if err := q.limiter.Acquire(ctx); err != nil {
			return nil
		}
		out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              aws.String(q.cfg.QueueURL),
			MaxNumberOfMessages:   1,
			WaitTimeSeconds:       q.cfg.WaitTimeSeconds,
			VisibilityTimeout:     q.cfg.VisibilityTimeout,
			MessageAttributeNames: []string{"All"},
		})
		if err != nil || len(out.Messages) == 0 {
			q.limiter.Release()
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(time.Second):
				}
			}
			continue
		}

		raw := out.Messages[0]
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			defer q.limiter.Release()
			if deliver(ctx, fromSQSMessage(raw), q.opts, handler, q) {
				_, _ = q.client.DeleteMessage(context.WithoutCancel(ctx), &sqs.DeleteMessageInput{
					QueueUrl:      aws.String(q.cfg.QueueURL),
					ReceiptHandle: raw.ReceiptHandle,
				})
			}
		}()
	}
}

// Ping reads the queue attributes.
func (q *SQSQueue) Ping(ctx context.Context) error {
	_, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.cfg.QueueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	return err
}

func (q *SQSQueue) Close() error {
	q.wg.Wait()
	return nil
}

func fromSQSMessage(raw types.Message) *Message {
	m := &Message{
		ID:      aws.ToString(raw.MessageId),
		Body:    []byte(aws.ToString(raw.Body)),
		Headers: make(map[string]string, len(raw.MessageAttributes)),
	}
	for k, v := range raw.MessageAttributes {
		value := aws.ToString(v.StringValue)
		if k == attrTimestamp {
			if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
				m.Timestamp = time.UnixMilli(ms)
			}
			continue
		}
		m.Headers[k] = value
	}
	return m
}
