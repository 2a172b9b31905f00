package mq

import (
	"context"
	"time"
)

// Publisher sends messages to a topic (Kafka topic or SQS queue URL).
type Publisher interface {
	Publish(ctx context.Context, topic string, message *Message) error
	Close() error
}

// Consumer delivers messages to a handler until ctx is canceled.
// A message is acknowledged once the handler succeeds or has been dead-lettered.
type Consumer interface {
	Consume(ctx context.Context, handler HandlerFunc) error
	Ping(ctx context.Context) error
	Close() error
}

// FetchLimiter bounds the number of in-flight messages.
type FetchLimiter interface {
	Acquire(ctx context.Context) error
	Release()
}

// Message represents a message in the queue
type Message struct {
	ID        string            `json:"id"`
	Body      []byte            `json:"body"`
	Headers   map[string]string `json:"headers"`
	Timestamp time.Time         `json:"timestamp"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// Expiration drops the message unprocessed once it is older than this.
	Expiration time.Duration `json:"expiration"`
}

// HandlerFunc processes one message; a non-nil error triggers a retry.
type HandlerFunc func(ctx context.Context, message *Message) error

// ConsumeOptions controls retry and dead-letter behavior shared by every driver.
type ConsumeOptions struct {
	MaxRetries      int           `yaml:"maxRetries" toml:"maxRetries"`
	RetryDelay      time.Duration `yaml:"retryDelay" toml:"retryDelay"`
	DeadLetterTopic string        `yaml:"deadLetterTopic" toml:"deadLetterTopic"`
	MessageTTL      time.Duration `yaml:"messageTTL" toml:"messageTTL"`
}

// SetDefaults sets default values for consume options
func (o *ConsumeOptions) SetDefaults() {
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = time.Second
	}
}

// NewMessage creates a new message with the given body
func NewMessage(body []byte) *Message {
	return &Message{
		Body:      body,
		Headers:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// SetHeader sets a header value
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// GetHeader retrieves a header value
func (m *Message) GetHeader(key string) (string, bool) {
	if m.Headers == nil {
		return "", false
	}
	val, ok := m.Headers[key]
	return val, ok
}
