package mq

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	headerID         = "x-message-id"
	headerTimestamp  = "x-message-ts"
	headerRetryCount = "x-message-retry"
	headerMaxRetries = "x-message-max-retries"
	headerExpiration = "x-message-expiration-ms"
)

// KafkaConfig defines configuration for the Kafka driver.
type KafkaConfig struct {
	Brokers  []string        `yaml:"brokers" toml:"brokers"`
	ClientID string          `yaml:"clientID" toml:"clientID"`
	GroupID  string          `yaml:"groupID" toml:"groupID"`
	Topics   []WeightedTopic `yaml:"topics" toml:"topics"`

	BatchTimeout time.Duration `yaml:"batchTimeout" toml:"batchTimeout"`
	MinBytes     int           `yaml:"minBytes" toml:"minBytes"`
	MaxBytes     int           `yaml:"maxBytes" toml:"maxBytes"`
	MaxWait      time.Duration `yaml:"maxWait" toml:"maxWait"`
	DialTimeout  time.Duration `yaml:"dialTimeout" toml:"dialTimeout"`
}

// WeightedTopic defines a topic with fetch weight.
type WeightedTopic struct {
	Topic  string `yaml:"topic" toml:"topic"`
	Weight int    `yaml:"weight" toml:"weight"`
}

func (cfg *KafkaConfig) applyDefaults() {
	if cfg.GroupID == "" {
		cfg.GroupID = "ojjudge-judge"
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
}

// KafkaPublisher writes messages with kafka-go.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for any topic on the cluster.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers are required")
	}
	cfg.applyDefaults()
	dialer := &kafka.Dialer{ClientID: cfg.ClientID, Timeout: cfg.DialTimeout, DualStack: true}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: cfg.BatchTimeout,
		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, address)
			},
			ClientID: cfg.ClientID,
		},
	}
	return &KafkaPublisher{writer: writer}, nil
}

// Publish publishes a message to a topic.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, message *Message) error {
	if message == nil {
		return errors.New("message is nil")
	}
	if topic == "" {
		return errors.New("topic is required")
	}
	return p.writer.WriteMessages(ctx, toKafkaMessage(topic, message))
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads several topics with a weighted round-robin schedule.
type KafkaConsumer struct {
	brokers  []string
	dialer   *kafka.Dialer
	readers  []kafkaReader
	offsets  []*offsetTracker
	schedule []int
	opts     ConsumeOptions
	limiter  FetchLimiter
	dlq      Publisher

	wg sync.WaitGroup
}

// NewKafkaConsumer creates one group reader per weighted topic.
func NewKafkaConsumer(cfg KafkaConfig, opts ConsumeOptions, limiter FetchLimiter, dlq Publisher) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers are required")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("topics are required")
	}
	for _, t := range cfg.Topics {
		if t.Topic == "" {
			return nil, errors.New("topic is required")
		}
		if t.Weight <= 0 {
			return nil, errors.New("topic weight must be positive")
		}
	}
	cfg.applyDefaults()

	readers := make([]kafkaReader, 0, len(cfg.Topics))
	for _, t := range cfg.Topics {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       t.Topic,
			GroupID:     cfg.GroupID,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: kafka.FirstOffset,
		}))
	}
	c := newKafkaConsumer(readers, buildWeightedSchedule(cfg.Topics), opts, limiter, dlq)
	c.brokers = cfg.Brokers
	c.dialer = &kafka.Dialer{ClientID: cfg.ClientID, Timeout: cfg.DialTimeout, DualStack: true}
	return c, nil
}

func newKafkaConsumer(readers []kafkaReader, schedule []int, opts ConsumeOptions, limiter FetchLimiter, dlq Publisher) *KafkaConsumer {
	opts.SetDefaults()
	if limiter == nil {
		limiter = NewTokenLimiter(1)
	}
	offsets := make([]*offsetTracker, len(readers))
	for i := range offsets {
		offsets[i] = newOffsetTracker()
	}
	return &KafkaConsumer{readers: readers, offsets: offsets, schedule: schedule, opts: opts, limiter: limiter, dlq: dlq}
}

// Consume fetches according to the weighted schedule and handles each message in its own
// goroutine, bounded by the limiter. Offsets are committed per partition in fetch order.
// It returns after ctx is canceled and in-flight handlers finish.
func (k *KafkaConsumer) Consume(ctx context.Context, handler HandlerFunc) error {
	if handler == nil {
		return errors.New("handler is required")
	}
	if len(k.schedule) == 0 {
		return errors.New("no weighted topics provided")
	}
	defer k.wg.Wait()

	idx := 0
	for {
		if err := k.limiter.Acquire(ctx); err != nil {
			return nil
		}
		slot := k.schedule[idx%len(k.schedule)]
		reader, offsets := k.readers[slot], k.offsets[slot]
		idx++

		fetchCtx, cancel := context.WithTimeout(ctx, time.Second)
		msg, err := reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			k.limiter.Release()
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(100 * time.Millisecond):
				}
			}
			continue
		}

		pending := offsets.track(msg)
		k.wg.Add(1)
		go func(m kafka.Message, r kafkaReader) {
			defer k.wg.Done()
			defer k.limiter.Release()
			acked := deliver(ctx, fromKafkaMessage(m), k.opts, handler, k.dlq)
			_ = offsets.complete(context.WithoutCancel(ctx), pending, acked, r.CommitMessages)
		}(msg, reader)
	}
}

// Ping dials the first broker.
func (k *KafkaConsumer) Ping(ctx context.Context) error {
	if k.dialer == nil || len(k.brokers) == 0 {
		return nil
	}
	conn, err := k.dialer.DialContext(ctx, "tcp", k.brokers[0])
	if err != nil {
		return err
	}
	return conn.Close()
}

func (k *KafkaConsumer) Close() error {
	k.wg.Wait()
	var errs []error
	for _, r := range k.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildWeightedSchedule(topics []WeightedTopic) []int {
	schedule := make([]int, 0, len(topics))
	for idx, t := range topics {
		for i := 0; i < t.Weight; i++ {
			schedule = append(schedule, idx)
		}
	}
	return schedule
}

func toKafkaMessage(topic string, message *Message) kafka.Message {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	headers := make([]kafka.Header, 0, len(message.Headers)+5)
	for k, v := range message.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if message.ID != "" {
		headers = append(headers, kafka.Header{Key: headerID, Value: []byte(message.ID)})
	}
	headers = append(headers, kafka.Header{Key: headerTimestamp, Value: []byte(message.Timestamp.Format(time.RFC3339Nano))})
	if message.RetryCount != 0 {
		headers = append(headers, kafka.Header{Key: headerRetryCount, Value: []byte(strconv.Itoa(message.RetryCount))})
	}
	if message.MaxRetries != 0 {
		headers = append(headers, kafka.Header{Key: headerMaxRetries, Value: []byte(strconv.Itoa(message.MaxRetries))})
	}
	if message.Expiration > 0 {
		headers = append(headers, kafka.Header{Key: headerExpiration, Value: []byte(strconv.FormatInt(message.Expiration.Milliseconds(), 10))})
	}

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(message.ID),
		Value:   message.Body,
		Headers: headers,
		Time:    message.Timestamp,
	}
}

func fromKafkaMessage(msg kafka.Message) *Message {
	m := &Message{
		Body:      msg.Value,
		Headers:   make(map[string]string),
		Timestamp: msg.Time,
	}
	for _, h := range msg.Headers {
		switch h.Key {
		case headerID:
			m.ID = string(h.Value)
		case headerTimestamp:
			if ts, err := time.Parse(time.RFC3339Nano, string(h.Value)); err == nil {
				m.Timestamp = ts
			}
		case headerRetryCount:
			if v, err := strconv.Atoi(string(h.Value)); err == nil && v >= 0 {
				m.RetryCount = v
			}
		case headerMaxRetries:
			if v, err := strconv.Atoi(string(h.Value)); err == nil && v >= 0 {
				m.MaxRetries = v
			}
		case headerExpiration:
			if v, err := strconv.ParseInt(string(h.Value), 10, 64); err == nil && v > 0 {
				m.Expiration = time.Duration(v) * time.Millisecond
			}
		default:
			m.Headers[h.Key] = string(h.Value)
		}
	}
	if m.ID == "" {
		m.ID = string(msg.Key)
	}
	return m
}
