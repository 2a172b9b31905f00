package mq

import (
	"context"
	"time"
)

// deliver runs handler with retries and reports whether the message may be acknowledged.
// Expired messages are acknowledged without running the handler. After the last retry the
// message is acknowledged only once it has been published to the dead-letter topic; with no
// dead-letter topic, or when that publish fails, it stays unacknowledged so the broker
// redelivers it. Cancellation also leaves the message unacknowledged.
func deliver(ctx context.Context, m *Message, opts ConsumeOptions, handler HandlerFunc, dlq Publisher) bool {
	if m.MaxRetries == 0 {
		m.MaxRetries = opts.MaxRetries
	}
	if m.Expiration == 0 && opts.MessageTTL > 0 {
		m.Expiration = opts.MessageTTL
	}
	if m.Expiration > 0 && !m.Timestamp.IsZero() && time.Since(m.Timestamp) > m.Expiration {
		return true
	}

	for {
		if err := handler(ctx, m); err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		m.RetryCount++
		if m.RetryCount > m.MaxRetries {
			if dlq == nil || opts.DeadLetterTopic == "" {
				return false
			}
			return dlq.Publish(ctx, opts.DeadLetterTopic, m) == nil
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(opts.RetryDelay):
		}
	}
}
