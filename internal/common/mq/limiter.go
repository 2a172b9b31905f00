package mq

import "context"

// TokenLimiter bounds how many messages are judged at once. Consumers take a slot
// before fetching, so a busy worker stops pulling from the broker.
type TokenLimiter struct {
	slots chan struct{}
}

// NewTokenLimiter creates a limiter with size slots; size below 1 means 1.
func NewTokenLimiter(size int) *TokenLimiter {
	return &TokenLimiter{slots: make(chan struct{}, max(size, 1))}
}

// Acquire takes a slot, waiting until one frees up or ctx is done.
func (l *TokenLimiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot. Extra releases are ignored.
func (l *TokenLimiter) Release() {
	select {
	case <-l.slots:
	default:
	}
}

// Available reports the number of free slots.
func (l *TokenLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}
