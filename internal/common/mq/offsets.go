package mq

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

// offsetTracker orders Kafka commits when several handlers run at once. A fetched offset
// is committed only after every earlier offset of the same partition has been handled and
// acknowledged, so a committed offset never skips an unfinished or failed message.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[partitionKey][]*pendingOffset
}

type partitionKey struct {
	topic     string
	partition int
}

type pendingOffset struct {
	msg     kafka.Message
	done    bool
	acked   bool
	dropped bool
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[partitionKey][]*pendingOffset)}
}

// track records a fetched message in fetch order. An offset at or below the newest tracked
// one means the reader rewound after a rebalance; the older entries are dropped because
// the broker hands them out again.
func (t *offsetTracker) track(m kafka.Message) *pendingOffset {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := partitionKey{topic: m.Topic, partition: m.Partition}
	q := t.partitions[key]
	if n := len(q); n > 0 && m.Offset <= q[n-1].msg.Offset {
		for _, p := range q {
			p.dropped = true
		}
		q = nil
	}
	p := &pendingOffset{msg: m}
	t.partitions[key] = append(q, p)
	return p
}

// complete records the outcome of p and commits the acknowledged prefix of its partition.
// An unacknowledged entry holds back every later offset until the partition is fetched
// again from the last commit. A failed commit keeps the prefix for the next completion.
func (t *offsetTracker) complete(ctx context.Context, p *pendingOffset, acked bool, commit func(context.Context, ...kafka.Message) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.dropped {
		return nil
	}
	p.done, p.acked = true, acked

	key := partitionKey{topic: p.msg.Topic, partition: p.msg.Partition}
	q := t.partitions[key]
	n := 0
	for n < len(q) && q[n].done && q[n].acked {
		n++
	}
	if n == 0 {
		return nil
	}
	ready := make([]kafka.Message, n)
	for i := range ready {
		ready[i] = q[i].msg
	}
	if err := commit(ctx, ready...); err != nil {
		return err
	}
	if n == len(q) {
		delete(t.partitions, key)
	} else {
		t.partitions[key] = q[n:]
	}
	return nil
}

// pending reports how many fetched offsets of a partition are not yet committed.
func (t *offsetTracker) pending(topic string, partition int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.partitions[partitionKey{topic: topic, partition: partition}])
}
