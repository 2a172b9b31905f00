package mq

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/segmentio/kafka-go"
)

type commitLog struct {
	err     error
	batches [][]int64
}

func (c *commitLog) commit(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	batch := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		batch = append(batch, m.Offset)
	}
	c.batches = append(c.batches, batch)
	return nil
}

func at(partition int, offset int64) kafka.Message {
	return kafka.Message{Topic: "submit", Partition: partition, Offset: offset}
}

func TestOffsetTrackerWaitsForEarlierOffsets(t *testing.T) {
	t.Parallel()
	tr := newOffsetTracker()
	log := &commitLog{}
	ctx := context.Background()
	first, second, third := tr.track(at(0, 5)), tr.track(at(0, 6)), tr.track(at(0, 7))

	if err := tr.complete(ctx, third, true, log.commit); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := tr.complete(ctx, second, true, log.commit); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(log.batches) != 0 {
		t.Fatalf("committed ahead of offset 5: %v", log.batches)
	}
	if err := tr.complete(ctx, first, true, log.commit); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !reflect.DeepEqual(log.batches, [][]int64{{5, 6, 7}}) {
		t.Fatalf("batches = %v", log.batches)
	}
	if n := tr.pending("submit", 0); n != 0 {
		t.Fatalf("pending = %d", n)
	}
}

func TestOffsetTrackerPartitionsAreIndependent(t *testing.T) {
	t.Parallel()
	tr := newOffsetTracker()
	log := &commitLog{}
	ctx := context.Background()
	tr.track(at(0, 1))
	other := tr.track(at(1, 1))

	if err := tr.complete(ctx, other, true, log.commit); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !reflect.DeepEqual(log.batches, [][]int64{{1}}) {
		t.Fatalf("batches = %v", log.batches)
	}
	if n := tr.pending("submit", 0); n != 1 {
		t.Fatalf("partition 0 pending = %d", n)
	}
}

func TestOffsetTrackerUnacknowledgedHoldsBackLaterOffsets(t *testing.T) {
	t.Parallel()
	tr := newOffsetTracker()
	log := &commitLog{}
	ctx := context.Background()
	failed, later := tr.track(at(0, 3)), tr.track(at(0, 4))

	if err := tr.complete(ctx, failed, false, log.commit); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := tr.complete(ctx, later, true, log.commit); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(log.batches) != 0 {
		t.Fatalf("offset committed past an unacknowledged message: %v", log.batches)
	}

	// The reader rewinds to the last commit and hands offset 3 out again.
	again := tr.track(at(0, 3))
	if n := tr.pending("submit", 0); n != 1 {
		t.Fatalf("rewind should drop stale entries, pending = %d", n)
	}
	if err := tr.complete(ctx, later, true, log.commit); err != nil {
		t.Fatalf("complete stale entry: %v", err)
	}
	if err := tr.complete(ctx, again, true, log.commit); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !reflect.DeepEqual(log.batches, [][]int64{{3}}) {
		t.Fatalf("batches = %v", log.batches)
	}
}

func TestOffsetTrackerRetriesFailedCommit(t *testing.T) {
	t.Parallel()
	tr := newOffsetTracker()
	log := &commitLog{err: errors.New("coordinator unavailable")}
	ctx := context.Background()
	first, second := tr.track(at(0, 1)), tr.track(at(0, 2))

	if err := tr.complete(ctx, first, true, log.commit); err == nil {
		t.Fatalf("expected commit error")
	}
	log.err = nil
	if err := tr.complete(ctx, second, true, log.commit); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !reflect.DeepEqual(log.batches, [][]int64{{1, 2}}) {
		t.Fatalf("batches = %v", log.batches)
	}
}
