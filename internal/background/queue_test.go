package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueRunsTasks(t *testing.T) {
	q := NewQueue(2, 8)
	defer q.Stop()

	var ran atomic.Int32
	done := make(chan struct{})

	for i := 0; i < 5; i++ {
		ok := q.Enqueue("count", func(ctx context.Context) error {
			if ran.Add(1) == 5 {
				close(done)
			}
			return nil
		})
		if !ok {
			t.Fatalf("enqueue %d rejected", i)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("tasks did not run, got %d of 5", ran.Load())
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(1, 1)
	defer q.Stop()

	block := make(chan struct{})
	q.Enqueue("block", func(ctx context.Context) error {
		<-block
		return nil
	})

	// Give the worker a moment to pick up the blocking task, then fill the buffer.
	time.Sleep(50 * time.Millisecond)
	q.Enqueue("buffered", func(ctx context.Context) error { return nil })

	if q.Enqueue("overflow", func(ctx context.Context) error { return nil }) {
		t.Fatalf("expected overflow task to be dropped")
	}
	close(block)
}

func TestQueueSwallowsErrors(t *testing.T) {
	q := NewQueue(1, 4)
	defer q.Stop()

	done := make(chan struct{})
	q.Enqueue("fails", func(ctx context.Context) error {
		defer close(done)
		return errors.New("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("failing task never ran")
	}
}
