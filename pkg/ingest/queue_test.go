package ingest

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTryEnqueueRejectsWhenFull(t *testing.T) {
	q := NewQueue(2)
	op := &Op{Type: OpCreate, Entity: "message", ID: "m1", Payload: []byte(`{}`)}
	if err := q.TryEnqueue(op); err != nil {
		t.Fatalf("enqueue 1: %v", err)
	}
	if err := q.TryEnqueue(op); err != nil {
		t.Fatalf("enqueue 2: %v", err)
	}
	if err := q.TryEnqueue(op); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", q.Dropped())
	}
}

func TestEnqueueRespectsContext(t *testing.T) {
	q := NewQueue(1)
	op := &Op{Type: OpCreate, Entity: "message", ID: "m1"}
	if err := q.TryEnqueue(op); err != nil {
		t.Fatalf("fill: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, op); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestWorkerReceivesPayloadCopy(t *testing.T) {
	q := NewQueue(4)
	payload := []byte(`{"id":"m1"}`)
	op := &Op{Type: OpCreate, Entity: "message", ID: "m1", Payload: payload}
	if err := q.TryEnqueue(op); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// mutating the caller's slice must not affect the queued copy
	payload[2] = 'X'

	stop := make(chan struct{})
	var mu sync.Mutex
	var got string
	done := make(chan struct{})
	go q.RunWorker(stop, func(o *Op) error {
		mu.Lock()
		got = string(o.Payload)
		mu.Unlock()
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker never ran")
	}
	close(stop)

	mu.Lock()
	defer mu.Unlock()
	if got != `{"id":"m1"}` {
		t.Fatalf("payload not copied, got %q", got)
	}
}

func TestEnqueueAssignsMonotonicSeq(t *testing.T) {
	q := NewQueue(4)
	_ = q.TryEnqueue(&Op{Type: OpCreate, Entity: "message", ID: "a"})
	_ = q.TryEnqueue(&Op{Type: OpCreate, Entity: "message", ID: "b"})

	it1 := <-q.Out()
	it2 := <-q.Out()
	defer it1.Done()
	defer it2.Done()
	if it2.Op.EnqSeq <= it1.Op.EnqSeq {
		t.Fatalf("seq not monotonic: %d then %d", it1.Op.EnqSeq, it2.Op.EnqSeq)
	}
}

func TestCloseAndDrainReleasesItems(t *testing.T) {
	q := NewQueue(4)
	for i := 0; i < 3; i++ {
		_ = q.TryEnqueue(&Op{Type: OpCreate, Entity: "message", ID: "m", Payload: []byte(`{}`)})
	}
	q.CloseAndDrain()
	if q.Len() != 0 {
		t.Fatalf("queue not drained, len=%d", q.Len())
	}
}
