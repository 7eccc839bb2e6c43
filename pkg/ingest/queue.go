package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"

	"anonchat/pkg/telemetry"
)

// OpType represents an operation kind for the ingest pipeline.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// Op is a lightweight in-memory representation of a create/update/delete
// operation destined for the persistence pipeline. Payload may be backed by
// a pooled ByteBuffer; consumers must call Item.Done() when finished.
type Op struct {
	Type OpType
	// Entity is models.EntityMessage or models.EntityGame.
	Entity       string
	Conversation string
	ID           string
	// Payload holds the raw row bytes for the operation (may be nil for
	// deletes).
	Payload []byte
	// TS is an optional client/server timestamp (nanoseconds).
	TS int64
	// Actor is the authenticated user performing the op.
	Actor string
	// EnqSeq is a monotonic enqueue sequence assigned when the op is
	// accepted into the in-memory queue.
	EnqSeq uint64
}

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("ingest queue full")

// Item wraps an Op and owns a pooled ByteBuffer if one was used. Consumers
// MUST call Done() exactly once after processing the item to return
// pooled resources.
type Item struct {
	Op *Op

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

// maxPooledBuffer controls the largest buffer size that will be returned
// to the pool. Larger buffers are dropped so resident memory stays bounded.
var maxPooledBuffer = 256 * 1024

var opPool = sync.Pool{New: func() any { return &Op{} }}

// Done releases internal pooled resources (buffer + op) back to the pool.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			if cap(it.buf.B) > maxPooledBuffer {
				it.buf = nil
			} else {
				bytebufferpool.Put(it.buf)
				it.buf = nil
			}
		}
		if it.Op != nil {
			it.Op.Payload = nil
			opPool.Put(it.Op)
			it.Op = nil
		}
	})
}

// Queue is a bounded in-memory queue used by the API layer to enqueue
// create/update/delete operations. Safe for concurrent producers; consumers
// range over Out() or use RunWorker.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
}

var enqSeq uint64

// NewQueue creates a new bounded Queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// Out returns a read-only channel that consumers can range over to receive
// queued items. Do not close it from callers.
func (q *Queue) Out() <-chan *Item { return q.ch }

func (q *Queue) newItem(op *Op) *Item {
	newOp := opPool.Get().(*Op)
	*newOp = *op
	newOp.EnqSeq = atomic.AddUint64(&enqSeq, 1)

	var bb *bytebufferpool.ByteBuffer
	if len(op.Payload) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], op.Payload...)
		newOp.Payload = bb.B[:len(op.Payload)]
	}
	return &Item{Op: newOp, buf: bb}
}

func (q *Queue) reject(it *Item) {
	it.Done()
	atomic.AddUint64(&q.dropped, 1)
	telemetry.IngestRejected.Inc()
}

// TryEnqueue attempts to enqueue an Op by copying its payload into a pooled
// buffer. If the queue is full ErrQueueFull is returned and the caller may
// choose to reject the request.
func (q *Queue) TryEnqueue(op *Op) error {
	it := q.newItem(op)
	select {
	case q.ch <- it:
		telemetry.IngestDepth.Set(float64(len(q.ch)))
		return nil
	default:
		q.reject(it)
		return ErrQueueFull
	}
}

// Enqueue blocks until space is available or the context is done.
func (q *Queue) Enqueue(ctx context.Context, op *Op) error {
	it := q.newItem(op)
	select {
	case q.ch <- it:
		telemetry.IngestDepth.Set(float64(len(q.ch)))
		return nil
	case <-ctx.Done():
		q.reject(it)
		return ctx.Err()
	}
}

// CloseAndDrain closes the queue channel and drains remaining items,
// ensuring their resources are released.
func (q *Queue) CloseAndDrain() {
	close(q.ch)
	for it := range q.ch {
		it.Done()
	}
}

// RunWorker runs a worker loop that invokes handler for each dequeued Op.
// It guarantees Item.Done() is called even if handler returns an error.
// The worker exits when stop is closed or when the queue is closed.
func (q *Queue) RunWorker(stop <-chan struct{}, handler func(*Op) error) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				_ = handler(it.Op)
			}(it)
			telemetry.IngestDepth.Set(float64(len(q.ch)))
		case <-stop:
			return
		}
	}
}

// Len returns the current number of items in the queue.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity of the queue.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns the number of operations rejected due to a full queue or
// context cancellation during enqueue.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
