package feed

import (
	"sync"
	"sync/atomic"

	"anonchat/pkg/logger"
	"anonchat/pkg/models"
	"anonchat/pkg/telemetry"
)

// TopicDM is the broad feed for all direct messages. DM traffic is not
// scoped per conversation; subscribers filter by participant pair.
const TopicDM = "dm"

// TopicConv returns the feed topic for a group or channel conversation.
func TopicConv(convID string) string { return "conv:" + convID }

// Subscription is one attached feed consumer. Events are delivered on C;
// when the subscriber's buffer is full events are dropped for that
// subscriber only (it resyncs by re-opening the conversation).
type Subscription struct {
	topic  string
	ch     chan models.Event
	closed atomic.Bool
	b      *Broker
}

// C returns the receive channel. It is closed by Close.
func (s *Subscription) C() <-chan models.Event { return s.ch }

// Close detaches the subscription. Idempotent.
func (s *Subscription) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.b.unsubscribe(s)
}

// Broker is a per-process fan-out hub for row-level change events. One
// publish reaches every subscriber of the topic; delivery is best-effort
// and never blocks the publisher.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buf    int
	seq    uint64

	// mirror, when set, forwards local publishes to a remote bus (see
	// redis.go). Must not block.
	mirror func(topic string, ev models.Event)
}

// NewBroker creates a broker with the given per-subscriber buffer size.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 256
	}
	return &Broker{topics: map[string]map[*Subscription]struct{}{}, buf: buffer}
}

// Subscribe attaches a new subscriber to a topic.
func (b *Broker) Subscribe(topic string) *Subscription {
	s := &Subscription{topic: topic, ch: make(chan models.Event, b.buf), b: b}
	b.mu.Lock()
	subs := b.topics[topic]
	if subs == nil {
		subs = map[*Subscription]struct{}{}
		b.topics[topic] = subs
	}
	subs[s] = struct{}{}
	b.mu.Unlock()
	telemetry.FeedSubscribers.Inc()
	return s
}

func (b *Broker) unsubscribe(s *Subscription) {
	b.mu.Lock()
	if subs, ok := b.topics[s.topic]; ok {
		if _, ok := subs[s]; ok {
			delete(subs, s)
			close(s.ch)
			if len(subs) == 0 {
				delete(b.topics, s.topic)
			}
		}
	}
	b.mu.Unlock()
	telemetry.FeedSubscribers.Dec()
}

// Publish fans an event out to all subscribers of the topic and mirrors it
// to the remote bus when one is attached.
func (b *Broker) Publish(topic string, ev models.Event) {
	ev.Seq = atomic.AddUint64(&b.seq, 1)
	b.deliver(topic, ev)
	b.mu.RLock()
	mirror := b.mirror
	b.mu.RUnlock()
	if mirror != nil {
		mirror(topic, ev)
	}
	telemetry.FeedPublished.WithLabelValues(ev.Entity).Inc()
}

// deliver sends to local subscribers only (used by the redis bridge for
// inbound remote events so they are not mirrored back out).
func (b *Broker) deliver(topic string, ev models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.topics[topic] {
		select {
		case s.ch <- ev:
		default:
			telemetry.FeedDropped.Inc()
			logger.Warn("feed_subscriber_drop", "topic", topic, "entity", ev.Entity, "id", ev.ID)
		}
	}
}

// SetMirror installs the remote mirror hook.
func (b *Broker) SetMirror(f func(topic string, ev models.Event)) {
	b.mu.Lock()
	b.mirror = f
	b.mu.Unlock()
}

// Subscribers returns the current subscriber count for a topic. Diagnostics
// only.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
