package feed

import (
	"testing"
	"time"

	"anonchat/pkg/models"
)

func recvOne(t *testing.T, s *Subscription) models.Event {
	t.Helper()
	select {
	case ev := <-s.C():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return models.Event{}
	}
}

func TestPublishReachesTopicSubscribersOnly(t *testing.T) {
	b := NewBroker(8)
	s1 := b.Subscribe(TopicConv("c1"))
	defer s1.Close()
	s2 := b.Subscribe(TopicConv("c2"))
	defer s2.Close()

	b.Publish(TopicConv("c1"), models.Event{Type: models.EventInsert, Entity: models.EntityMessage, ID: "m1"})

	ev := recvOne(t, s1)
	if ev.ID != "m1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	select {
	case ev := <-s2.C():
		t.Fatalf("event leaked across topics: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublishAssignsMonotonicSeq(t *testing.T) {
	b := NewBroker(8)
	s := b.Subscribe(TopicDM)
	defer s.Close()

	b.Publish(TopicDM, models.Event{ID: "a"})
	b.Publish(TopicDM, models.Event{ID: "b"})

	e1 := recvOne(t, s)
	e2 := recvOne(t, s)
	if e2.Seq <= e1.Seq {
		t.Fatalf("seq not monotonic: %d then %d", e1.Seq, e2.Seq)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroker(1)
	s := b.Subscribe(TopicConv("c1"))
	defer s.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(TopicConv("c1"), models.Event{ID: "m"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestCloseIsIdempotentAndClosesChannel(t *testing.T) {
	b := NewBroker(8)
	s := b.Subscribe(TopicConv("c1"))
	s.Close()
	s.Close()

	if _, ok := <-s.C(); ok {
		t.Fatal("channel should be closed after Close")
	}
	if n := b.Subscribers(TopicConv("c1")); n != 0 {
		t.Fatalf("subscriber not detached, count=%d", n)
	}
}

func TestRedisMirrorHookNeverBlocks(t *testing.T) {
	// no connection, no send goroutine draining: the hook must still return
	// immediately once the outbound queue fills
	br := &RedisBridge{channel: "anonchat:feed", origin: "test", out: make(chan []byte, 1)}

	done := make(chan struct{})
	go func() {
		for i := 0; i < outboundDepth*2; i++ {
			br.publish(TopicConv("c1"), models.Event{ID: "m", Seq: uint64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mirror hook blocked on a full outbound queue")
	}
}

func TestMirrorSeesLocalPublishes(t *testing.T) {
	b := NewBroker(8)
	got := make(chan models.Event, 1)
	b.SetMirror(func(topic string, ev models.Event) {
		if topic == TopicConv("c1") {
			got <- ev
		}
	})
	b.Publish(TopicConv("c1"), models.Event{ID: "m1"})
	select {
	case ev := <-got:
		if ev.ID != "m1" {
			t.Fatalf("unexpected mirrored event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("mirror not invoked")
	}
}
