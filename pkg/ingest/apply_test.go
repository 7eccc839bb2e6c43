package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"anonchat/pkg/feed"
	"anonchat/pkg/models"
	"anonchat/pkg/store"
)

func setup(t *testing.T) (*Applier, *feed.Broker) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	b := feed.NewBroker(16)
	return &Applier{Broker: b}, b
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestApplyCreatePersistsAndPublishes(t *testing.T) {
	a, b := setup(t)
	_ = store.SaveConversation(models.Conversation{ID: "c1", Kind: models.KindGroup, Author: "u1"})
	sub := b.Subscribe(feed.TopicConv("c1"))
	defer sub.Close()

	m := models.Message{ID: "m1", Conversation: "c1", Author: "u1", Content: "hi", TS: 100}
	op := &Op{Type: OpCreate, Entity: models.EntityMessage, Conversation: "c1", ID: "m1", Payload: mustJSON(t, m)}
	if err := a.Apply(op); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := store.GetLatestMessage("m1")
	if err != nil || got.Content != "hi" {
		t.Fatalf("not persisted: %v %+v", err, got)
	}
	select {
	case ev := <-sub.C():
		if ev.Type != models.EventInsert || ev.ID != "m1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no feed event")
	}
}

func TestApplyDeleteAppendsTombstoneAndPublishes(t *testing.T) {
	a, b := setup(t)
	_ = store.SaveConversation(models.Conversation{ID: "c1", Kind: models.KindGroup, Author: "u1"})
	m := models.Message{ID: "m1", Conversation: "c1", Author: "u1", Content: "hi", TS: 100}
	if err := a.Apply(&Op{Type: OpCreate, Entity: models.EntityMessage, Conversation: "c1", ID: "m1", Payload: mustJSON(t, m)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	sub := b.Subscribe(feed.TopicConv("c1"))
	defer sub.Close()

	if err := a.Apply(&Op{Type: OpDelete, Entity: models.EntityMessage, Conversation: "c1", ID: "m1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := store.GetLatestMessage("m1")
	if !got.Deleted {
		t.Fatalf("tombstone not appended: %+v", got)
	}
	select {
	case ev := <-sub.C():
		if ev.Type != models.EventDelete || ev.ID != "m1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no delete event")
	}
}

func TestApplyDeleteUnknownMessageErrors(t *testing.T) {
	a, _ := setup(t)
	err := a.Apply(&Op{Type: OpDelete, Entity: models.EntityMessage, ID: "ghost"})
	if err == nil {
		t.Fatal("expected error for unknown message")
	}
}

func TestDMCreateLandsOnBroadTopicAndCreatesConversation(t *testing.T) {
	a, b := setup(t)
	sub := b.Subscribe(feed.TopicDM)
	defer sub.Close()

	key := models.DMKey("alice", "bob")
	m := models.Message{ID: "m1", Conversation: key, Author: "alice", Recipient: "bob", Content: "psst", TS: 100}
	if err := a.Apply(&Op{Type: OpCreate, Entity: models.EntityMessage, Conversation: key, ID: "m1", Payload: mustJSON(t, m)}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	select {
	case ev := <-sub.C():
		if ev.Conversation != key {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no dm event")
	}
	// the conversation row is created implicitly on first message
	c, err := store.GetConversation(key)
	if err != nil || c.Kind != models.KindDM || len(c.Members) != 2 {
		t.Fatalf("implicit dm conversation wrong: %v %+v", err, c)
	}
}

func TestApplyGamePublishesToContextTopic(t *testing.T) {
	a, b := setup(t)
	sub := b.Subscribe(feed.TopicConv("c1"))
	defer sub.Close()

	g := models.GameSession{
		ID: "g1", GameType: models.GameTicTacToe, Player1: "u1",
		Status: models.GameWaiting, TS: 100,
		ContextType: models.KindGroup, ContextID: "c1",
	}
	if err := a.Apply(&Op{Type: OpCreate, Entity: models.EntityGame, Conversation: "c1", ID: "g1", Payload: mustJSON(t, g)}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	select {
	case ev := <-sub.C():
		if ev.Entity != models.EntityGame || ev.ID != "g1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no game event")
	}
	if _, err := store.GetGameSession("g1"); err != nil {
		t.Fatalf("game not persisted: %v", err)
	}
}
