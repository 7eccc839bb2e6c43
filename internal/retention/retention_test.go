package retention

import (
	"context"
	"testing"
	"time"

	"anonchat/pkg/config"
	"anonchat/pkg/models"
	"anonchat/pkg/store"
)

func openStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func TestStartDisabledIsNoop(t *testing.T) {
	cancel, err := Start(context.Background(), config.RetentionConfig{Enabled: false})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
}

func TestStartRejectsInvalidCron(t *testing.T) {
	_, err := Start(context.Background(), config.RetentionConfig{Enabled: true, Cron: "every tuesday"})
	if err == nil {
		t.Fatal("invalid cron accepted")
	}
}

func TestRunOncePurgesExpiredConversations(t *testing.T) {
	openStore(t)
	old := time.Now().UTC().Add(-48 * time.Hour).UnixNano()

	c := models.Conversation{ID: "dead", Kind: models.KindGroup, Author: "u1", Deleted: true, DeletedTS: old}
	if err := store.SaveConversation(c); err != nil {
		t.Fatalf("save conversation: %v", err)
	}
	m := models.Message{ID: "m1", Conversation: "dead", Author: "u1", Content: "bye", TS: old}
	if err := store.SaveMessage("dead", "m1", m); err != nil {
		t.Fatalf("save message: %v", err)
	}
	// a live conversation must survive the sweep
	if err := store.SaveConversation(models.Conversation{ID: "alive", Kind: models.KindGroup, Author: "u1"}); err != nil {
		t.Fatalf("save conversation: %v", err)
	}

	if err := RunOnce(config.RetentionConfig{Period: "24h"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, err := store.GetConversation("dead"); err == nil {
		t.Fatal("expired conversation not purged")
	}
	if _, err := store.GetLatestMessage("m1"); err == nil {
		t.Fatal("message versions not purged with their conversation")
	}
	if _, err := store.GetConversation("alive"); err != nil {
		t.Fatalf("live conversation purged: %v", err)
	}
}

func TestRunOnceSweepsOldTombstones(t *testing.T) {
	openStore(t)
	old := time.Now().UTC().Add(-48 * time.Hour).UnixNano()

	if err := store.SaveConversation(models.Conversation{ID: "c1", Kind: models.KindGroup, Author: "u1"}); err != nil {
		t.Fatalf("save conversation: %v", err)
	}
	if err := store.SaveMessage("c1", "m1", models.Message{ID: "m1", Conversation: "c1", Author: "u1", Content: "hi", TS: old}); err != nil {
		t.Fatalf("save message: %v", err)
	}
	if err := store.SaveMessage("c1", "m1", models.Message{ID: "m1", Conversation: "c1", Author: "u1", Deleted: true, TS: old}); err != nil {
		t.Fatalf("save tombstone: %v", err)
	}
	// a recent tombstone stays within the grace period
	if err := store.SaveMessage("c1", "m2", models.Message{ID: "m2", Conversation: "c1", Author: "u1", Deleted: true, TS: time.Now().UTC().UnixNano()}); err != nil {
		t.Fatalf("save tombstone: %v", err)
	}

	if err := RunOnce(config.RetentionConfig{Period: "24h"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, err := store.GetLatestMessage("m1"); err == nil {
		t.Fatal("old tombstone not swept")
	}
	if _, err := store.GetLatestMessage("m2"); err != nil {
		t.Fatalf("recent tombstone swept early: %v", err)
	}
	msgs, err := store.ListMessages("c1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, m := range msgs {
		if m.ID == "m1" {
			t.Fatal("stream copy of swept message survived")
		}
	}
}

func TestRunOnceDryRunDeletesNothing(t *testing.T) {
	openStore(t)
	old := time.Now().UTC().Add(-48 * time.Hour).UnixNano()

	if err := store.SaveConversation(models.Conversation{ID: "dead", Kind: models.KindGroup, Author: "u1", Deleted: true, DeletedTS: old}); err != nil {
		t.Fatalf("save conversation: %v", err)
	}
	if err := RunOnce(config.RetentionConfig{Period: "24h", DryRun: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := store.GetConversation("dead"); err != nil {
		t.Fatalf("dry run deleted keys: %v", err)
	}
}
