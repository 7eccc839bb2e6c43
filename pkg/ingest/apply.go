package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"anonchat/pkg/feed"
	"anonchat/pkg/logger"
	"anonchat/pkg/models"
	"anonchat/pkg/store"
	"anonchat/pkg/telemetry"
)

// Applier consumes ops from the queue, persists them and publishes the
// resulting change event on the feed. Mutations are fire-and-forget for the
// client; the feed is where results become observable.
type Applier struct {
	Broker *feed.Broker
}

// Start launches n workers against q. The returned stop function waits for
// nothing; callers drain via Queue.CloseAndDrain on shutdown.
func (a *Applier) Start(q *Queue, n int) (stop func()) {
	if n <= 0 {
		n = 1
	}
	stopCh := make(chan struct{})
	for i := 0; i < n; i++ {
		go q.RunWorker(stopCh, a.Apply)
	}
	return func() { close(stopCh) }
}

// Apply handles one op. Errors are logged, not returned to the producer;
// the op was already accepted.
func (a *Applier) Apply(op *Op) error {
	var err error
	switch op.Entity {
	case models.EntityMessage:
		err = a.applyMessage(op)
	case models.EntityGame:
		err = a.applyGame(op)
	default:
		err = fmt.Errorf("unknown entity: %s", op.Entity)
	}
	if err != nil {
		logger.Error("ingest_apply_failed", "entity", op.Entity, "type", op.Type, "id", op.ID, "error", err)
		return err
	}
	telemetry.IngestApplied.WithLabelValues(string(op.Type)).Inc()
	return nil
}

func (a *Applier) applyMessage(op *Op) error {
	switch op.Type {
	case OpCreate, OpUpdate:
		var m models.Message
		if err := json.Unmarshal(op.Payload, &m); err != nil {
			return fmt.Errorf("invalid message payload: %w", err)
		}
		if err := store.SaveMessage(m.Conversation, m.ID, m); err != nil {
			return err
		}
		a.touchConversation(m.Conversation, m.TS)
		a.publishMessage(eventType(op.Type), m)
		return nil
	case OpDelete:
		m, err := store.GetLatestMessage(op.ID)
		if err != nil {
			return err
		}
		m.Deleted = true
		m.TS = time.Now().UTC().UnixNano()
		if err := store.SaveMessage(m.Conversation, m.ID, m); err != nil {
			return err
		}
		a.publishMessage(models.EventDelete, m)
		return nil
	}
	return fmt.Errorf("unknown op type: %s", op.Type)
}

func (a *Applier) applyGame(op *Op) error {
	var g models.GameSession
	if err := json.Unmarshal(op.Payload, &g); err != nil {
		return fmt.Errorf("invalid game payload: %w", err)
	}
	if err := store.SaveGameSession(g); err != nil {
		return err
	}
	b, _ := json.Marshal(g)
	a.Broker.Publish(gameTopic(g), models.Event{
		Type:         eventType(op.Type),
		Entity:       models.EntityGame,
		Conversation: g.ContextID,
		ID:           g.ID,
		Payload:      b,
		TS:           g.TS,
	})
	return nil
}

func (a *Applier) publishMessage(evType string, m models.Message) {
	b, _ := json.Marshal(m)
	topic := feed.TopicConv(m.Conversation)
	if m.Recipient != "" {
		// DM feed is broad; receivers filter by participant pair
		topic = feed.TopicDM
	}
	a.Broker.Publish(topic, models.Event{
		Type:         evType,
		Entity:       models.EntityMessage,
		Conversation: m.Conversation,
		ID:           m.ID,
		Payload:      b,
		TS:           m.TS,
	})
}

// touchConversation bumps UpdatedTS, creating minimal metadata on first
// write so DM conversations do not need explicit creation.
func (a *Applier) touchConversation(convID string, ts int64) {
	c, err := store.GetConversation(convID)
	if err != nil {
		c = models.Conversation{ID: convID, Kind: models.KindDM, CreatedTS: ts, UpdatedTS: ts}
		u1, u2 := models.DMParticipants(convID)
		if u2 != "" {
			c.Members = []string{u1, u2}
		}
		_ = store.SaveConversation(c)
		return
	}
	c.UpdatedTS = ts
	c.LastSeq++
	_ = store.SaveConversation(c)
}

func gameTopic(g models.GameSession) string {
	if g.ContextType == models.KindDM {
		return feed.TopicDM
	}
	return feed.TopicConv(g.ContextID)
}

func eventType(t OpType) string {
	switch t {
	case OpCreate:
		return models.EventInsert
	case OpUpdate:
		return models.EventUpdate
	case OpDelete:
		return models.EventDelete
	}
	return models.EventUpdate
}
