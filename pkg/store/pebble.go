package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"anonchat/pkg/logger"
	"anonchat/pkg/models"
)

var db *pebble.DB
var dbPath string

// seq reduces key collisions when multiple writes share the same
// nanosecond timestamp.
var seq uint64

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func notOpen() error { return fmt.Errorf("pebble not opened; call store.Open first") }

// versionKey builds a sortable key suffix from a timestamp plus counter.
func versionKey(ts int64) string {
	s := atomic.AddUint64(&seq, 1)
	return fmt.Sprintf("%020d-%06d", ts, s)
}

// SaveMessage appends a message version to its conversation stream and
// indexes it by message ID so edits and deletes are stored as appended
// versions, never destructive overwrites.
func SaveMessage(convID, msgID string, m models.Message) error {
	if db == nil {
		return notOpen()
	}
	if msgID == "" {
		msgID = m.ID
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	vk := versionKey(time.Now().UTC().UnixNano())
	key := fmt.Sprintf("conv:%s:msg:%s", convID, vk)
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("save_message_failed", "conversation", convID, "key", key, "error", err)
		return err
	}
	if msgID != "" {
		idxKey := fmt.Sprintf("version:msg:%s:%s", msgID, vk)
		if err := db.Set([]byte(idxKey), data, pebble.Sync); err != nil {
			logger.Error("save_message_index_failed", "key", idxKey, "error", err)
			return err
		}
	}
	logger.Debug("message_saved", "conversation", convID, "id", msgID)
	return nil
}

// ListMessages returns the latest version of every message in a
// conversation, ordered by first insertion (creation order). Tombstone
// versions are returned as-is; the view layer decides what a delete means.
func ListMessages(convID string, limit ...int) ([]models.Message, error) {
	if db == nil {
		return nil, notOpen()
	}
	prefix := []byte("conv:" + convID + ":msg:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	max := -1
	if len(limit) > 0 {
		max = limit[0]
	}
	// versions appear in write order; keep creation order but let later
	// versions replace earlier ones in place
	var order []string
	latest := map[string]models.Message{}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("skip_invalid_message_row", "key", string(iter.Key()), "error", err)
			continue
		}
		if _, ok := latest[m.ID]; !ok {
			order = append(order, m.ID)
		}
		latest[m.ID] = m
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

// ListMessageVersions returns all stored versions for a given message ID in
// chronological order.
func ListMessageVersions(msgID string) ([]models.Message, error) {
	if db == nil {
		return nil, notOpen()
	}
	prefix := []byte("version:msg:" + msgID + ":")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("invalid stored message version: %w", err)
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// GetLatestMessage returns the latest version for a message ID or an error
// if none found.
func GetLatestMessage(msgID string) (models.Message, error) {
	vers, err := ListMessageVersions(msgID)
	if err != nil {
		return models.Message{}, err
	}
	if len(vers) == 0 {
		return models.Message{}, fmt.Errorf("message not found: %s", msgID)
	}
	return vers[len(vers)-1], nil
}

// SaveConversation stores conversation metadata under a reserved key.
func SaveConversation(c models.Conversation) error {
	if db == nil {
		return notOpen()
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	key := []byte("conv:" + c.ID + ":meta")
	if err := db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("save_conversation_failed", "conversation", c.ID, "error", err)
		return err
	}
	logger.Debug("conversation_saved", "conversation", c.ID, "kind", c.Kind)
	return nil
}

// GetConversation returns the stored conversation metadata.
func GetConversation(convID string) (models.Conversation, error) {
	var c models.Conversation
	if db == nil {
		return c, notOpen()
	}
	key := []byte("conv:" + convID + ":meta")
	v, closer, err := db.Get(key)
	if err != nil {
		return c, err
	}
	if closer != nil {
		defer closer.Close()
	}
	if err := json.Unmarshal(v, &c); err != nil {
		return c, fmt.Errorf("invalid stored conversation: %w", err)
	}
	return c, nil
}

// ListConversations returns all saved conversations, optionally filtered by
// kind ("" means all).
func ListConversations(kind string) ([]models.Conversation, error) {
	if db == nil {
		return nil, notOpen()
	}
	prefix := []byte("conv:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Conversation
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.HasSuffix(iter.Key(), []byte(":meta")) {
			continue
		}
		var c models.Conversation
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			continue
		}
		if kind != "" && c.Kind != kind {
			continue
		}
		out = append(out, c)
	}
	return out, iter.Error()
}

// SoftDeleteConversation marks the conversation deleted and appends a
// tombstone message so subscribed clients observe the deletion.
func SoftDeleteConversation(convID, actor string) error {
	c, err := GetConversation(convID)
	if err != nil {
		return err
	}
	now := time.Now().UTC().UnixNano()
	c.Deleted = true
	c.DeletedTS = now
	if err := SaveConversation(c); err != nil {
		return err
	}
	tomb := models.Message{
		ID:           fmt.Sprintf("msg-%d-%d", now, atomic.AddUint64(&seq, 1)),
		Conversation: convID,
		Author:       actor,
		TS:           now,
		Deleted:      true,
	}
	if err := SaveMessage(convID, tomb.ID, tomb); err != nil {
		logger.Error("soft_delete_append_tombstone_failed", "conversation", convID, "error", err)
		return err
	}
	logger.Info("conversation_soft_deleted", "conversation", convID, "actor", actor)
	return nil
}

// SaveGameSession upserts a game session. Sessions carry their full state on
// every write, so the latest row is the whole truth.
func SaveGameSession(g models.GameSession) error {
	if db == nil {
		return notOpen()
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal game session: %w", err)
	}
	key := []byte(fmt.Sprintf("game:%s:%s:%s", g.ContextType, g.ContextID, g.ID))
	if err := db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("save_game_failed", "game", g.ID, "error", err)
		return err
	}
	// index by id for point lookups
	idx := []byte("gameid:" + g.ID)
	if err := db.Set(idx, data, pebble.Sync); err != nil {
		logger.Error("save_game_index_failed", "game", g.ID, "error", err)
		return err
	}
	logger.Debug("game_saved", "game", g.ID, "status", g.Status)
	return nil
}

// GetGameSession returns a game session by id.
func GetGameSession(id string) (models.GameSession, error) {
	var g models.GameSession
	if db == nil {
		return g, notOpen()
	}
	v, closer, err := db.Get([]byte("gameid:" + id))
	if err != nil {
		return g, err
	}
	if closer != nil {
		defer closer.Close()
	}
	if err := json.Unmarshal(v, &g); err != nil {
		return g, fmt.Errorf("invalid stored game session: %w", err)
	}
	return g, nil
}

// ListGameSessions returns all sessions for a context, ordered by id.
func ListGameSessions(contextType, contextID string) ([]models.GameSession, error) {
	if db == nil {
		return nil, notOpen()
	}
	prefix := []byte(fmt.Sprintf("game:%s:%s:", contextType, contextID))
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.GameSession
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var g models.GameSession
		if err := json.Unmarshal(iter.Value(), &g); err != nil {
			continue
		}
		out = append(out, g)
	}
	return out, iter.Error()
}

// SaveUser stores a user under its username plus an id -> username index.
func SaveUser(u models.User) error {
	if db == nil {
		return notOpen()
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := db.Set([]byte("user:name:"+u.Username), data, pebble.Sync); err != nil {
		logger.Error("save_user_failed", "username", u.Username, "error", err)
		return err
	}
	if err := db.Set([]byte("user:id:"+u.ID), []byte(u.Username), pebble.Sync); err != nil {
		logger.Error("save_user_index_failed", "id", u.ID, "error", err)
		return err
	}
	return nil
}

// GetUserByName returns a user by username.
func GetUserByName(username string) (models.User, error) {
	var u models.User
	if db == nil {
		return u, notOpen()
	}
	v, closer, err := db.Get([]byte("user:name:" + username))
	if err != nil {
		return u, err
	}
	if closer != nil {
		defer closer.Close()
	}
	if err := json.Unmarshal(v, &u); err != nil {
		return u, fmt.Errorf("invalid stored user: %w", err)
	}
	return u, nil
}

// GetUsernameByID resolves a user id to its display name. Used by reply
// reference resolution.
func GetUsernameByID(id string) (string, error) {
	if db == nil {
		return "", notOpen()
	}
	v, closer, err := db.Get([]byte("user:id:" + id))
	if err != nil {
		return "", err
	}
	if closer != nil {
		defer closer.Close()
	}
	return string(v), nil
}

// ListKeys returns all keys (as strings) that start with the given prefix.
// If prefix is empty it returns all keys in the DB.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, notOpen()
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	pfx := []byte(prefix)
	if prefix == "" {
		for iter.First(); iter.Valid(); iter.Next() {
			out = append(out, string(append([]byte(nil), iter.Key()...)))
		}
		return out, iter.Error()
	}
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(append([]byte(nil), iter.Key()...)))
	}
	return out, iter.Error()
}

// GetKey returns the raw value for the given key.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", notOpen()
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return "", err
	}
	if closer != nil {
		defer closer.Close()
	}
	return string(v), nil
}

// DBSet writes a raw key (bytes) into the DB. Low-level helper used by
// admin utilities and tests.
func DBSet(key, value []byte) error {
	if db == nil {
		return notOpen()
	}
	return db.Set(key, value, pebble.Sync)
}

// DBDelete removes a raw key. Used by the retention sweeper.
func DBDelete(key []byte) error {
	if db == nil {
		return notOpen()
	}
	return db.Delete(key, pebble.Sync)
}

// DBIter returns a raw Pebble iterator for low-level operations. Caller must
// close the iterator when done.
func DBIter() (*pebble.Iterator, error) {
	if db == nil {
		return nil, notOpen()
	}
	return db.NewIter(&pebble.IterOptions{})
}
