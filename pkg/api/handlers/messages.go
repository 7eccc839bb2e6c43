package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"anonchat/pkg/ingest"
	"anonchat/pkg/logger"
	"anonchat/pkg/models"
	"anonchat/pkg/store"
	"anonchat/pkg/utils"
	"anonchat/pkg/validation"
)

// RegisterMessages registers the message mutation and lookup routes.
// Mutations are accepted into the ingest queue and applied asynchronously;
// clients observe the result on the live feed.
func RegisterMessages(r *mux.Router, q *ingest.Queue) {
	r.HandleFunc("/conversations/{id}/messages", func(w http.ResponseWriter, req *http.Request) {
		createMessage(w, req, q)
	}).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}", getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}/versions", listMessageVersions).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", func(w http.ResponseWriter, req *http.Request) {
		updateMessage(w, req, q)
	}).Methods(http.MethodPut)
	r.HandleFunc("/messages/{id}", func(w http.ResponseWriter, req *http.Request) {
		deleteMessage(w, req, q)
	}).Methods(http.MethodDelete)
}

// createMessage handles POST /conversations/{id}/messages. The server
// assigns id and timestamp; the author always comes from the token.
func createMessage(w http.ResponseWriter, r *http.Request, q *ingest.Queue) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	convID := mux.Vars(r)["id"]
	if status, err := conversationAccess(convID, v); err != nil {
		utils.JSONError(w, status, err.Error())
		return
	}
	var m models.Message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m.Conversation = convID
	m.Author = v.ID
	m.ID = utils.GenID()
	m.TS = time.Now().UTC().UnixNano()
	m.Edited = false
	m.Deleted = false
	if isDMKey(convID) {
		a, b := models.DMParticipants(convID)
		m.Recipient = a
		if v.ID == a {
			m.Recipient = b
		}
	} else {
		m.Recipient = ""
	}
	if err := validation.ValidateMessage(m); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if m.ReplyTo != "" {
		// the referent must at least exist now; it may still be purged later
		if _, err := store.GetLatestMessage(m.ReplyTo); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "reply_to message not found")
			return
		}
	}
	payload, _ := json.Marshal(m)
	op := &ingest.Op{
		Type: ingest.OpCreate, Entity: models.EntityMessage,
		Conversation: convID, ID: m.ID, Payload: payload, TS: m.TS, Actor: v.ID,
	}
	if err := q.TryEnqueue(op); err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "write queue full")
		return
	}
	logger.Debug("message_enqueued", "conversation", convID, "id", m.ID)
	_ = utils.JSONWrite(w, http.StatusAccepted, m)
}

// getMessage handles GET /messages/{id}, the reply-resolution point
// lookup. Tombstones are returned as-is; the client decides how to render
// a reply to a deleted message.
func getMessage(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewer(w, r); !ok {
		return
	}
	id := mux.Vars(r)["id"]
	m, err := store.GetLatestMessage(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

// listMessageVersions handles GET /messages/{id}/versions. Every edit and
// the delete tombstone are kept as appended versions.
func listMessageVersions(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewer(w, r); !ok {
		return
	}
	id := mux.Vars(r)["id"]
	vs, err := store.ListMessageVersions(id)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(vs) == 0 {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		ID       string           `json:"id"`
		Versions []models.Message `json:"versions"`
	}{ID: id, Versions: vs})
}

// updateMessage handles PUT /messages/{id}. Only the author may edit, only
// the content changes, and the creation timestamp is preserved so the edit
// replaces the message in place instead of reordering it.
func updateMessage(w http.ResponseWriter, r *http.Request, q *ingest.Queue) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	cur, err := store.GetLatestMessage(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	if cur.Author != v.ID {
		utils.JSONError(w, http.StatusForbidden, "author does not match")
		return
	}
	if cur.Deleted {
		utils.JSONError(w, http.StatusGone, "message deleted")
		return
	}
	var in struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	cur.Content = in.Content
	cur.Edited = true
	if err := validation.ValidateMessage(cur); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	payload, _ := json.Marshal(cur)
	op := &ingest.Op{
		Type: ingest.OpUpdate, Entity: models.EntityMessage,
		Conversation: cur.Conversation, ID: id, Payload: payload,
		TS: time.Now().UTC().UnixNano(), Actor: v.ID,
	}
	if err := q.TryEnqueue(op); err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "write queue full")
		return
	}
	_ = utils.JSONWrite(w, http.StatusAccepted, cur)
}

// deleteMessage handles DELETE /messages/{id}. Soft delete: a tombstone
// version is appended and a delete event published.
func deleteMessage(w http.ResponseWriter, r *http.Request, q *ingest.Queue) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	cur, err := store.GetLatestMessage(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	if cur.Author != v.ID {
		utils.JSONError(w, http.StatusForbidden, "author does not match")
		return
	}
	op := &ingest.Op{
		Type: ingest.OpDelete, Entity: models.EntityMessage,
		Conversation: cur.Conversation, ID: id,
		TS: time.Now().UTC().UnixNano(), Actor: v.ID,
	}
	if err := q.TryEnqueue(op); err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "write queue full")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
