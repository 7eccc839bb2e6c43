package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"anonchat/pkg/logger"
	"anonchat/pkg/models"
	"anonchat/pkg/store"
	"anonchat/pkg/utils"
	"anonchat/pkg/validation"
)

// RegisterConversations registers conversation metadata routes and the
// history fetch that seeds every client view.
func RegisterConversations(r *mux.Router) {
	r.HandleFunc("/conversations", createConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", getConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", deleteConversation).Methods(http.MethodDelete)
	r.HandleFunc("/conversations/{id}/messages", listConversationMessages).Methods(http.MethodGet)
}

// createConversation handles POST /conversations for groups and channels.
// DM threads are never created explicitly; their row appears when the first
// message lands on the pair key.
func createConversation(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	var c models.Conversation
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	c.Author = v.ID
	if c.Kind == "" {
		c.Kind = models.KindGroup
	}
	if c.Kind == models.KindDM {
		utils.JSONError(w, http.StatusBadRequest, "dm threads are implicit; send a message to the pair key")
		return
	}
	if c.ID == "" {
		c.ID = utils.GenConvID()
	}
	if c.CreatedTS == 0 {
		c.CreatedTS = time.Now().UTC().UnixNano()
	}
	if c.UpdatedTS == 0 {
		c.UpdatedTS = c.CreatedTS
	}
	if c.Slug == "" {
		c.Slug = models.Slugify(c.Title, c.ID)
	}
	if c.Kind == models.KindGroup && !c.HasMember(v.ID) {
		c.Members = append(c.Members, v.ID)
	}
	sort.Strings(c.Members)
	if err := validation.ValidateConversation(c); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := store.SaveConversation(c); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("conversation_created", "id", c.ID, "kind", c.Kind, "author", v.ID)
	_ = utils.JSONWrite(w, http.StatusCreated, c)
}

// listConversations handles GET /conversations?kind=<kind>. Channels are
// world-visible; groups only show up for their members.
func listConversations(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	kind := r.URL.Query().Get("kind")
	convs, err := store.ListConversations(kind)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]models.Conversation, 0, len(convs))
	for _, c := range convs {
		if c.Deleted {
			continue
		}
		if c.Kind == models.KindGroup && !c.HasMember(v.ID) && c.Author != v.ID {
			continue
		}
		if c.Kind == models.KindDM {
			a, b := models.DMParticipants(c.ID)
			if v.ID != a && v.ID != b {
				continue
			}
		}
		out = append(out, c)
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Conversations []models.Conversation `json:"conversations"`
	}{Conversations: out})
}

// getConversation handles GET /conversations/{id}.
func getConversation(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if status, err := conversationAccess(id, v); err != nil {
		utils.JSONError(w, status, err.Error())
		return
	}
	c, err := store.GetConversation(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, c)
}

// deleteConversation handles DELETE /conversations/{id}. Soft delete; the
// retention sweeper purges rows later.
func deleteConversation(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	c, err := store.GetConversation(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if c.Author != v.ID {
		utils.JSONError(w, http.StatusForbidden, "author does not match")
		return
	}
	if err := store.SoftDeleteConversation(id, v.ID); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("conversation_deleted", "id", id, "actor", v.ID)
	w.WriteHeader(http.StatusNoContent)
}

// listConversationMessages handles GET /conversations/{id}/messages, the
// one-shot historical fetch. Returns the latest version of each message,
// oldest first, tombstones included so clients can reconcile against live
// deletes they already saw.
func listConversationMessages(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if status, err := conversationAccess(id, v); err != nil {
		utils.JSONError(w, status, err.Error())
		return
	}
	var limit []int
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = append(limit, n)
		}
	}
	msgs, err := store.ListMessages(id, limit...)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, msgs)
}
