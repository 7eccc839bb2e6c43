package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"anonchat/pkg/games"
	"anonchat/pkg/ingest"
	"anonchat/pkg/logger"
	"anonchat/pkg/models"
	"anonchat/pkg/store"
	"anonchat/pkg/utils"
)

// RegisterGames registers the game-session routes. Sessions live inside a
// conversation context and interleave with messages in client views.
func RegisterGames(r *mux.Router, q *ingest.Queue) {
	r.HandleFunc("/games", func(w http.ResponseWriter, req *http.Request) {
		createGame(w, req, q)
	}).Methods(http.MethodPost)
	r.HandleFunc("/games", listGames).Methods(http.MethodGet)
	r.HandleFunc("/games/{id}", getGame).Methods(http.MethodGet)
	r.HandleFunc("/games/{id}", func(w http.ResponseWriter, req *http.Request) {
		updateGame(w, req, q)
	}).Methods(http.MethodPut)
}

// createGame handles POST /games. The creator becomes player1; the session
// waits until someone joins unless player2 is named up front.
func createGame(w http.ResponseWriter, r *http.Request, q *ingest.Queue) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	var g models.GameSession
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if g.ContextType == "" || g.ContextID == "" {
		utils.JSONError(w, http.StatusBadRequest, "context_type and context_id are required")
		return
	}
	// DecodeState passes empty state through, so the type check is explicit
	if !models.ValidGameType(g.GameType) {
		utils.JSONError(w, http.StatusBadRequest, "unknown game type")
		return
	}
	if status, err := conversationAccess(g.ContextID, v); err != nil {
		utils.JSONError(w, status, err.Error())
		return
	}
	g.ID = uuid.NewString()
	g.Player1 = v.ID
	g.Winner = ""
	g.TS = time.Now().UTC().UnixNano()
	g.Status = models.GameWaiting
	if g.Player2 != "" {
		g.Status = models.GamePlaying
	}
	// reject malformed initial state up front
	if _, err := g.DecodeState(); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	payload, _ := json.Marshal(g)
	op := &ingest.Op{
		Type: ingest.OpCreate, Entity: models.EntityGame,
		Conversation: g.ContextID, ID: g.ID, Payload: payload, TS: g.TS, Actor: v.ID,
	}
	if err := q.TryEnqueue(op); err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "write queue full")
		return
	}
	logger.Info("game_created", "id", g.ID, "type", g.GameType, "context", g.ContextID)
	_ = utils.JSONWrite(w, http.StatusAccepted, g)
}

// listGames handles GET /games?context_type=<t>&context_id=<id>, the
// secondary historical fetch clients merge into the conversation view.
func listGames(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	ctxType := r.URL.Query().Get("context_type")
	ctxID := r.URL.Query().Get("context_id")
	if ctxType == "" || ctxID == "" {
		utils.JSONError(w, http.StatusBadRequest, "context_type and context_id are required")
		return
	}
	if status, err := conversationAccess(ctxID, v); err != nil {
		utils.JSONError(w, status, err.Error())
		return
	}
	out, err := store.ListGameSessions(ctxType, ctxID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if out == nil {
		out = []models.GameSession{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, out)
}

// getGame handles GET /games/{id}.
func getGame(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewer(w, r); !ok {
		return
	}
	id := mux.Vars(r)["id"]
	g, err := store.GetGameSession(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "game not found")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, g)
}

// updateGame handles PUT /games/{id}: joining a waiting session or
// submitting a move. Each move carries the full re-serialized state; the
// server validates it and decides whether the session just finished.
func updateGame(w http.ResponseWriter, r *http.Request, q *ingest.Queue) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	g, err := store.GetGameSession(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "game not found")
		return
	}
	if g.Status == models.GameFinished {
		utils.JSONError(w, http.StatusConflict, "game already finished")
		return
	}

	var in struct {
		State json.RawMessage `json:"state"`
		Join  bool            `json:"join"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	switch {
	case in.Join || (g.Status == models.GameWaiting && g.Player2 == "" && v.ID != g.Player1):
		if g.Player2 != "" && g.Player2 != v.ID {
			utils.JSONError(w, http.StatusConflict, "game already has two players")
			return
		}
		if v.ID == g.Player1 {
			utils.JSONError(w, http.StatusBadRequest, "cannot join own game")
			return
		}
		g.Player2 = v.ID
		g.Status = models.GamePlaying
	case v.ID != g.Player1 && v.ID != g.Player2:
		utils.JSONError(w, http.StatusForbidden, "not a player")
		return
	}

	if len(in.State) > 0 {
		g.State = in.State
		out, err := games.Inspect(&g)
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if out.Finished {
			g.Status = models.GameFinished
			g.Winner = out.Winner
		}
	}

	payload, _ := json.Marshal(g)
	op := &ingest.Op{
		Type: ingest.OpUpdate, Entity: models.EntityGame,
		Conversation: g.ContextID, ID: g.ID, Payload: payload,
		TS: time.Now().UTC().UnixNano(), Actor: v.ID,
	}
	if err := q.TryEnqueue(op); err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "write queue full")
		return
	}
	_ = utils.JSONWrite(w, http.StatusAccepted, g)
}
