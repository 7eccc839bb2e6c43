package models

import (
	"encoding/json"
	"fmt"
)

// Game session status values.
const (
	GameWaiting  = "waiting"
	GamePlaying  = "playing"
	GameFinished = "finished"
)

// Supported game types. State decoding is exhaustive over these.
const (
	GameTicTacToe   = "tictactoe"
	GameRPS         = "rps"
	GameMemoryMatch = "memory"
)

// ValidGameType reports whether t is one of the supported game types.
func ValidGameType(t string) bool {
	switch t {
	case GameTicTacToe, GameRPS, GameMemoryMatch:
		return true
	}
	return false
}

type GameSession struct {
	ID       string `json:"id"`
	GameType string `json:"game_type"`
	Player1  string `json:"player1"`
	Player2  string `json:"player2,omitempty"`
	// State is the full serialized game state; each move re-serializes it.
	// Use DecodeState for a typed view.
	State json.RawMessage `json:"state,omitempty"`
	// Winner is set when Status is finished; empty means draw.
	Winner string `json:"winner,omitempty"`
	Status string `json:"status"`
	// TS is the creation timestamp (ns); kept stable across updates so the
	// session holds its position in the view ordering.
	TS int64 `json:"ts"`
	// ContextType/ContextID scope the session to a conversation ("group",
	// "channel") or to a DM pair key ("dm").
	ContextType string `json:"context_type"`
	ContextID   string `json:"context_id"`
}

// TicTacToeState is a 3x3 board; cells hold "", "X" or "O".
type TicTacToeState struct {
	Board [9]string `json:"board"`
	Turn  string    `json:"turn"`
}

// RPSState holds one choice per player round ("rock"|"paper"|"scissors").
type RPSState struct {
	Choice1 string `json:"choice1,omitempty"`
	Choice2 string `json:"choice2,omitempty"`
	Round   int    `json:"round"`
	Score1  int    `json:"score1"`
	Score2  int    `json:"score2"`
}

// MemoryMatchState is the card layout plus per-player match counts.
type MemoryMatchState struct {
	Cards   []string `json:"cards"`
	Flipped []int    `json:"flipped,omitempty"`
	Matched []bool   `json:"matched"`
	Turn    string   `json:"turn"`
	Score1  int      `json:"score1"`
	Score2  int      `json:"score2"`
}

// DecodeState decodes the opaque state blob into the concrete type for the
// session's game type. Unknown game types are an error, not an any-typed
// passthrough.
func (g *GameSession) DecodeState() (interface{}, error) {
	if len(g.State) == 0 {
		return nil, nil
	}
	switch g.GameType {
	case GameTicTacToe:
		var s TicTacToeState
		if err := json.Unmarshal(g.State, &s); err != nil {
			return nil, fmt.Errorf("invalid tictactoe state: %w", err)
		}
		return &s, nil
	case GameRPS:
		var s RPSState
		if err := json.Unmarshal(g.State, &s); err != nil {
			return nil, fmt.Errorf("invalid rps state: %w", err)
		}
		return &s, nil
	case GameMemoryMatch:
		var s MemoryMatchState
		if err := json.Unmarshal(g.State, &s); err != nil {
			return nil, fmt.Errorf("invalid memory state: %w", err)
		}
		return &s, nil
	}
	return nil, fmt.Errorf("unknown game type: %s", g.GameType)
}
