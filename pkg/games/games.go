// Package games holds terminal-condition checks for the embedded two-player
// mini-games. Each move re-serializes the whole session state; the server
// only decides whether a submitted state is well-formed and whether the
// session just ended, never how the game is played.
package games

import (
	"fmt"

	"anonchat/pkg/models"
)

// Outcome is the result of inspecting a session state.
type Outcome struct {
	Finished bool
	// Winner is a player id when someone won; empty on draw or not finished.
	Winner string
}

// Inspect validates the session's state blob and reports whether it reached
// a terminal condition. Unknown game types are rejected.
func Inspect(g *models.GameSession) (Outcome, error) {
	state, err := g.DecodeState()
	if err != nil {
		return Outcome{}, err
	}
	if state == nil {
		return Outcome{}, nil
	}
	switch s := state.(type) {
	case *models.TicTacToeState:
		return inspectTicTacToe(g, s)
	case *models.RPSState:
		return inspectRPS(g, s), nil
	case *models.MemoryMatchState:
		return inspectMemory(g, s), nil
	}
	return Outcome{}, fmt.Errorf("unhandled game type: %s", g.GameType)
}

var ticTacToeLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

func inspectTicTacToe(g *models.GameSession, s *models.TicTacToeState) (Outcome, error) {
	for i, c := range s.Board {
		if c != "" && c != "X" && c != "O" {
			return Outcome{}, fmt.Errorf("invalid board cell %d: %q", i, c)
		}
	}
	for _, l := range ticTacToeLines {
		a := s.Board[l[0]]
		if a != "" && a == s.Board[l[1]] && a == s.Board[l[2]] {
			// player1 is always X
			winner := g.Player1
			if a == "O" {
				winner = g.Player2
			}
			return Outcome{Finished: true, Winner: winner}, nil
		}
	}
	for _, c := range s.Board {
		if c == "" {
			return Outcome{}, nil
		}
	}
	// full board, no line: draw
	return Outcome{Finished: true}, nil
}

func validRPSChoice(c string) bool {
	return c == "" || c == "rock" || c == "paper" || c == "scissors"
}

func inspectRPS(g *models.GameSession, s *models.RPSState) Outcome {
	if !validRPSChoice(s.Choice1) || !validRPSChoice(s.Choice2) {
		return Outcome{}
	}
	// best of three
	const winScore = 2
	if s.Score1 >= winScore {
		return Outcome{Finished: true, Winner: g.Player1}
	}
	if s.Score2 >= winScore {
		return Outcome{Finished: true, Winner: g.Player2}
	}
	return Outcome{}
}

func inspectMemory(g *models.GameSession, s *models.MemoryMatchState) Outcome {
	if len(s.Matched) != len(s.Cards) {
		return Outcome{}
	}
	for _, m := range s.Matched {
		if !m {
			return Outcome{}
		}
	}
	switch {
	case s.Score1 > s.Score2:
		return Outcome{Finished: true, Winner: g.Player1}
	case s.Score2 > s.Score1:
		return Outcome{Finished: true, Winner: g.Player2}
	}
	return Outcome{Finished: true}
}
