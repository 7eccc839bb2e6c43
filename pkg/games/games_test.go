package games

import (
	"encoding/json"
	"testing"

	"anonchat/pkg/models"
)

func session(t *testing.T, gameType string, state any) *models.GameSession {
	t.Helper()
	b, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	return &models.GameSession{
		ID: "g1", GameType: gameType, Player1: "p1", Player2: "p2",
		Status: models.GamePlaying, State: b,
	}
}

func TestTicTacToeRowWin(t *testing.T) {
	g := session(t, models.GameTicTacToe, models.TicTacToeState{
		Board: [9]string{"X", "X", "X", "O", "O", "", "", "", ""},
	})
	out, err := Inspect(g)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !out.Finished || out.Winner != "p1" {
		t.Fatalf("expected p1 win, got %+v", out)
	}
}

func TestTicTacToeDiagonalWinForO(t *testing.T) {
	g := session(t, models.GameTicTacToe, models.TicTacToeState{
		Board: [9]string{"O", "X", "X", "", "O", "X", "", "", "O"},
	})
	out, err := Inspect(g)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !out.Finished || out.Winner != "p2" {
		t.Fatalf("expected p2 win, got %+v", out)
	}
}

func TestTicTacToeDraw(t *testing.T) {
	g := session(t, models.GameTicTacToe, models.TicTacToeState{
		Board: [9]string{"X", "O", "X", "X", "O", "O", "O", "X", "X"},
	})
	out, err := Inspect(g)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !out.Finished || out.Winner != "" {
		t.Fatalf("expected draw, got %+v", out)
	}
}

func TestTicTacToeInProgress(t *testing.T) {
	g := session(t, models.GameTicTacToe, models.TicTacToeState{
		Board: [9]string{"X", "", "", "", "O", "", "", "", ""},
	})
	out, err := Inspect(g)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if out.Finished {
		t.Fatalf("game should still be running: %+v", out)
	}
}

func TestTicTacToeRejectsInvalidCell(t *testing.T) {
	g := session(t, models.GameTicTacToe, models.TicTacToeState{
		Board: [9]string{"X", "Z", "", "", "", "", "", "", ""},
	})
	if _, err := Inspect(g); err == nil {
		t.Fatal("expected invalid cell error")
	}
}

func TestRPSBestOfThree(t *testing.T) {
	g := session(t, models.GameRPS, models.RPSState{Round: 3, Score1: 2, Score2: 1})
	out, err := Inspect(g)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !out.Finished || out.Winner != "p1" {
		t.Fatalf("expected p1 win at two rounds, got %+v", out)
	}

	g = session(t, models.GameRPS, models.RPSState{Round: 2, Score1: 1, Score2: 1})
	out, _ = Inspect(g)
	if out.Finished {
		t.Fatalf("1-1 should not be terminal: %+v", out)
	}
}

func TestMemoryMatchWinnerByScore(t *testing.T) {
	g := session(t, models.GameMemoryMatch, models.MemoryMatchState{
		Cards:   []string{"a", "a", "b", "b"},
		Matched: []bool{true, true, true, true},
		Score1:  1, Score2: 3,
	})
	out, err := Inspect(g)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !out.Finished || out.Winner != "p2" {
		t.Fatalf("expected p2 win, got %+v", out)
	}
}

func TestMemoryMatchTieIsDraw(t *testing.T) {
	g := session(t, models.GameMemoryMatch, models.MemoryMatchState{
		Cards:   []string{"a", "a"},
		Matched: []bool{true, true},
		Score1:  1, Score2: 1,
	})
	out, _ := Inspect(g)
	if !out.Finished || out.Winner != "" {
		t.Fatalf("expected draw, got %+v", out)
	}
}

func TestMemoryMatchUnfinishedBoard(t *testing.T) {
	g := session(t, models.GameMemoryMatch, models.MemoryMatchState{
		Cards:   []string{"a", "a", "b", "b"},
		Matched: []bool{true, true, false, false},
	})
	out, _ := Inspect(g)
	if out.Finished {
		t.Fatalf("unmatched cards should not be terminal: %+v", out)
	}
}

func TestUnknownGameTypeRejected(t *testing.T) {
	g := &models.GameSession{ID: "g1", GameType: "chess", State: []byte(`{}`)}
	if _, err := Inspect(g); err == nil {
		t.Fatal("expected unknown game type error")
	}
}

func TestEmptyStateNotTerminal(t *testing.T) {
	g := &models.GameSession{ID: "g1", GameType: models.GameTicTacToe}
	out, err := Inspect(g)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if out.Finished {
		t.Fatalf("empty state should not be terminal: %+v", out)
	}
}
