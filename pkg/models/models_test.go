package models

import (
	"encoding/json"
	"testing"
)

func TestDMKeyIsOrderIndependent(t *testing.T) {
	if DMKey("alice", "bob") != DMKey("bob", "alice") {
		t.Fatal("pair key depends on argument order")
	}
	if got := DMKey("bob", "alice"); got != "alice:bob" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestDMParticipantsRoundTrip(t *testing.T) {
	a, b := DMParticipants(DMKey("carol", "alice"))
	if a != "alice" || b != "carol" {
		t.Fatalf("unexpected participants %q %q", a, b)
	}
	a, b = DMParticipants("notakey")
	if a != "notakey" || b != "" {
		t.Fatalf("malformed key: %q %q", a, b)
	}
}

func TestSlugify(t *testing.T) {
	if got := Slugify("Hello, World!", "c1"); got != "hello-world-c1" {
		t.Fatalf("unexpected slug %q", got)
	}
	// empty titles fall back to the id alone
	if got := Slugify("  ", "c1"); got != "c1" {
		t.Fatalf("unexpected slug %q", got)
	}
	if got := Slugify("---", "c1"); got != "c1" {
		t.Fatalf("unexpected slug %q", got)
	}
}

func TestHasMember(t *testing.T) {
	g := &Conversation{Kind: KindGroup, Members: []string{"bob", "alice"}}
	if !g.HasMember("alice") || !g.HasMember("bob") {
		t.Fatal("member not found")
	}
	if g.HasMember("mallory") {
		t.Fatal("non-member admitted")
	}
	ch := &Conversation{Kind: KindChannel}
	if !ch.HasMember("anyone") {
		t.Fatal("channels should be open")
	}
}

func TestDecodeStatePerGameType(t *testing.T) {
	g := &GameSession{GameType: GameTicTacToe, State: json.RawMessage(`{"board":["X","","","","","","","",""],"turn":"O"}`)}
	v, err := g.DecodeState()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	s, ok := v.(*TicTacToeState)
	if !ok || s.Board[0] != "X" || s.Turn != "O" {
		t.Fatalf("unexpected state %#v", v)
	}

	g = &GameSession{GameType: GameRPS, State: json.RawMessage(`{"round":2,"score1":1,"score2":0}`)}
	v, err = g.DecodeState()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r, ok := v.(*RPSState); !ok || r.Round != 2 || r.Score1 != 1 {
		t.Fatalf("unexpected state %#v", v)
	}

	g = &GameSession{GameType: GameMemoryMatch, State: json.RawMessage(`{"cards":["a","a"],"matched":[false,false]}`)}
	if _, err = g.DecodeState(); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestDecodeStateRejectsUnknownType(t *testing.T) {
	g := &GameSession{GameType: "chess", State: json.RawMessage(`{}`)}
	if _, err := g.DecodeState(); err == nil {
		t.Fatal("unknown game type decoded")
	}
}

func TestDecodeStateEmptyIsNil(t *testing.T) {
	g := &GameSession{GameType: GameTicTacToe}
	v, err := g.DecodeState()
	if err != nil || v != nil {
		t.Fatalf("expected nil state, got %#v %v", v, err)
	}
}

func TestValidGameType(t *testing.T) {
	for _, typ := range []string{GameTicTacToe, GameRPS, GameMemoryMatch} {
		if !ValidGameType(typ) {
			t.Fatalf("%q should be valid", typ)
		}
	}
	for _, typ := range []string{"chess", "", "TicTacToe"} {
		if ValidGameType(typ) {
			t.Fatalf("%q should be invalid", typ)
		}
	}
}

func TestEventPayloadDecoding(t *testing.T) {
	m := Message{ID: "m1", Conversation: "c1", Author: "u1", Content: "hi", TS: 100}
	raw, _ := json.Marshal(m)
	ev := Event{Type: EventInsert, Entity: EntityMessage, Conversation: "c1", ID: "m1", Payload: raw}
	got, err := ev.MessagePayload()
	if err != nil || got.Content != "hi" {
		t.Fatalf("payload decode: %v %+v", err, got)
	}
	ev.Payload = json.RawMessage(`{broken`)
	if _, err := ev.MessagePayload(); err == nil {
		t.Fatal("malformed payload decoded")
	}
}
