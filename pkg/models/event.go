package models

import "encoding/json"

// Event types for the live change feed.
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// Entity kinds carried by feed events.
const (
	EntityMessage = "message"
	EntityGame    = "game"
)

// Event is the wire form of one row-level change on the live feed. Payload
// holds the full row for insert/update; delete events carry only the id.
type Event struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	// Conversation scopes the event: a conversation id for group/channel,
	// a DM pair key for DMs, a game context id for game sessions.
	Conversation string          `json:"conversation"`
	ID           string          `json:"id"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	// TS is the change timestamp (ns).
	TS int64 `json:"ts"`
	// Seq is a per-broker monotonic publish sequence, useful for gap
	// detection by diagnostics. Not an ordering guarantee.
	Seq uint64 `json:"seq,omitempty"`
}

// MessagePayload decodes the payload as a Message.
func (e *Event) MessagePayload() (Message, error) {
	var m Message
	err := json.Unmarshal(e.Payload, &m)
	return m, err
}

// GamePayload decodes the payload as a GameSession.
func (e *Event) GamePayload() (GameSession, error) {
	var g GameSession
	err := json.Unmarshal(e.Payload, &g)
	return g, err
}
