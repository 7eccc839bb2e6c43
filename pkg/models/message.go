package models

type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Author       string `json:"author,omitempty"`
	// Content is the display text of the message.
	Content string `json:"content"`
	// TS is the server-assigned creation timestamp (ns).
	TS int64 `json:"ts"`
	// Optional reply-to message ID
	ReplyTo string `json:"reply_to,omitempty"`
	// Edited flag; set when content was updated after creation
	Edited bool `json:"edited,omitempty"`
	// Deleted flag; soft-delete implemented as an appended tombstone version
	Deleted bool `json:"deleted,omitempty"`
	// Recipient is set for DM messages only; group/channel messages leave it
	// empty and rely on conversation membership.
	Recipient string `json:"recipient,omitempty"`
}
