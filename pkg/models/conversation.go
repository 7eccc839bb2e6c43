package models

import (
	"sort"
	"strings"
)

// Conversation kinds. A DM is a two-party conversation addressed by a
// deterministic pair key instead of a server-generated id.
const (
	KindGroup   = "group"
	KindChannel = "channel"
	KindDM      = "dm"
)

type Conversation struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Title string `json:"title,omitempty"`
	// Author is the creating user's id; channels are world-readable, groups
	// restrict to Members.
	Author string `json:"author"`
	// Slug is generated from title and id for human-friendly URLs
	Slug    string   `json:"slug,omitempty"`
	Members []string `json:"members,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
	// Updated timestamp (ns) - last time metadata or conversation activity changed
	UpdatedTS int64 `json:"updated_ts,omitempty"`
	// Deleted marks a conversation as soft-deleted; DeletedTS records deletion time (ns)
	Deleted   bool  `json:"deleted,omitempty"`
	DeletedTS int64 `json:"deleted_ts,omitempty"`
	// LastSeq is the highest message sequence applied to this conversation.
	LastSeq uint64 `json:"last_seq,omitempty"`
}

// DMKey returns the order-independent pair key for a two-party DM so both
// participants address the same conversation regardless of who initiated.
func DMKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// DMParticipants splits a DM pair key back into the two participant ids.
func DMParticipants(key string) (string, string) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 {
		return key, ""
	}
	return parts[0], parts[1]
}

// Slugify builds a URL-friendly slug from a title, falling back to the id.
func Slugify(title, id string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return id
	}
	return out + "-" + id
}

// HasMember reports whether user is listed in the conversation members.
// Channel conversations are open; membership lists apply to groups.
func (c *Conversation) HasMember(user string) bool {
	if c.Kind == KindChannel {
		return true
	}
	i := sort.SearchStrings(c.Members, user)
	if i < len(c.Members) && c.Members[i] == user {
		return true
	}
	// members may not be sorted when written by older clients
	for _, m := range c.Members {
		if m == user {
			return true
		}
	}
	return false
}
