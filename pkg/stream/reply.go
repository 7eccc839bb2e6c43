package stream

import (
	"errors"

	"anonchat/pkg/logger"
	"anonchat/pkg/models"
)

// unknownAuthor is the placeholder shown when a reply reference cannot be
// resolved (referent purged, lookup failed). The reply indicator still
// renders; it just carries no preview text.
const unknownAuthor = "Unknown"

// resolveReply builds the preview for a reply reference. Resolution order:
// the fetched batch (when installing a snapshot), then the current view,
// then a point lookup against the source. Failures degrade to the
// placeholder instead of failing the message. The point lookup can touch
// the network, so h.mu is only taken for the view peek; View() is never
// held up behind a lookup.
func (h *Handle) resolveReply(replyTo string, batch map[string]*models.Message) *ReplyPreview {
	if m, ok := batch[replyTo]; ok && !m.Deleted {
		return &ReplyPreview{Author: h.username(m.Author), Content: m.Content}
	}
	h.mu.Lock()
	it, ok := h.v.get(replyTo)
	h.mu.Unlock()
	if ok && it.Kind == ItemMessage {
		return &ReplyPreview{Author: h.username(it.Message.Author), Content: it.Message.Content}
	}
	m, err := h.r.src.MessageByID(h.ctx, replyTo)
	if err != nil || m.Deleted {
		if err != nil && !errors.Is(err, ErrNotFound) {
			logger.Debug("stream_reply_lookup_failed", "reply_to", replyTo, "error", err)
		}
		return &ReplyPreview{Author: unknownAuthor}
	}
	return &ReplyPreview{Author: h.username(m.Author), Content: m.Content}
}

// username resolves a user id to a display name with a per-handle cache.
// The source lookup runs unlocked; a failed lookup falls back to the raw id
// rather than blocking the message.
func (h *Handle) username(userID string) string {
	h.mu.Lock()
	name, ok := h.names[userID]
	h.mu.Unlock()
	if ok {
		return name
	}
	name, err := h.r.src.Username(h.ctx, userID)
	if err != nil || name == "" {
		return userID
	}
	h.mu.Lock()
	h.names[userID] = name
	h.mu.Unlock()
	return name
}
