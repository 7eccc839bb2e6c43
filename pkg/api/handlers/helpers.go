package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"anonchat/pkg/auth"
	"anonchat/pkg/models"
	"anonchat/pkg/store"
	"anonchat/pkg/utils"
)

// viewer pulls the authenticated user out of the request context. Writes
// the 401 itself so callers can just return on !ok.
func viewer(w http.ResponseWriter, r *http.Request) (auth.Viewer, bool) {
	v, ok := auth.FromContext(r.Context())
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "authentication required")
	}
	return v, ok
}

// isDMKey reports whether a conversation id is a DM pair key rather than a
// server-generated id. Pair keys are "<user>:<user>"; generated ids never
// contain a colon.
func isDMKey(convID string) bool {
	return strings.Contains(convID, ":")
}

// conversationAccess checks that the viewer may read or post to the
// conversation. DM pair keys are self-describing: access is membership in
// the pair, and the conversation row may not exist yet (it is created on
// first message). Returns an http status and error for the failure case.
func conversationAccess(convID string, v auth.Viewer) (int, error) {
	if isDMKey(convID) {
		a, b := models.DMParticipants(convID)
		if v.ID != a && v.ID != b {
			return http.StatusForbidden, fmt.Errorf("not a participant")
		}
		return 0, nil
	}
	c, err := store.GetConversation(convID)
	if err != nil {
		return http.StatusNotFound, fmt.Errorf("conversation not found")
	}
	if c.Deleted {
		return http.StatusGone, fmt.Errorf("conversation deleted")
	}
	if c.Kind == models.KindGroup && !c.HasMember(v.ID) && c.Author != v.ID {
		return http.StatusForbidden, fmt.Errorf("not a member")
	}
	return 0, nil
}
