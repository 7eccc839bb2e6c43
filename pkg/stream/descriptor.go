package stream

import (
	"anonchat/pkg/models"
)

// Descriptor tells the reconciler how to address one conversation: where
// its history lives, which feed topic carries its changes, and how to
// filter a broad feed down to it. One reconciler implementation serves all
// three kinds; the descriptor is the only thing that varies.
type Descriptor struct {
	// Kind is models.KindGroup, KindChannel or KindDM.
	Kind string
	// ConversationID is the conversation id, or the DM pair key for DMs.
	ConversationID string
	// Participants holds the two user ids for a DM. The DM feed is broad
	// (not scoped per conversation), so events are filtered against this
	// pair client-side.
	Participants [2]string
	// GameContextType/GameContextID scope the secondary game-session
	// stream. They default to Kind/ConversationID.
	GameContextType string
	GameContextID   string
}

// Group describes a group conversation.
func Group(convID string) Descriptor {
	return Descriptor{Kind: models.KindGroup, ConversationID: convID,
		GameContextType: models.KindGroup, GameContextID: convID}
}

// Channel describes a public channel.
func Channel(convID string) Descriptor {
	return Descriptor{Kind: models.KindChannel, ConversationID: convID,
		GameContextType: models.KindChannel, GameContextID: convID}
}

// Direct describes a DM thread between two users. The pair key is
// order-independent, so both participants open the same stream no matter
// who initiated.
func Direct(user1, user2 string) Descriptor {
	key := models.DMKey(user1, user2)
	a, b := models.DMParticipants(key)
	return Descriptor{Kind: models.KindDM, ConversationID: key,
		Participants:    [2]string{a, b},
		GameContextType: models.KindDM, GameContextID: key}
}

// matches reports whether a feed event belongs to this conversation. For
// group/channel feeds the topic is already scoped so only the conversation
// id is checked; DM events additionally need the participant pair to match.
func (d Descriptor) matches(ev models.Event) bool {
	if ev.Conversation != d.ConversationID {
		return false
	}
	if d.Kind != models.KindDM || ev.Entity != models.EntityMessage {
		return true
	}
	m, err := ev.MessagePayload()
	if err != nil {
		// delete events carry no payload; the id was already admitted by
		// the conversation check
		return ev.Type == models.EventDelete
	}
	pair := [2]string{m.Author, m.Recipient}
	if pair[0] > pair[1] {
		pair[0], pair[1] = pair[1], pair[0]
	}
	return pair == d.Participants
}
