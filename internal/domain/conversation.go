package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a 1:1 chat. Participants are stored in canonical order
// (smaller UUID first) so the unordered pair is a natural key.
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	Participant1 uuid.UUID `json:"participant_1"`
	Participant2 uuid.UUID `json:"participant_2"`
	CreatedAt    time.Time `json:"created_at"`
	// OtherUser is the counterpart's profile, filled in for listings.
	OtherUser *Profile `json:"other_user,omitempty"`
}

// CanonicalPair orders two participant ids deterministically.
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() <= b.String() {
		return a, b
	}
	return b, a
}

func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.Participant1 == userID || c.Participant2 == userID
}

func (c Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.Participant1 == userID {
		return c.Participant2
	}
	return c.Participant1
}
