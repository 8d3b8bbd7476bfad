package domain

import (
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName *string   `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url"`
	Bio         *string   `json:"bio"`
	Status      *string   `json:"status"`
	IsOnline    bool      `json:"is_online"`
	// LastSeen is meaningful only while IsOnline is false.
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfilePatch carries the owner-mutable fields of a profile update.
// Nil fields are left untouched.
type ProfilePatch struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (p ProfilePatch) IsEmpty() bool {
	return p.DisplayName == nil && p.AvatarURL == nil && p.Bio == nil && p.Status == nil
}
