package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of room membership roles, ordered by privilege.
type Role string

const (
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
	RoleMember  Role = "member"
)

func (r Role) Level() int {
	switch r {
	case RoleCreator:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

func (r Role) AtLeast(other Role) bool {
	return r.Level() >= other.Level()
}

func (r Role) Valid() bool {
	return r.Level() > 0
}

type Room struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	AvatarURL   *string    `json:"avatar_url"`
	IsPrivate   bool       `json:"is_private"`
	// CreatedBy is nil after the creator deletes their account.
	CreatedBy *uuid.UUID `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

type RoomMembership struct {
	RoomID   uuid.UUID `json:"room_id"`
	UserID   uuid.UUID `json:"user_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// RoomMember is a membership row joined with the member's profile, as
// returned by the member listing.
type RoomMember struct {
	Profile
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// RoomPatch carries the admin-mutable room fields. Nil fields are left
// untouched.
type RoomPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

func (p RoomPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.AvatarURL == nil
}
