package events

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Channel prefixes. A room or conversation has one broadcast channel; every
// connected user additionally listens on their own user channel for directed
// events (invitations, new conversations).
const (
	ChannelPrefixRoom         = "room:"
	ChannelPrefixConversation = "conversation:"
	ChannelPrefixUser         = "user:"
)

func RoomChannel(roomID uuid.UUID) string {
	return ChannelPrefixRoom + roomID.String()
}

func ConversationChannel(conversationID uuid.UUID) string {
	return ChannelPrefixConversation + conversationID.String()
}

func UserChannel(userID uuid.UUID) string {
	return ChannelPrefixUser + userID.String()
}

// Outbound event names (server -> client).
const (
	EventAuthenticated   = "authenticated"
	EventReceiveMessage  = "receive_message"
	EventUserTyping      = "user_typing"
	EventUserJoinedRoom  = "user_joined_room"
	EventUserLeftRoom    = "user_left_room"
	EventRoomInvitation  = "room_invitation"
	EventRoomDeleted     = "room_deleted"
	EventRoomUpdated     = "room_updated"
	EventNewConversation = "new_conversation"
	EventUserOffline     = "user_offline"
)

// Frame is the wire envelope for server-pushed events.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// envelope is the bus-internal wrapper. Exclude names a user whose
// connections must not receive the frame (typing broadcasts skip the
// sender); it is stripped before the frame reaches a client.
type envelope struct {
	Frame
	Exclude string `json:"exclude,omitempty"`
}

func Marshal(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
