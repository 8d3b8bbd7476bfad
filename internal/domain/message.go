package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeVideo  MessageType = "video"
	MessageTypeAudio  MessageType = "audio"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// DeletedContent replaces the content of cleared messages.
const DeletedContent = "This message was deleted"

type ChatType string

const (
	ChatTypeRoom         ChatType = "room"
	ChatTypeConversation ChatType = "conversation"
)

// ChatRef identifies the chat a message belongs to: a room or a conversation,
// never both.
type ChatRef struct {
	Type ChatType
	ID   uuid.UUID
}

func (r ChatRef) Valid() bool {
	return (r.Type == ChatTypeRoom || r.Type == ChatTypeConversation) && r.ID != uuid.Nil
}

func (r ChatRef) Channel() string {
	return string(r.Type) + ":" + r.ID.String()
}

type Message struct {
	ID             uuid.UUID   `json:"id"`
	SenderID       *uuid.UUID  `json:"sender_id"`
	RoomID         *uuid.UUID  `json:"room_id"`
	ConversationID *uuid.UUID  `json:"conversation_id"`
	Content        *string     `json:"content"`
	MessageType    MessageType `json:"message_type"`
	MediaURL       *string     `json:"media_url"`
	MediaType      *string     `json:"media_type"`
	MediaName      *string     `json:"media_name"`
	MediaSize      *int64      `json:"media_size"`
	ReplyTo        *uuid.UUID  `json:"reply_to"`
	IsEdited       bool        `json:"is_edited"`
	IsDeleted      bool        `json:"is_deleted"`
	CreatedAt      time.Time   `json:"created_at"`
	Sender         *Profile    `json:"sender,omitempty"`
}

func (m Message) Chat() ChatRef {
	if m.RoomID != nil {
		return ChatRef{Type: ChatTypeRoom, ID: *m.RoomID}
	}
	if m.ConversationID != nil {
		return ChatRef{Type: ChatTypeConversation, ID: *m.ConversationID}
	}
	return ChatRef{}
}
