package gateway

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"chatrelay/internal/domain"
	relay_errors "chatrelay/pkg/errors"
)

// requestFrame is one inbound client frame. The correlation id is opaque to
// the server and echoed back verbatim; clients send numbers or strings.
type requestFrame struct {
	ID    json.RawMessage `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// responseFrame answers a request/response frame. Exactly one of Data/Error
// is meaningful, selected by Success.
type responseFrame struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Event   string          `json:"event"`
	Success bool            `json:"success"`
	Data    any             `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

const genericFailure = "Something went wrong"

// failureMessage maps a service error to the wire error string. Known
// sentinels carry a client-safe message; anything else is a generic failure
// so no internals leak.
func failureMessage(err error) string {
	var relayErr *relay_errors.Error
	if errors.As(err, &relayErr) {
		return relayErr.Message
	}
	switch {
	case errors.Is(err, relay_errors.ErrUnauthorized):
		return "Not authenticated"
	case errors.Is(err, relay_errors.ErrForbidden):
		return "Not allowed"
	case errors.Is(err, relay_errors.ErrNotFound):
		return "Not found"
	case errors.Is(err, relay_errors.ErrInvalidInput):
		return "Invalid request"
	case errors.Is(err, relay_errors.ErrAlreadyExists):
		return "Already exists"
	default:
		return genericFailure
	}
}

// Several inbound events carry a bare JSON string as their data instead of
// an object.
func decodeString(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Invalid request data")
	}
	return s, nil
}

func decodeUUID(data json.RawMessage) (uuid.UUID, error) {
	s, err := decodeString(data)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Invalid id")
	}
	return id, nil
}

func decodeInto(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Missing request data")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Invalid request data")
	}
	return nil
}

// Request payloads. Param keys are camelCase on the wire; entity fields stay
// snake_case via the domain JSON tags.

type createRoomRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	IsPrivate   bool    `json:"isPrivate"`
}

type updateRoomRequest struct {
	RoomID      uuid.UUID `json:"roomId"`
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
}

type inviteToRoomRequest struct {
	RoomID uuid.UUID `json:"roomId"`
	UserID uuid.UUID `json:"userId"`
}

type sendMessageRequest struct {
	Content     string     `json:"content"`
	ChatID      uuid.UUID  `json:"chatId"`
	ChatType    string     `json:"chatType"`
	MessageType string     `json:"messageType,omitempty"`
	MediaURL    *string    `json:"mediaUrl,omitempty"`
	MediaType   *string    `json:"mediaType,omitempty"`
	MediaName   *string    `json:"mediaName,omitempty"`
	MediaSize   *int64     `json:"mediaSize,omitempty"`
	ReplyTo     *uuid.UUID `json:"replyTo,omitempty"`
}

type getMessagesRequest struct {
	ChatType string    `json:"chatType"`
	ChatID   uuid.UUID `json:"chatId"`
	Limit    int       `json:"limit,omitempty"`
	Before   *string   `json:"before,omitempty"`
}

type getUploadURLRequest struct {
	Bucket   string `json:"bucket"`
	FileName string `json:"fileName"`
}

type generateAvatarRequest struct {
	Prompt string `json:"prompt,omitempty"`
	Style  string `json:"style,omitempty"`
}

type typingRequest struct {
	ChatID   uuid.UUID `json:"chatId"`
	ChatType string    `json:"chatType"`
	IsTyping bool      `json:"isTyping"`
}

// Response payloads.

type profileResponse struct {
	Profile domain.Profile `json:"profile"`
}

type usersResponse struct {
	Users []domain.Profile `json:"users"`
}

type roomResponse struct {
	Room domain.Room `json:"room"`
}

type roomsResponse struct {
	Rooms []domain.Room `json:"rooms"`
}

type okResponse struct {
	Success bool `json:"success"`
}

type roleResponse struct {
	Role string `json:"role"`
}

type membersResponse struct {
	Members []domain.RoomMember `json:"members"`
}

type conversationResponse struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

type conversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
}

type messageResponse struct {
	Message domain.Message `json:"message"`
}

type messagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

type uploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	PublicURL string `json:"publicUrl"`
}

type avatarResponse struct {
	ImageURL string `json:"imageUrl"`
}

// Push payloads for server-initiated events.

type authenticatedPush struct {
	UserID  uuid.UUID      `json:"userId"`
	Profile domain.Profile `json:"profile"`
	Rooms   []domain.Room  `json:"rooms"`
}

type userTypingPush struct {
	Username string    `json:"username"`
	UserID   uuid.UUID `json:"userId"`
	ChatID   uuid.UUID `json:"chatId"`
	IsTyping bool      `json:"isTyping"`
}

type roomPresencePush struct {
	RoomID uuid.UUID      `json:"roomId"`
	User   domain.Profile `json:"user"`
}

type roomInvitationPush struct {
	Room      domain.Room    `json:"room"`
	InvitedBy domain.Profile `json:"invitedBy"`
}

type roomDeletedPush struct {
	RoomID    uuid.UUID `json:"roomId"`
	DeletedBy uuid.UUID `json:"deletedBy"`
}

type roomUpdatedPush struct {
	Room      domain.Room `json:"room"`
	UpdatedBy uuid.UUID   `json:"updatedBy"`
}

type newConversationPush struct {
	ConversationID uuid.UUID       `json:"conversationId"`
	OtherUser      *domain.Profile `json:"other_user"`
}

type userOfflinePush struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
}
