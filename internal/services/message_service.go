package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatrelay/internal/domain"
	"chatrelay/internal/repository"
	relay_errors "chatrelay/pkg/errors"
	"chatrelay/pkg/logger"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

// MessageService validates chat access, persists messages, and prepares
// them for fan-out.
type MessageService struct {
	messages      repository.MessageRepository
	rooms         *RoomService
	conversations *ConversationService
	log           *logger.Logger
}

func NewMessageService(messages repository.MessageRepository, rooms *RoomService, conversations *ConversationService, log *logger.Logger) *MessageService {
	return &MessageService{messages: messages, rooms: rooms, conversations: conversations, log: log}
}

// MediaFields carries the optional attachment columns of a message.
type MediaFields struct {
	URL  *string
	Type *string
	Name *string
	Size *int64
}

func (s *MessageService) canAccess(ctx context.Context, userID uuid.UUID, chat domain.ChatRef) (bool, error) {
	switch chat.Type {
	case domain.ChatTypeRoom:
		return s.rooms.IsMember(ctx, userID, chat.ID)
	case domain.ChatTypeConversation:
		return s.conversations.IsParticipant(ctx, chat.ID, userID)
	default:
		return false, nil
	}
}

// Send persists a message in the target chat and returns the stored row
// joined with the sender profile. Exactly one of room_id/conversation_id is
// set, driven by the chat ref.
func (s *MessageService) Send(ctx context.Context, senderID uuid.UUID, chat domain.ChatRef, content string, messageType domain.MessageType, media MediaFields, replyTo *uuid.UUID) (domain.Message, error) {
	if !chat.Valid() {
		return domain.Message{}, relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Invalid chat reference")
	}
	if messageType == "" {
		messageType = domain.MessageTypeText
	}
	if !messageType.Valid() {
		return domain.Message{}, relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Invalid message type")
	}
	if strings.TrimSpace(content) == "" && media.URL == nil {
		return domain.Message{}, relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Message is empty")
	}

	ok, err := s.canAccess(ctx, senderID, chat)
	if err != nil {
		return domain.Message{}, err
	}
	if !ok {
		return domain.Message{}, relay_errors.WithMessage(relay_errors.ErrForbidden, "Access denied to this chat")
	}

	msg := domain.Message{
		SenderID:    &senderID,
		MessageType: messageType,
		MediaURL:    media.URL,
		MediaType:   media.Type,
		MediaName:   media.Name,
		MediaSize:   media.Size,
		ReplyTo:     replyTo,
	}
	if content != "" {
		msg.Content = &content
	}
	switch chat.Type {
	case domain.ChatTypeRoom:
		id := chat.ID
		msg.RoomID = &id
	case domain.ChatTypeConversation:
		id := chat.ID
		msg.ConversationID = &id
	}

	if err := s.messages.Create(ctx, &msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// List returns up to limit messages of a chat in ascending creation order,
// paginating backward from the before cursor when given.
func (s *MessageService) List(ctx context.Context, userID uuid.UUID, chat domain.ChatRef, limit int, before *time.Time) ([]domain.Message, error) {
	if !chat.Valid() {
		return nil, relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Invalid chat reference")
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	ok, err := s.canAccess(ctx, userID, chat)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, relay_errors.WithMessage(relay_errors.ErrForbidden, "Access denied to this chat")
	}

	return s.messages.ListByChat(ctx, chat, limit, before)
}

// ClearAllFromSender soft-deletes every message the user ever sent, across
// all chats: content is replaced with the deletion marker, media stripped.
// Irreversible from the user's perspective.
func (s *MessageService) ClearAllFromSender(ctx context.Context, userID uuid.UUID) error {
	return s.messages.ClearAllFromSender(ctx, userID)
}
