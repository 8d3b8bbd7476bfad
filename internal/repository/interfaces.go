package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chatrelay/internal/domain"
)

type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Profile, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.ProfilePatch) (domain.Profile, error)
	SearchUsers(ctx context.Context, query string, excludeUserID uuid.UUID, limit int) ([]domain.Profile, error)
	SetOnline(ctx context.Context, id uuid.UUID) error
	SetOffline(ctx context.Context, id uuid.UUID, lastSeen time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type RoomRepository interface {
	Create(ctx context.Context, r *domain.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Room, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.RoomPatch) (domain.Room, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListUserRooms(ctx context.Context, userID uuid.UUID) ([]domain.Room, error)
	SearchPublic(ctx context.Context, query string, limit int) ([]domain.Room, error)

	AddMember(ctx context.Context, m *domain.RoomMembership) error
	UpsertMember(ctx context.Context, m *domain.RoomMembership) error
	RemoveMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	GetMember(ctx context.Context, roomID, userID uuid.UUID) (domain.RoomMembership, error)
	ListMembers(ctx context.Context, roomID uuid.UUID) ([]domain.RoomMember, error)

	DeleteRoomMessages(ctx context.Context, roomID uuid.UUID) error
	DeleteRoomMembers(ctx context.Context, roomID uuid.UUID) error
}

type ConversationRepository interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Conversation, error)
	GetByParticipants(ctx context.Context, p1, p2 uuid.UUID) (domain.Conversation, error)
	ListUserConversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteConversationMessages(ctx context.Context, conversationID uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	ListByChat(ctx context.Context, chat domain.ChatRef, limit int, before *time.Time) ([]domain.Message, error)
	ClearAllFromSender(ctx context.Context, senderID uuid.UUID) error
}
