package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"chatrelay/internal/domain"
	"chatrelay/internal/repository"
	relay_errors "chatrelay/pkg/errors"
	"chatrelay/pkg/logger"
)

type ConversationService struct {
	conversations repository.ConversationRepository
	log           *logger.Logger
}

func NewConversationService(conversations repository.ConversationRepository, log *logger.Logger) *ConversationService {
	return &ConversationService{conversations: conversations, log: log}
}

// GetOrCreate returns the single conversation for an unordered user pair,
// creating it on first contact. The pair is canonicalized so (a,b) and (b,a)
// hit the same row. Two concurrent first contacts race on the insert; the
// loser hits the uniqueness constraint and retries the lookup.
func (s *ConversationService) GetOrCreate(ctx context.Context, userA, userB uuid.UUID) (domain.Conversation, bool, error) {
	if userA == userB {
		return domain.Conversation{}, false, relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Cannot start a conversation with yourself")
	}

	p1, p2 := domain.CanonicalPair(userA, userB)

	existing, err := s.conversations.GetByParticipants(ctx, p1, p2)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, relay_errors.ErrNotFound) {
		return domain.Conversation{}, false, err
	}

	conv := domain.Conversation{Participant1: p1, Participant2: p2}
	if err := s.conversations.Create(ctx, &conv); err != nil {
		if errors.Is(err, relay_errors.ErrAlreadyExists) {
			existing, err := s.conversations.GetByParticipants(ctx, p1, p2)
			if err != nil {
				return domain.Conversation{}, false, err
			}
			return existing, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conv, true, nil
}

func (s *ConversationService) Get(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	return s.conversations.GetByID(ctx, id)
}

func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, relay_errors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return conv.HasParticipant(userID), nil
}

func (s *ConversationService) ListUserConversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	return s.conversations.ListUserConversations(ctx, userID)
}

// Delete removes a conversation and its messages. Same ordering discipline
// as room deletion: messages first, then the row.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return relay_errors.WithMessage(relay_errors.ErrForbidden, "Not a participant of this conversation")
	}

	if err := s.conversations.DeleteConversationMessages(ctx, conversationID); err != nil {
		return relay_errors.WithMessage(relay_errors.ErrPartialState, "Failed to delete conversation messages")
	}
	if err := s.conversations.Delete(ctx, conversationID); err != nil {
		s.log.Errorf("conversation %s: messages deleted but row delete failed: %v", conversationID, err)
		return relay_errors.WithMessage(relay_errors.ErrPartialState, "Conversation deletion partially applied")
	}
	return nil
}
