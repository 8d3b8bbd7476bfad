package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"chatrelay/internal/domain"
	"chatrelay/internal/repository"
	relay_errors "chatrelay/pkg/errors"
	"chatrelay/pkg/logger"
)

type ProfileService struct {
	profiles repository.ProfileRepository
	log      *logger.Logger
}

func NewProfileService(profiles repository.ProfileRepository, log *logger.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, log: log}
}

func (s *ProfileService) Get(ctx context.Context, id uuid.UUID) (domain.Profile, error) {
	return s.profiles.GetByID(ctx, id)
}

// Update applies the owner-mutable fields only; id and username are
// immutable.
func (s *ProfileService) Update(ctx context.Context, userID uuid.UUID, patch domain.ProfilePatch) (domain.Profile, error) {
	if patch.IsEmpty() {
		return domain.Profile{}, relay_errors.WithMessage(relay_errors.ErrInvalidInput, "No fields to update")
	}
	return s.profiles.Update(ctx, userID, patch)
}

// SearchUsers matches username or display name substring, excluding the
// caller.
func (s *ProfileService) SearchUsers(ctx context.Context, query string, excludeUserID uuid.UUID) ([]domain.Profile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return s.profiles.SearchUsers(ctx, query, excludeUserID, searchResultCap)
}

// DeleteAccount removes the profile row; the store cascades the deletion to
// memberships, conversations, and messages.
func (s *ProfileService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	if err := s.profiles.Delete(ctx, userID); err != nil {
		return err
	}
	s.log.Infof("account %s deleted", userID)
	return nil
}
