package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chatrelay/internal/repository"
	"chatrelay/pkg/logger"
)

const presenceOnlineSet = "presence:online"

// PresenceService flips the durable online flag on connect/disconnect and
// mirrors it into a Redis set for cheap "who is online" lookups. The store
// flag is authoritative; Redis failures are logged and ignored.
type PresenceService struct {
	profiles repository.ProfileRepository
	redis    *redis.Client
	log      *logger.Logger
}

func NewPresenceService(profiles repository.ProfileRepository, redisClient *redis.Client, log *logger.Logger) *PresenceService {
	return &PresenceService{profiles: profiles, redis: redisClient, log: log}
}

func (s *PresenceService) Connected(ctx context.Context, userID uuid.UUID) error {
	if err := s.profiles.SetOnline(ctx, userID); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.SAdd(ctx, presenceOnlineSet, userID.String()).Err(); err != nil {
			s.log.Warnf("presence: failed to add %s to online set: %v", userID, err)
		}
	}
	return nil
}

func (s *PresenceService) Disconnected(ctx context.Context, userID uuid.UUID) error {
	if err := s.profiles.SetOffline(ctx, userID, time.Now()); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.SRem(ctx, presenceOnlineSet, userID.String()).Err(); err != nil {
			s.log.Warnf("presence: failed to remove %s from online set: %v", userID, err)
		}
	}
	return nil
}

func (s *PresenceService) OnlineUsers(ctx context.Context) ([]string, error) {
	if s.redis == nil {
		return nil, nil
	}
	return s.redis.SMembers(ctx, presenceOnlineSet).Result()
}
