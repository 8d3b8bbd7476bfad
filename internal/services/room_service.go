package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"chatrelay/internal/domain"
	"chatrelay/internal/repository"
	relay_errors "chatrelay/pkg/errors"
	"chatrelay/pkg/logger"
)

const searchResultCap = 20

// RoomService owns room lifecycle and membership/role invariants
// (creator > admin > member).
type RoomService struct {
	rooms repository.RoomRepository
	log   *logger.Logger
}

func NewRoomService(rooms repository.RoomRepository, log *logger.Logger) *RoomService {
	return &RoomService{rooms: rooms, log: log}
}

// CreateRoom inserts the room and then the creator membership. The two
// inserts are not atomic: a membership failure leaves an ownerless room,
// which RepairCreatorMembership can fix later.
func (s *RoomService) CreateRoom(ctx context.Context, userID uuid.UUID, name string, description *string, isPrivate bool) (domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Room{}, relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Room name is required")
	}

	room := domain.Room{
		Name:        name,
		Description: description,
		IsPrivate:   isPrivate,
		CreatedBy:   &userID,
	}
	if err := s.rooms.Create(ctx, &room); err != nil {
		return domain.Room{}, err
	}

	membership := domain.RoomMembership{RoomID: room.ID, UserID: userID, Role: domain.RoleCreator}
	if err := s.rooms.AddMember(ctx, &membership); err != nil {
		s.log.Errorf("room %s created without creator membership for %s: %v", room.ID, userID, err)
	}
	return room, nil
}

// JoinRoom adds the user as a plain member. Joining twice is reported as
// false, not an error; joining a room that does not exist is not found, not a
// store failure.
func (s *RoomService) JoinRoom(ctx context.Context, userID, roomID uuid.UUID) (bool, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		if errors.Is(err, relay_errors.ErrNotFound) {
			return false, relay_errors.WithMessage(relay_errors.ErrNotFound, "Room not found")
		}
		return false, err
	}

	membership := domain.RoomMembership{RoomID: roomID, UserID: userID, Role: domain.RoleMember}
	if err := s.rooms.AddMember(ctx, &membership); err != nil {
		if errors.Is(err, relay_errors.ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// LeaveRoom removes the caller's membership row. Leaving a room the user is
// not in is a no-op reported as false.
func (s *RoomService) LeaveRoom(ctx context.Context, userID, roomID uuid.UUID) (bool, error) {
	return s.rooms.RemoveMember(ctx, roomID, userID)
}

// DeleteRoom removes the room and everything in it. Deletes run in strict
// order (messages, memberships, room) without a compensating transaction; a
// mid-sequence failure leaves the room partially deleted and is surfaced as
// such.
func (s *RoomService) DeleteRoom(ctx context.Context, userID, roomID uuid.UUID) error {
	ok, err := s.IsRoomAdminOrCreator(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return relay_errors.WithMessage(relay_errors.ErrForbidden, "Only room admins can delete the room")
	}

	if err := s.rooms.DeleteRoomMessages(ctx, roomID); err != nil {
		return relay_errors.WithMessage(relay_errors.ErrPartialState, "Failed to delete room messages")
	}
	if err := s.rooms.DeleteRoomMembers(ctx, roomID); err != nil {
		s.log.Errorf("room %s: messages deleted but membership delete failed: %v", roomID, err)
		return relay_errors.WithMessage(relay_errors.ErrPartialState, "Room deletion partially applied")
	}
	if err := s.rooms.Delete(ctx, roomID); err != nil {
		s.log.Errorf("room %s: contents deleted but room row delete failed: %v", roomID, err)
		return relay_errors.WithMessage(relay_errors.ErrPartialState, "Room deletion partially applied")
	}
	return nil
}

func (s *RoomService) UpdateRoom(ctx context.Context, userID, roomID uuid.UUID, patch domain.RoomPatch) (domain.Room, error) {
	if patch.IsEmpty() {
		return domain.Room{}, relay_errors.WithMessage(relay_errors.ErrInvalidInput, "No fields to update")
	}
	ok, err := s.IsRoomAdminOrCreator(ctx, userID, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if !ok {
		return domain.Room{}, relay_errors.WithMessage(relay_errors.ErrForbidden, "Only room admins can update the room")
	}
	return s.rooms.Update(ctx, roomID, patch)
}

func (s *RoomService) InviteUser(ctx context.Context, inviterID, inviteeID, roomID uuid.UUID) error {
	ok, err := s.IsRoomAdminOrCreator(ctx, inviterID, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return relay_errors.WithMessage(relay_errors.ErrForbidden, "Only room admins can invite users")
	}

	membership := domain.RoomMembership{RoomID: roomID, UserID: inviteeID, Role: domain.RoleMember}
	if err := s.rooms.AddMember(ctx, &membership); err != nil {
		if errors.Is(err, relay_errors.ErrAlreadyExists) {
			return relay_errors.WithMessage(relay_errors.ErrAlreadyExists, "User is already a member of this room")
		}
		return err
	}
	return nil
}

// GetUserRoleInRoom is a pure read. When no membership row exists it falls
// back to the room's created_by column: rooms created before role tracking
// (or by a failed two-step create) have a creator but no membership row.
// Unlike the historic behavior this never writes; RepairCreatorMembership is
// the explicit fix-up path.
func (s *RoomService) GetUserRoleInRoom(ctx context.Context, userID, roomID uuid.UUID) (domain.Role, error) {
	m, err := s.rooms.GetMember(ctx, roomID, userID)
	if err == nil {
		return m.Role, nil
	}
	if !errors.Is(err, relay_errors.ErrNotFound) {
		return "", err
	}

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return "", err
	}
	if room.CreatedBy != nil && *room.CreatedBy == userID {
		return domain.RoleCreator, nil
	}
	return "", relay_errors.ErrNotFound
}

// RepairCreatorMembership re-inserts the creator membership row for a room
// whose created_by has no membership. Idempotent; intended for the operator
// endpoint, not the request path.
func (s *RoomService) RepairCreatorMembership(ctx context.Context, roomID uuid.UUID) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy == nil {
		return relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Room has no creator on record")
	}

	membership := domain.RoomMembership{RoomID: roomID, UserID: *room.CreatedBy, Role: domain.RoleCreator}
	if err := s.rooms.UpsertMember(ctx, &membership); err != nil {
		return err
	}
	s.log.Infof("repaired creator membership for room %s (creator %s)", roomID, *room.CreatedBy)
	return nil
}

func (s *RoomService) IsRoomAdminOrCreator(ctx context.Context, userID, roomID uuid.UUID) (bool, error) {
	role, err := s.GetUserRoleInRoom(ctx, userID, roomID)
	if err != nil {
		if errors.Is(err, relay_errors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return role.AtLeast(domain.RoleAdmin), nil
}

func (s *RoomService) IsMember(ctx context.Context, userID, roomID uuid.UUID) (bool, error) {
	_, err := s.GetUserRoleInRoom(ctx, userID, roomID)
	if err != nil {
		if errors.Is(err, relay_errors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *RoomService) GetRoom(ctx context.Context, roomID uuid.UUID) (domain.Room, error) {
	return s.rooms.GetByID(ctx, roomID)
}

func (s *RoomService) ListUserRooms(ctx context.Context, userID uuid.UUID) ([]domain.Room, error) {
	return s.rooms.ListUserRooms(ctx, userID)
}

// SearchRooms matches public rooms by name substring, case-insensitively.
func (s *RoomService) SearchRooms(ctx context.Context, query string) ([]domain.Room, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return s.rooms.SearchPublic(ctx, query, searchResultCap)
}

func (s *RoomService) GetRoomMembers(ctx context.Context, userID, roomID uuid.UUID) ([]domain.RoomMember, error) {
	ok, err := s.IsMember(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, relay_errors.WithMessage(relay_errors.ErrForbidden, "Not a member of this room")
	}
	return s.rooms.ListMembers(ctx, roomID)
}
