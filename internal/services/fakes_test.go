package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatrelay/internal/domain"
	relay_errors "chatrelay/pkg/errors"
	"chatrelay/pkg/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

// fakeProfileRepo is an in-memory ProfileRepository.
type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]domain.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[uuid.UUID]domain.Profile)}
}

func (r *fakeProfileRepo) put(p domain.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
}

func (r *fakeProfileRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return domain.Profile{}, relay_errors.ErrNotFound
	}
	return p, nil
}

func (r *fakeProfileRepo) Update(_ context.Context, id uuid.UUID, patch domain.ProfilePatch) (domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return domain.Profile{}, relay_errors.ErrNotFound
	}
	if patch.DisplayName != nil {
		p.DisplayName = patch.DisplayName
	}
	if patch.AvatarURL != nil {
		p.AvatarURL = patch.AvatarURL
	}
	if patch.Bio != nil {
		p.Bio = patch.Bio
	}
	if patch.Status != nil {
		p.Status = patch.Status
	}
	r.profiles[id] = p
	return p, nil
}

func (r *fakeProfileRepo) SearchUsers(_ context.Context, query string, excludeUserID uuid.UUID, limit int) ([]domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Profile
	q := strings.ToLower(query)
	for _, p := range r.profiles {
		if p.ID == excludeUserID {
			continue
		}
		name := ""
		if p.DisplayName != nil {
			name = strings.ToLower(*p.DisplayName)
		}
		if strings.Contains(strings.ToLower(p.Username), q) || strings.Contains(name, q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeProfileRepo) SetOnline(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return relay_errors.ErrNotFound
	}
	p.IsOnline = true
	r.profiles[id] = p
	return nil
}

func (r *fakeProfileRepo) SetOffline(_ context.Context, id uuid.UUID, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return relay_errors.ErrNotFound
	}
	p.IsOnline = false
	p.LastSeen = lastSeen
	r.profiles[id] = p
	return nil
}

func (r *fakeProfileRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[id]; !ok {
		return relay_errors.ErrNotFound
	}
	delete(r.profiles, id)
	return nil
}

// fakeRoomRepo is an in-memory RoomRepository. Error hooks let tests force
// failures mid-sequence.
type fakeRoomRepo struct {
	mu          sync.Mutex
	rooms       map[uuid.UUID]domain.Room
	memberships map[uuid.UUID]map[uuid.UUID]domain.RoomMembership
	profiles    *fakeProfileRepo

	deleteMembersErr error
	deleteRoomErr    error
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{
		rooms:       make(map[uuid.UUID]domain.Room),
		memberships: make(map[uuid.UUID]map[uuid.UUID]domain.RoomMembership),
	}
}

func (r *fakeRoomRepo) Create(_ context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room.ID = uuid.New()
	room.CreatedAt = time.Now()
	r.rooms[room.ID] = *room
	return nil
}

func (r *fakeRoomRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return domain.Room{}, relay_errors.ErrNotFound
	}
	return room, nil
}

func (r *fakeRoomRepo) Update(_ context.Context, id uuid.UUID, patch domain.RoomPatch) (domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return domain.Room{}, relay_errors.ErrNotFound
	}
	if patch.Name != nil {
		room.Name = *patch.Name
	}
	if patch.Description != nil {
		room.Description = patch.Description
	}
	if patch.AvatarURL != nil {
		room.AvatarURL = patch.AvatarURL
	}
	r.rooms[id] = room
	return room, nil
}

func (r *fakeRoomRepo) Delete(_ context.Context, id uuid.UUID) error {
	if r.deleteRoomErr != nil {
		return r.deleteRoomErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; !ok {
		return relay_errors.ErrNotFound
	}
	delete(r.rooms, id)
	return nil
}

func (r *fakeRoomRepo) ListUserRooms(_ context.Context, userID uuid.UUID) ([]domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Room
	for roomID, members := range r.memberships {
		if _, ok := members[userID]; ok {
			if room, found := r.rooms[roomID]; found {
				out = append(out, room)
			}
		}
	}
	return out, nil
}

func (r *fakeRoomRepo) SearchPublic(_ context.Context, query string, limit int) ([]domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Room
	q := strings.ToLower(query)
	for _, room := range r.rooms {
		if !room.IsPrivate && strings.Contains(strings.ToLower(room.Name), q) {
			out = append(out, room)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRoomRepo) AddMember(_ context.Context, m *domain.RoomMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.memberships[m.RoomID]
	if members == nil {
		members = make(map[uuid.UUID]domain.RoomMembership)
		r.memberships[m.RoomID] = members
	}
	if _, ok := members[m.UserID]; ok {
		return relay_errors.ErrAlreadyExists
	}
	m.JoinedAt = time.Now()
	members[m.UserID] = *m
	return nil
}

func (r *fakeRoomRepo) UpsertMember(_ context.Context, m *domain.RoomMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.memberships[m.RoomID]
	if members == nil {
		members = make(map[uuid.UUID]domain.RoomMembership)
		r.memberships[m.RoomID] = members
	}
	m.JoinedAt = time.Now()
	members[m.UserID] = *m
	return nil
}

func (r *fakeRoomRepo) RemoveMember(_ context.Context, roomID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.memberships[roomID]
	if _, ok := members[userID]; !ok {
		return false, nil
	}
	delete(members, userID)
	return true, nil
}

func (r *fakeRoomRepo) GetMember(_ context.Context, roomID, userID uuid.UUID) (domain.RoomMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[roomID][userID]
	if !ok {
		return domain.RoomMembership{}, relay_errors.ErrNotFound
	}
	return m, nil
}

func (r *fakeRoomRepo) ListMembers(_ context.Context, roomID uuid.UUID) ([]domain.RoomMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RoomMember
	for userID, m := range r.memberships[roomID] {
		member := domain.RoomMember{Role: m.Role, JoinedAt: m.JoinedAt}
		member.ID = userID
		if r.profiles != nil {
			if p, ok := r.profiles.profiles[userID]; ok {
				member.Profile = p
			}
		}
		out = append(out, member)
	}
	return out, nil
}

func (r *fakeRoomRepo) DeleteRoomMessages(_ context.Context, roomID uuid.UUID) error {
	return nil
}

func (r *fakeRoomRepo) DeleteRoomMembers(_ context.Context, roomID uuid.UUID) error {
	if r.deleteMembersErr != nil {
		return r.deleteMembersErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.memberships, roomID)
	return nil
}

func (r *fakeRoomRepo) memberCount(roomID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.memberships[roomID])
}

// fakeConversationRepo is an in-memory ConversationRepository.
type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]domain.Conversation

	// createConflict makes the next Create fail as a unique violation, as if
	// a concurrent insert won the race.
	createConflict bool
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[uuid.UUID]domain.Conversation)}
}

func (r *fakeConversationRepo) Create(_ context.Context, c *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createConflict {
		r.createConflict = false
		c2 := domain.Conversation{ID: uuid.New(), Participant1: c.Participant1, Participant2: c.Participant2, CreatedAt: time.Now()}
		r.conversations[c2.ID] = c2
		return relay_errors.ErrAlreadyExists
	}
	for _, existing := range r.conversations {
		if existing.Participant1 == c.Participant1 && existing.Participant2 == c.Participant2 {
			return relay_errors.ErrAlreadyExists
		}
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	r.conversations[c.ID] = *c
	return nil
}

func (r *fakeConversationRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return domain.Conversation{}, relay_errors.ErrNotFound
	}
	return c, nil
}

func (r *fakeConversationRepo) GetByParticipants(_ context.Context, p1, p2 uuid.UUID) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conversations {
		if c.Participant1 == p1 && c.Participant2 == p2 {
			return c, nil
		}
	}
	return domain.Conversation{}, relay_errors.ErrNotFound
}

func (r *fakeConversationRepo) ListUserConversations(_ context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Conversation
	for _, c := range r.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[id]; !ok {
		return relay_errors.ErrNotFound
	}
	delete(r.conversations, id)
	return nil
}

func (r *fakeConversationRepo) DeleteConversationMessages(_ context.Context, conversationID uuid.UUID) error {
	return nil
}

// fakeMessageRepo is an in-memory MessageRepository.
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []domain.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (r *fakeMessageRepo) Create(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	r.messages = append(r.messages, *m)
	return nil
}

func (r *fakeMessageRepo) ListByChat(_ context.Context, chat domain.ChatRef, limit int, before *time.Time) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.messages {
		if m.Chat() != chat {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *fakeMessageRepo) ClearAllFromSender(_ context.Context, senderID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := domain.DeletedContent
	for i, m := range r.messages {
		if m.SenderID != nil && *m.SenderID == senderID {
			m.Content = &deleted
			m.IsDeleted = true
			m.MediaURL = nil
			m.MediaType = nil
			m.MediaName = nil
			m.MediaSize = nil
			r.messages[i] = m
		}
	}
	return nil
}

func (r *fakeMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}
