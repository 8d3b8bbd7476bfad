package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/domain"
	"chatrelay/internal/events"
	"chatrelay/internal/services"
	relay_errors "chatrelay/pkg/errors"
)

type busRecord struct {
	Channel string
	Event   string
}

// recordingBus captures publishes instead of pushing them through Redis.
type recordingBus struct {
	mu      sync.Mutex
	records []busRecord
}

func (b *recordingBus) Publish(_ context.Context, channel, event string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, busRecord{Channel: channel, Event: event})
	return nil
}

func (b *recordingBus) PublishExcept(ctx context.Context, channel, event string, data any, _ string) error {
	return b.Publish(ctx, channel, event, data)
}

func (b *recordingBus) published() []busRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]busRecord(nil), b.records...)
}

// memoryProfiles is a minimal in-memory ProfileRepository for presence checks.
type memoryProfiles struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]domain.Profile
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{profiles: make(map[uuid.UUID]domain.Profile)}
}

func (r *memoryProfiles) put(p domain.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
}

func (r *memoryProfiles) isOnline(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profiles[id].IsOnline
}

func (r *memoryProfiles) GetByID(_ context.Context, id uuid.UUID) (domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return domain.Profile{}, relay_errors.ErrNotFound
	}
	return p, nil
}

func (r *memoryProfiles) Update(_ context.Context, id uuid.UUID, _ domain.ProfilePatch) (domain.Profile, error) {
	return r.GetByID(context.Background(), id)
}

func (r *memoryProfiles) SearchUsers(_ context.Context, _ string, _ uuid.UUID, _ int) ([]domain.Profile, error) {
	return nil, nil
}

func (r *memoryProfiles) SetOnline(_ context.Context, id uuid.UUID) error {
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

func (r *memoryProfiles) SetOffline(_ context.Context, id uuid.UUID, lastSeen time.Time) error {
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

func (r *memoryProfiles) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, id)
	return nil
}

func newPresenceGateway() (*Gateway, *memoryProfiles, *recordingBus) {
	profiles := newMemoryProfiles()
	bus := &recordingBus{}
	g := &Gateway{
		hub:      NewHub(testLogger()),
		bus:      bus,
		presence: services.NewPresenceService(profiles, nil, testLogger()),
		log:      testLogger(),
	}
	return g, profiles, bus
}

func TestGateway_DisconnectFlipsOfflineAndAnnounces(t *testing.T) {
	g, profiles, bus := newPresenceGateway()
	ctx := context.Background()

	userID := uuid.New()
	roomID := uuid.New()
	profiles.put(domain.Profile{ID: userID, Username: "alice"})

	client := NewClient(nil, userID, "alice", testLogger())
	g.hub.Register(client)
	client.TrackRoom(roomID)
	require.NoError(t, g.presence.Connected(ctx, userID))

	g.disconnect(ctx, client)

	assert.False(t, profiles.isOnline(userID))
	assert.Nil(t, g.hub.ClientForUser(userID))

	records := bus.published()
	require.Len(t, records, 1)
	assert.Equal(t, events.RoomChannel(roomID), records[0].Channel)
	assert.Equal(t, events.EventUserOffline, records[0].Event)
}

func TestGateway_StaleTeardownAfterReconnectKeepsUserOnline(t *testing.T) {
	g, profiles, bus := newPresenceGateway()
	ctx := context.Background()

	userID := uuid.New()
	roomID := uuid.New()
	profiles.put(domain.Profile{ID: userID, Username: "alice"})

	old := NewClient(nil, userID, "alice", testLogger())
	g.hub.Register(old)
	old.TrackRoom(roomID)
	require.NoError(t, g.presence.Connected(ctx, userID))

	// The reconnect displaces the old connection and refreshes presence.
	replacement := NewClient(nil, userID, "alice", testLogger())
	g.hub.Register(replacement)
	replacement.TrackRoom(roomID)
	require.NoError(t, g.presence.Connected(ctx, userID))

	// The displaced connection's read loop returns and tears itself down.
	g.disconnect(ctx, old)

	assert.True(t, profiles.isOnline(userID), "the replaced connection must not flip a live user offline")
	assert.Empty(t, bus.published(), "no offline announcement while the user is still connected")
	assert.Equal(t, replacement, g.hub.ClientForUser(userID))

	// The real disconnect still runs the full teardown.
	g.disconnect(ctx, replacement)

	assert.False(t, profiles.isOnline(userID))
	require.Len(t, bus.published(), 1)
	assert.Equal(t, events.EventUserOffline, bus.published()[0].Event)
}
