package gateway

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"chatrelay/internal/events"
	"chatrelay/pkg/logger"
)

// Hub tracks the live connections and the channel subscriptions used for
// fan-out. One user has at most one registered client; registering a second
// connection for the same user closes the first.
//
// The hub is purely in-memory. Cross-process delivery arrives through the
// events.Bridge, which calls Broadcast/BroadcastExcept with frames read off
// the bus.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	byUser   map[uuid.UUID]*Client
	channels map[string]map[*Client]struct{}
	log      *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		byUser:   make(map[uuid.UUID]*Client),
		channels: make(map[string]map[*Client]struct{}),
		log:      log,
	}
}

// Register adds a client. If the user already has a live connection the old
// one is evicted and closed; the newest connection always wins.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	previous := h.byUser[client.UserID]
	if previous != nil {
		h.dropLocked(previous)
	}
	h.clients[client] = struct{}{}
	h.byUser[client.UserID] = client
	h.mu.Unlock()

	if previous != nil {
		h.log.Infof("user %s reconnected, closing previous conn %s", client.UserID, previous.ConnID)
		previous.Close()
	}
}

// Unregister removes the client and all of its subscriptions. A client that
// was already displaced by a newer connection is a no-op for the user index.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	h.dropLocked(client)
	h.mu.Unlock()
	client.Close()
}

func (h *Hub) dropLocked(client *Client) {
	delete(h.clients, client)
	if h.byUser[client.UserID] == client {
		delete(h.byUser, client.UserID)
	}
	for name, subs := range h.channels {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, name)
		}
	}
}

// Subscribe adds the client to a broadcast channel. Idempotent.
func (h *Hub) Subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	subs := h.channels[channel]
	if subs == nil {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[client] = struct{}{}
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.channels[channel]
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

// DropChannel removes a channel and every subscription to it. Called from the
// event bridge when a room is deleted, so surviving members stop tracking a
// room that no longer exists.
func (h *Hub) DropChannel(channel string) {
	h.mu.Lock()
	subs := h.channels[channel]
	delete(h.channels, channel)
	clients := make([]*Client, 0, len(subs))
	for client := range subs {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	if rest, ok := strings.CutPrefix(channel, events.ChannelPrefixRoom); ok {
		if roomID, err := uuid.Parse(rest); err == nil {
			for _, client := range clients {
				client.ForgetRoom(roomID)
			}
		}
	}
}

// Broadcast fans a payload out to every subscriber of the channel.
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.BroadcastExcept(channel, payload, "")
}

// BroadcastExcept fans out like Broadcast but skips every connection of the
// named user. Used for typing events, which the sender must not echo back.
func (h *Hub) BroadcastExcept(channel string, payload []byte, excludeUserID string) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.channels[channel]))
	for client := range h.channels[channel] {
		if excludeUserID != "" && client.UserID.String() == excludeUserID {
			continue
		}
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.Enqueue(payload)
	}
}

// ClientForUser returns the user's live connection, or nil.
func (h *Hub) ClientForUser(userID uuid.UUID) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byUser[userID]
}

// SubscriberCount reports how many connections listen on a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Shutdown closes every connection. Used on server stop.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]struct{})
	h.byUser = make(map[uuid.UUID]*Client)
	h.channels = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}
