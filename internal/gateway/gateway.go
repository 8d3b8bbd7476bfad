package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatrelay/internal/auth"
	"chatrelay/internal/domain"
	"chatrelay/internal/events"
	"chatrelay/internal/services"
	"chatrelay/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Auth rides on the bearer token, not on the Origin header.
		return true
	},
}

// Gateway owns the WebSocket surface: it authenticates connections, keeps
// their subscriptions in the hub, and dispatches inbound frames to the
// service layer.
type Gateway struct {
	hub        *Hub
	bus        events.Bus
	verifier   *auth.Verifier
	dispatcher *Dispatcher

	profiles      *services.ProfileService
	presence      *services.PresenceService
	rooms         *services.RoomService
	conversations *services.ConversationService
	messages      *services.MessageService
	uploads       *services.UploadService
	avatars       *services.AvatarService

	log *logger.Logger
}

func New(
	hub *Hub,
	bus events.Bus,
	verifier *auth.Verifier,
	profiles *services.ProfileService,
	presence *services.PresenceService,
	rooms *services.RoomService,
	conversations *services.ConversationService,
	messages *services.MessageService,
	uploads *services.UploadService,
	avatars *services.AvatarService,
	log *logger.Logger,
) *Gateway {
	g := &Gateway{
		hub:           hub,
		bus:           bus,
		verifier:      verifier,
		profiles:      profiles,
		presence:      presence,
		rooms:         rooms,
		conversations: conversations,
		messages:      messages,
		uploads:       uploads,
		avatars:       avatars,
		log:           log,
	}
	g.dispatcher = g.buildDispatcher()
	return g
}

func (g *Gateway) buildDispatcher() *Dispatcher {
	d := NewDispatcher(g.log)

	d.Handle("get_profile", g.handleGetProfile)
	d.Handle("update_profile", g.handleUpdateProfile)
	d.Handle("search_users", g.handleSearchUsers)

	d.Handle("create_room", g.handleCreateRoom)
	d.Handle("search_rooms", g.handleSearchRooms)
	d.Handle("join_room", g.handleJoinRoom)
	d.Handle("leave_room", g.handleLeaveRoom)
	d.Handle("get_rooms", g.handleGetRooms)
	d.Handle("delete_room", g.handleDeleteRoom)
	d.Handle("get_user_role_in_room", g.handleGetUserRole)
	d.Handle("update_room", g.handleUpdateRoom)
	d.Handle("get_room_members", g.handleGetRoomMembers)
	d.Handle("invite_to_room", g.handleInviteToRoom)

	d.Handle("start_conversation", g.handleStartConversation)
	d.Handle("get_conversations", g.handleGetConversations)
	d.Handle("delete_conversation", g.handleDeleteConversation)

	d.Handle("send_message", g.handleSendMessage)
	d.Handle("get_messages", g.handleGetMessages)
	d.Handle("clear_all_messages", g.handleClearAllMessages)

	d.Handle("get_upload_url", g.handleGetUploadURL)
	d.Handle("generate_avatar", g.handleGenerateAvatar)
	d.Handle("delete_account", g.handleDeleteAccount)

	d.HandleFireAndForget("typing", g.handleTyping)

	return d
}

// Connect is the gin handler for the WebSocket endpoint. Authentication
// happens before the upgrade so a bad credential is an HTTP 401, not a
// short-lived socket.
func (g *Gateway) Connect(c *gin.Context) {
	credential := c.Query("token")
	if credential == "" {
		credential = bearerToken(c.GetHeader("Authorization"))
	}

	userID, err := g.verifier.Verify(credential)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
		return
	}

	profile, err := g.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		// A valid token without a profile row is fatal; the identity
		// service and the store disagree about this user.
		g.log.Warnf("authenticated user %s has no profile: %v", userID, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "profile not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Errorf("websocket upgrade failed for user %s: %v", userID, err)
		return
	}

	client := NewClient(conn, userID, profile.Username, g.log)
	g.hub.Register(client)
	go client.WriteLoop()

	ctx := context.WithValue(context.Background(), logger.ConnIdKey, client.ConnID)
	ctx = context.WithValue(ctx, logger.UserIdKey, userID.String())

	if err := g.presence.Connected(ctx, userID); err != nil {
		g.log.ErrorCtx(ctx, "presence online update failed", zap.Error(err))
	}

	rooms, err := g.rooms.ListUserRooms(ctx, userID)
	if err != nil {
		g.log.ErrorCtx(ctx, "loading rooms failed", zap.Error(err))
		rooms = nil
	}
	for _, room := range rooms {
		g.hub.Subscribe(client, events.RoomChannel(room.ID))
		client.TrackRoom(room.ID)
	}
	g.hub.Subscribe(client, events.UserChannel(userID))

	if payload, err := events.Marshal(events.EventAuthenticated, authenticatedPush{
		UserID:  userID,
		Profile: profile,
		Rooms:   rooms,
	}); err == nil {
		client.Enqueue(payload)
	}

	g.log.InfoCtx(ctx, "websocket connected")
	g.readLoop(ctx, client)
	g.disconnect(ctx, client)
}

// readLoop pumps inbound frames through the dispatcher, one at a time per
// connection. Returns when the socket closes.
func (g *Gateway) readLoop(ctx context.Context, client *Client) {
	conn := client.conn
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.log.Warnf("unexpected close for user %s: %v", client.UserID, err)
			}
			return
		}

		if resp := g.dispatcher.Dispatch(ctx, client, raw); resp != nil {
			client.Enqueue(resp)
		}
	}
}

// disconnect runs the teardown for a closed connection: presence flip,
// best-effort offline announcements, hub eviction. A connection that was
// displaced by a reconnect only drops itself; the replacement owns the
// presence state and the user must stay online.
func (g *Gateway) disconnect(ctx context.Context, client *Client) {
	replacement := g.hub.ClientForUser(client.UserID)
	g.hub.Unregister(client)

	if replacement != nil && replacement != client {
		g.log.InfoCtx(ctx, "displaced websocket torn down")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := g.presence.Disconnected(ctx, client.UserID); err != nil {
		g.log.ErrorCtx(ctx, "presence offline update failed", zap.Error(err))
	}

	offline := userOfflinePush{UserID: client.UserID, Username: client.Username}
	for _, roomID := range client.JoinedRooms() {
		if err := g.bus.Publish(ctx, events.RoomChannel(roomID), events.EventUserOffline, offline); err != nil {
			g.log.Warnf("user_offline publish to room %s failed: %v", roomID, err)
		}
	}

	g.log.InfoCtx(ctx, "websocket disconnected")
}

// subscribeConversation attaches a live connection to a conversation channel.
// Subscription is session-lazy: it happens when the connection itself touches
// the conversation, not at login.
func (g *Gateway) subscribeConversation(client *Client, conversation domain.Conversation) {
	g.hub.Subscribe(client, events.ConversationChannel(conversation.ID))
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
