package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatrelay/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBufferSize = 256
)

// Client is one authenticated WebSocket connection. A user has at most one
// Client at a time; the hub closes the older connection when a newer one
// registers.
type Client struct {
	ConnID   string
	UserID   uuid.UUID
	Username string

	conn *websocket.Conn
	send chan []byte
	log  *logger.Logger

	mu        sync.Mutex
	rooms     map[uuid.UUID]struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(conn *websocket.Conn, userID uuid.UUID, username string, log *logger.Logger) *Client {
	return &Client{
		ConnID:   uuid.New().String(),
		UserID:   userID,
		Username: username,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		log:      log,
		rooms:    make(map[uuid.UUID]struct{}),
		closed:   make(chan struct{}),
	}
}

// Enqueue hands a payload to the write loop. A slow consumer whose buffer is
// full loses the frame rather than blocking the hub.
func (c *Client) Enqueue(payload []byte) {
	select {
	case <-c.closed:
	case c.send <- payload:
	default:
		c.log.Warnf("send buffer full, dropping frame for user %s conn %s", c.UserID, c.ConnID)
	}
}

// Close shuts the connection down exactly once. Safe to call from any
// goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// TrackRoom records a room the session has joined, so disconnect cleanup
// knows where to announce the departure.
func (c *Client) TrackRoom(roomID uuid.UUID) {
	c.mu.Lock()
	c.rooms[roomID] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) ForgetRoom(roomID uuid.UUID) {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}

func (c *Client) JoinedRooms() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uuid.UUID, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

// WriteLoop drains the send buffer onto the socket and keeps the connection
// alive with periodic pings. Runs until the connection or the client closes.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
