package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
	"github.com/vctt94/pokerroom/pkg/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	sendBufferSize = 256
)

// ErrConnectionClosed is returned when sending on a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// Connection is the websocket of one player in one room.
type Connection struct {
	conn     *websocket.Conn
	send     chan *protocol.ServerMessage
	roomID   string
	playerID string
	log      slog.Logger
	srv      *Server

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// NewConnection wraps an upgraded websocket.
func NewConnection(conn *websocket.Conn, srv *Server, roomID, playerID string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:     conn,
		send:     make(chan *protocol.ServerMessage, sendBufferSize),
		roomID:   roomID,
		playerID: playerID,
		log:      srv.wsLog,
		srv:      srv,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// Send queues a message for the client. A client that does not keep up is
// disconnected.
func (c *Connection) Send(msg *protocol.ServerMessage) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	select {
	case c.send <- msg:
		c.mu.Unlock()
		return nil
	default:
	}
	c.mu.Unlock()

	c.log.Warnf("Send buffer of %s in room %s full, closing connection", c.playerID, c.roomID)
	c.Close()
	return ErrConnectionClosed
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Errorf("Websocket error from %s in room %s: %v", c.playerID, c.roomID, err)
			}
			return
		}
		reply := c.srv.handleClientMessage(c.ctx, c.roomID, c.playerID, &msg)
		if err := c.Send(reply); err != nil {
			return
		}
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debugf("Failed to write to %s in room %s: %v", c.playerID, c.roomID, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
