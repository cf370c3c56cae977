package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"

	"github.com/vctt94/pokerroom/pkg/protocol"
)

// ErrClosed is returned when using a closed client.
var ErrClosed = errors.New("client closed")

// messageBuffer is the number of unread server messages kept.
const messageBuffer = 256

// Client is the websocket connection of one player to one room.
type Client struct {
	RoomID   string
	PlayerID string

	conn *websocket.Conn
	log  slog.Logger
	msgs chan *protocol.ServerMessage

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *protocol.ServerMessage
	reqSeq  atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
	readErr   error
}

// Dial connects to the room websocket of a server. serverURL may use the
// http, https, ws or wss scheme.
func Dial(ctx context.Context, serverURL, roomID, playerID string, log slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Disabled
	}
	u, err := wsURL(serverURL, roomID, playerID)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %v (%s)", u, err, resp.Status)
		}
		return nil, fmt.Errorf("failed to connect to %s: %v", u, err)
	}

	c := &Client{
		RoomID:   roomID,
		PlayerID: playerID,
		conn:     conn,
		log:      log,
		msgs:     make(chan *protocol.ServerMessage, messageBuffer),
		pending:  make(map[string]chan *protocol.ServerMessage),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func wsURL(serverURL, roomID, playerID string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	q := u.Query()
	q.Set("room", roomID)
	if playerID != "" {
		q.Set("player", playerID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Messages returns the updates pushed by the server, and the replies no
// Request is waiting for. The channel is closed when the connection ends.
func (c *Client) Messages() <-chan *protocol.ServerMessage {
	return c.msgs
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	<-c.done
	return c.readErr
}

// Send writes a message without waiting for the reply.
func (c *Client) Send(msg *protocol.ClientMessage) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Request sends a message and waits for its reply. A reply carrying an
// error is returned as a *ReplyError.
func (c *Client) Request(ctx context.Context, msg *protocol.ClientMessage) (*protocol.ServerMessage, error) {
	id := strconv.FormatInt(c.reqSeq.Add(1), 10)
	m := *msg
	m.RequestID = id

	ch := make(chan *protocol.ServerMessage, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.Send(&m); err != nil {
		return nil, err
	}

	select {
	case reply := <-ch:
		if reply.Error != "" {
			return reply, &ReplyError{Kind: reply.ErrorKind, Message: reply.Error}
		}
		return reply, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReplyError is an intent rejected by the server.
type ReplyError struct {
	Kind    string
	Message string
}

func (e *ReplyError) Error() string {
	return e.Message
}

func (c *Client) readLoop() {
	defer func() {
		close(c.msgs)
		c.closeOnce.Do(func() { close(c.done) })
	}()

	for {
		var msg protocol.ServerMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.readErr = err
			}
			return
		}

		if msg.Type == protocol.MsgReply && msg.RequestID != "" {
			c.mu.Lock()
			ch, ok := c.pending[msg.RequestID]
			c.mu.Unlock()
			if ok {
				ch <- &msg
				continue
			}
		}

		select {
		case c.msgs <- &msg:
		default:
			c.log.Warnf("Message buffer full, dropping %s message", msg.Type)
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// Join takes a seat. A zero buyIn takes the room default.
func (c *Client) Join(ctx context.Context, name string, buyIn int64) (*protocol.TableView, error) {
	return c.stateOf(c.Request(ctx, &protocol.ClientMessage{Type: protocol.MsgJoin, Name: name, BuyIn: buyIn}))
}

// Leave gives up the seat.
func (c *Client) Leave(ctx context.Context) (*protocol.TableView, error) {
	return c.stateOf(c.Request(ctx, &protocol.ClientMessage{Type: protocol.MsgLeave}))
}

// Start deals a new hand.
func (c *Client) Start(ctx context.Context) (*protocol.TableView, error) {
	return c.stateOf(c.Request(ctx, &protocol.ClientMessage{Type: protocol.MsgStart}))
}

// Act sends a betting action. amount is only used by raises and counts the
// chips added on top of the player's current bet.
func (c *Client) Act(ctx context.Context, action string, amount int64) (*protocol.TableView, error) {
	return c.stateOf(c.Request(ctx, &protocol.ClientMessage{Type: protocol.MsgAct, Action: action, Amount: amount}))
}

// Reveal shows the cards of a hand won by fold.
func (c *Client) Reveal(ctx context.Context) (*protocol.TableView, error) {
	return c.stateOf(c.Request(ctx, &protocol.ClientMessage{Type: protocol.MsgReveal}))
}

// State fetches the current view of the room.
func (c *Client) State(ctx context.Context) (*protocol.TableView, error) {
	return c.stateOf(c.Request(ctx, &protocol.ClientMessage{Type: protocol.MsgState}))
}

func (c *Client) stateOf(reply *protocol.ServerMessage, err error) (*protocol.TableView, error) {
	if err != nil {
		return nil, err
	}
	return reply.State, nil
}
