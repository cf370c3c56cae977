// Package protocol defines the JSON messages exchanged over the room
// websocket and the per-player view of a table.
package protocol

import (
	"time"

	"github.com/vctt94/pokerroom/pkg/poker"
)

// MessageType identifies a websocket message.
type MessageType string

// Client to server messages
const (
	MsgJoin   MessageType = "join"
	MsgLeave  MessageType = "leave"
	MsgStart  MessageType = "start"
	MsgAct    MessageType = "act"
	MsgReveal MessageType = "reveal"
	MsgState  MessageType = "state"
)

// Server to client messages
const (
	// MsgUpdate carries the events of an intent and the resulting view.
	MsgUpdate MessageType = "update"
	// MsgReply answers a client message; Error is set when it was rejected.
	MsgReply MessageType = "reply"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// ClientMessage is sent by a client. The room and player are fixed by the
// connection.
type ClientMessage struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`

	// join
	Name  string `json:"name,omitempty"`
	BuyIn int64  `json:"buy_in,omitempty"`

	// act
	Action string `json:"action,omitempty"`
	Amount int64  `json:"amount,omitempty"`
}

// ServerMessage is sent by the server.
type ServerMessage struct {
	Type      MessageType   `json:"type"`
	RequestID string        `json:"request_id,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Events    []poker.Event `json:"events,omitempty"`
	State     *TableView    `json:"state,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
