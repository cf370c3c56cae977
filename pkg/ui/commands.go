package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vctt94/pokerroom/pkg/protocol"
)

// requestTimeout bounds a single request made from the UI.
const requestTimeout = 10 * time.Second

// Room is the part of the room client driven by the UI.
type Room interface {
	Join(ctx context.Context, name string, buyIn int64) (*protocol.TableView, error)
	Leave(ctx context.Context) (*protocol.TableView, error)
	Start(ctx context.Context) (*protocol.TableView, error)
	Act(ctx context.Context, action string, amount int64) (*protocol.TableView, error)
	Reveal(ctx context.Context) (*protocol.TableView, error)
	State(ctx context.Context) (*protocol.TableView, error)
	Messages() <-chan *protocol.ServerMessage
}

// updateMsg is a message pushed by the server.
type updateMsg struct {
	msg *protocol.ServerMessage
}

// replyMsg is the outcome of a request.
type replyMsg struct {
	what string
	view *protocol.TableView
	err  error
}

// disconnectedMsg is sent when the connection ends.
type disconnectedMsg struct{}

// CommandDispatcher turns user intents into tea commands.
type CommandDispatcher struct {
	ctx  context.Context
	room Room
}

func NewCommandDispatcher(ctx context.Context, room Room) *CommandDispatcher {
	return &CommandDispatcher{ctx: ctx, room: room}
}

func (d *CommandDispatcher) request(what string, f func(ctx context.Context) (*protocol.TableView, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(d.ctx, requestTimeout)
		defer cancel()
		view, err := f(ctx)
		return replyMsg{what: what, view: view, err: err}
	}
}

// listenCmd waits for the next pushed message.
func (d *CommandDispatcher) listenCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg, ok := <-d.room.Messages():
			if !ok {
				return disconnectedMsg{}
			}
			return updateMsg{msg: msg}
		case <-d.ctx.Done():
			return disconnectedMsg{}
		}
	}
}

func (d *CommandDispatcher) stateCmd() tea.Cmd {
	return d.request("state", d.room.State)
}

func (d *CommandDispatcher) joinCmd(name string) tea.Cmd {
	return d.request("join", func(ctx context.Context) (*protocol.TableView, error) {
		return d.room.Join(ctx, name, 0)
	})
}

func (d *CommandDispatcher) leaveCmd() tea.Cmd {
	return d.request("leave", d.room.Leave)
}

func (d *CommandDispatcher) startCmd() tea.Cmd {
	return d.request("start", d.room.Start)
}

func (d *CommandDispatcher) revealCmd() tea.Cmd {
	return d.request("reveal", d.room.Reveal)
}

func (d *CommandDispatcher) actCmd(action string, amount int64) tea.Cmd {
	return d.request(action, func(ctx context.Context) (*protocol.TableView, error) {
		return d.room.Act(ctx, action, amount)
	})
}
