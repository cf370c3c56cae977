package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vctt94/pokerroom/pkg/poker"
	"github.com/vctt94/pokerroom/pkg/protocol"
	"github.com/vctt94/pokerroom/pkg/utils"
)

// maxFeed is the number of event lines kept on screen.
const maxFeed = 8

type actionOption string

const (
	optionFold  actionOption = "Fold"
	optionCheck actionOption = "Check"
	optionCall  actionOption = "Call"
	optionRaise actionOption = "Raise"
)

// PokerUI is the bubbletea model of a room.
type PokerUI struct {
	ctx      context.Context
	playerID string
	name     string
	dispatch *CommandDispatcher

	view *protocol.TableView
	feed []string

	selected     int
	raising      bool
	raiseInput   string
	message      string
	err          error
	disconnected bool
}

// NewPokerUI creates the model for playerID. name is used when joining.
func NewPokerUI(ctx context.Context, room Room, playerID, name string) *PokerUI {
	return &PokerUI{
		ctx:      ctx,
		playerID: playerID,
		name:     name,
		dispatch: NewCommandDispatcher(ctx, room),
	}
}

func (ui *PokerUI) Init() tea.Cmd {
	return tea.Batch(ui.dispatch.stateCmd(), ui.dispatch.listenCmd())
}

func (ui *PokerUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return ui, ui.handleKey(msg)

	case updateMsg:
		for _, ev := range msg.msg.Events {
			ui.pushFeed(DescribeEvent(ev))
		}
		ui.setView(msg.msg.State)
		return ui, ui.dispatch.listenCmd()

	case replyMsg:
		if msg.err != nil {
			ui.err = fmt.Errorf("%s: %w", msg.what, msg.err)
			return ui, nil
		}
		ui.err = nil
		ui.setView(msg.view)
		if msg.what != "state" {
			ui.message = fmt.Sprintf("%s done", msg.what)
		}
		return ui, nil

	case disconnectedMsg:
		ui.disconnected = true
		return ui, tea.Quit
	}
	return ui, nil
}

// setView keeps the newest view. Pushed updates and replies can arrive out
// of order.
func (ui *PokerUI) setView(v *protocol.TableView) {
	if v == nil {
		return
	}
	if ui.view != nil && v.Version < ui.view.Version {
		return
	}
	ui.view = v
	opts := ui.actionOptions()
	if ui.selected >= len(opts) {
		ui.selected = 0
	}
}

func (ui *PokerUI) pushFeed(line string) {
	ui.feed = append(ui.feed, line)
	if len(ui.feed) > maxFeed {
		ui.feed = ui.feed[len(ui.feed)-maxFeed:]
	}
}

func (ui *PokerUI) me() *protocol.PlayerView {
	if ui.view == nil {
		return nil
	}
	for i := range ui.view.Players {
		if ui.view.Players[i].ID == ui.playerID {
			return &ui.view.Players[i]
		}
	}
	return nil
}

func (ui *PokerUI) myTurn() bool {
	return ui.view != nil && ui.view.Phase.IsBetting() && ui.view.CurrentPlayer == ui.playerID
}

// actionOptions lists the actions legal for the player right now.
func (ui *PokerUI) actionOptions() []actionOption {
	if !ui.myTurn() {
		return nil
	}
	me := ui.me()
	if me == nil {
		return nil
	}
	opts := []actionOption{optionFold}
	if me.CurrentBet == ui.view.CurrentBet {
		opts = append(opts, optionCheck)
	} else {
		opts = append(opts, optionCall)
	}
	if me.CurrentBet+me.Balance >= ui.view.MinRaiseTo {
		opts = append(opts, optionRaise)
	}
	return opts
}

// DescribeEvent renders an event as one line of the feed.
func DescribeEvent(ev poker.Event) string {
	who := ev.PlayerID
	switch ev.Type {
	case poker.EventHandStarted:
		return fmt.Sprintf("Hand #%d started", ev.HandNumber)
	case poker.EventBlindPosted:
		return fmt.Sprintf("%s posts %s blind %d", who, ev.Message, ev.Amount)
	case poker.EventFold, poker.EventCheck:
		return fmt.Sprintf("%s %ss", who, ev.Type)
	case poker.EventCall:
		return fmt.Sprintf("%s calls %d", who, ev.Amount)
	case poker.EventRaise:
		return fmt.Sprintf("%s %s", who, ev.Message)
	case poker.EventTimeout:
		return fmt.Sprintf("%s ran out of time", who)
	case poker.EventPhaseAdvanced:
		return fmt.Sprintf("%s: %s", ev.Phase, utils.FormatCards(ev.Cards))
	case poker.EventHandEnded:
		s := fmt.Sprintf("Hand #%d ended:", ev.HandNumber)
		for _, a := range ev.Awards {
			s += fmt.Sprintf(" %s %s", a.PlayerID, utils.FormatChips(a.Amount, true))
		}
		return s
	case poker.EventCardsRevealed:
		return fmt.Sprintf("%s shows %s", who, utils.FormatCards(ev.Cards))
	case poker.EventPlayerJoined:
		return fmt.Sprintf("%s joins with %d", ev.Message, ev.Amount)
	case poker.EventPlayerLeft:
		return fmt.Sprintf("%s leaves with %d", ev.Message, ev.Amount)
	}
	if ev.Message != "" {
		return fmt.Sprintf("%s: %s", ev.Type, ev.Message)
	}
	return string(ev.Type)
}

// Run shows the room UI until the user quits or the connection ends.
func Run(ctx context.Context, room Room, playerID, name string) error {
	p := tea.NewProgram(NewPokerUI(ctx, room, playerID, name), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
