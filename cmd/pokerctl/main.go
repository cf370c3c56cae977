package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/decred/slog"

	"github.com/vctt94/pokerroom/pkg/client"
	"github.com/vctt94/pokerroom/pkg/logging"
	"github.com/vctt94/pokerroom/pkg/poker"
	"github.com/vctt94/pokerroom/pkg/protocol"
	"github.com/vctt94/pokerroom/pkg/ui"
	"github.com/vctt94/pokerroom/pkg/utils"
)

// Globals are the flags shared by every command.
type Globals struct {
	DataDir    string        `name:"datadir" help:"Directory holding the player identity" type:"path"`
	URL        string        `name:"url" help:"Server URL" default:"http://127.0.0.1:8088"`
	Room       string        `help:"Room ID" default:"main"`
	ID         string        `name:"id" help:"Explicit player ID (defaults to the one stored in datadir)"`
	DebugLevel string        `name:"debuglevel" help:"Logging level" default:"warn"`
	Timeout    time.Duration `help:"Time to wait for a reply" default:"10s"`
}

// CLI lists the pokerctl commands.
type CLI struct {
	Globals

	Whoami  IDCmd         `cmd:"" name:"id" help:"Show player ID"`
	Join    JoinCmd       `cmd:"" help:"Take a seat"`
	Leave   LeaveCmd      `cmd:"" help:"Leave the room"`
	Start   StartCmd      `cmd:"" help:"Deal a new hand"`
	Act     ActCmd        `cmd:"" help:"Perform an action: fold, check, call or raise N"`
	Reveal  RevealCmd     `cmd:"" help:"Show your cards after winning a hand by fold"`
	State   StateCmd      `cmd:"" help:"Print the room state (JSON)"`
	Watch   WatchCmd      `cmd:"" help:"Stream room updates"`
	Play    PlayCmd       `cmd:"" help:"Interactive terminal table"`
	Auto    AutoplayCmd   `cmd:"" name:"autoplay-one-hand" help:"Check or call until the current hand ends"`
	Winners LastWinnerCmd `cmd:"" name:"last-winners" help:"Print last hand winners (JSON)"`
}

// session is the connection shared by the commands.
type session struct {
	cfg *client.AppConfig
	log slog.Logger
	cli *client.Client
}

func (g *Globals) connect(ctx context.Context) (*session, error) {
	datadir := g.DataDir
	if datadir == "" {
		datadir = client.DefaultDataDir("pokerctl")
	}
	playerID := g.ID
	if playerID == "" {
		id, err := client.LoadPlayerID(datadir)
		if err != nil {
			return nil, err
		}
		playerID = id
	}
	cfg := &client.AppConfig{
		DataDir:   datadir,
		ServerURL: g.URL,
		RoomID:    g.Room,
		PlayerID:  playerID,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logBackend, err := logging.NewLogBackend(logging.LogConfig{
		DebugLevel: g.DebugLevel,
		Output:     os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	log := logBackend.Logger("CTL")

	c, err := client.Dial(ctx, cfg.ServerURL, cfg.RoomID, cfg.PlayerID, log)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log, cli: c}, nil
}

func (g *Globals) withSession(f func(ctx context.Context, s *session) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), g.Timeout)
	defer cancel()
	s, err := g.connect(ctx)
	if err != nil {
		return err
	}
	defer s.cli.Close()
	return f(ctx, s)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type IDCmd struct{}

func (c *IDCmd) Run(g *Globals) error {
	if g.ID != "" {
		fmt.Println(g.ID)
		return nil
	}
	datadir := g.DataDir
	if datadir == "" {
		datadir = client.DefaultDataDir("pokerctl")
	}
	id, err := client.LoadPlayerID(datadir)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

type JoinCmd struct {
	Name  string `help:"Display name"`
	BuyIn int64  `name:"buy-in" help:"Chips to sit down with (0 = room default)"`
}

func (c *JoinCmd) Run(g *Globals) error {
	return g.withSession(func(ctx context.Context, s *session) error {
		view, err := s.cli.Join(ctx, c.Name, c.BuyIn)
		if err != nil {
			return err
		}
		for _, p := range view.Players {
			if p.ID == s.cfg.PlayerID {
				fmt.Printf("Seated at %s, seat %d with %s chips\n", view.RoomID, p.Seat, utils.FormatChips(p.Balance, false))
			}
		}
		return nil
	})
}

type LeaveCmd struct{}

func (c *LeaveCmd) Run(g *Globals) error {
	return g.withSession(func(ctx context.Context, s *session) error {
		_, err := s.cli.Leave(ctx)
		return err
	})
}

type StartCmd struct{}

func (c *StartCmd) Run(g *Globals) error {
	return g.withSession(func(ctx context.Context, s *session) error {
		view, err := s.cli.Start(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Hand #%d started\n", view.HandNumber)
		return nil
	})
}

type ActCmd struct {
	Action string `arg:"" enum:"fold,check,call,raise" help:"fold, check, call or raise"`
	Amount int64  `arg:"" optional:"" help:"Chips to add for a raise"`
}

func (c *ActCmd) Run(g *Globals) error {
	if c.Action == string(poker.ActionRaise) && c.Amount <= 0 {
		return errors.New("raise requires a positive amount")
	}
	return g.withSession(func(ctx context.Context, s *session) error {
		view, err := s.cli.Act(ctx, c.Action, c.Amount)
		if err != nil {
			return err
		}
		printSummary(view)
		return nil
	})
}

type RevealCmd struct{}

func (c *RevealCmd) Run(g *Globals) error {
	return g.withSession(func(ctx context.Context, s *session) error {
		_, err := s.cli.Reveal(ctx)
		return err
	})
}

type StateCmd struct{}

func (c *StateCmd) Run(g *Globals) error {
	return g.withSession(func(ctx context.Context, s *session) error {
		view, err := s.cli.State(ctx)
		if err != nil {
			return err
		}
		return printJSON(view)
	})
}

type WatchCmd struct {
	JSON bool `help:"Print raw messages as JSON"`
}

func (c *WatchCmd) Run(g *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, g.Timeout)
	s, err := g.connect(dialCtx)
	dialCancel()
	if err != nil {
		return err
	}
	defer s.cli.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-s.cli.Messages():
			if !ok {
				return s.cli.Err()
			}
			if c.JSON {
				if err := printJSON(msg); err != nil {
					return err
				}
				continue
			}
			for _, ev := range msg.Events {
				fmt.Printf("#%d %s\n", ev.HandNumber, ui.DescribeEvent(ev))
			}
			if msg.State != nil && len(msg.Events) == 0 {
				printSummary(msg.State)
			}
		}
	}
}

type PlayCmd struct {
	Name string `help:"Display name used when joining"`
}

func (c *PlayCmd) Run(g *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, g.Timeout)
	s, err := g.connect(dialCtx)
	dialCancel()
	if err != nil {
		return err
	}
	defer s.cli.Close()
	return ui.Run(ctx, s.cli, s.cfg.PlayerID, c.Name)
}

// AutoplayCmd checks or calls whenever it is the player's turn until the
// current hand ends.
type AutoplayCmd struct {
	Wait time.Duration `help:"Maximum time to wait for the hand to end" default:"2m"`
}

func (c *AutoplayCmd) Run(g *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Wait)
	defer cancel()
	s, err := g.connect(ctx)
	if err != nil {
		return err
	}
	defer s.cli.Close()

	view, err := s.cli.State(ctx)
	if err != nil {
		return err
	}
	hand := view.HandNumber
	if !view.Phase.IsBetting() {
		return fmt.Errorf("no hand in progress")
	}

	// The version of the state last acted on; updates may arrive late.
	var acted int64 = -1
	for {
		if view.HandNumber != hand || !view.Phase.IsBetting() {
			return nil
		}
		if view.CurrentPlayer == s.cfg.PlayerID && view.Version > acted {
			acted = view.Version
			action := "check"
			for _, p := range view.Players {
				if p.ID == s.cfg.PlayerID && p.CurrentBet < view.CurrentBet {
					action = "call"
				}
			}
			if _, err := s.cli.Act(ctx, action, 0); err != nil {
				return err
			}
		}
		select {
		case msg, ok := <-s.cli.Messages():
			if !ok {
				return s.cli.Err()
			}
			if msg.State != nil && msg.State.Version >= view.Version {
				view = msg.State
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type LastWinnerCmd struct{}

func (c *LastWinnerCmd) Run(g *Globals) error {
	return g.withSession(func(ctx context.Context, s *session) error {
		view, err := s.cli.State(ctx)
		if err != nil {
			return err
		}
		out := struct {
			HandNumber int64         `json:"hand_number"`
			Winners    []string      `json:"winners"`
			Awards     []poker.Award `json:"awards"`
		}{Winners: []string{}, Awards: []poker.Award{}}
		if lh := view.LastHand; lh != nil {
			out.HandNumber = lh.HandNumber
			out.Winners = lh.Winners()
			out.Awards = lh.Awards
		}
		return printJSON(out)
	})
}

func printSummary(v *protocol.TableView) {
	fmt.Printf("Room %s hand #%d %s pot=%d bet=%d board=%s\n",
		v.RoomID, v.HandNumber, v.Phase, v.Pot, v.CurrentBet, utils.FormatCards(v.CommunityCards))
	for _, p := range v.Players {
		marker := " "
		if p.ID == v.CurrentPlayer {
			marker = ">"
		}
		line := fmt.Sprintf("%s %d %s chips=%d bet=%d %s", marker, p.Seat, p.Name, p.Balance, p.CurrentBet, p.State)
		if len(p.HoleCards) > 0 {
			line += " [" + utils.FormatCards(p.HoleCards) + "]"
		}
		fmt.Println(line)
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pokerctl"),
		kong.Description("Command line client for the poker room server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
