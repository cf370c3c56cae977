package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vctt94/pokerroom/pkg/poker"
	"github.com/vctt94/pokerroom/pkg/protocol"
)

func (ui *PokerUI) View() string {
	var b strings.Builder
	if ui.view == nil {
		b.WriteString(TitleStyle.Render("Connecting...") + "\n")
		b.WriteString(ui.renderStatus())
		return b.String()
	}
	v := ui.view

	b.WriteString(TitleStyle.Render(fmt.Sprintf("Room %s | blinds %d/%d | hand #%d", v.RoomID, v.SmallBlind, v.BigBlind, v.HandNumber)))
	b.WriteString("\n")
	b.WriteString(ui.renderGameStatusHeader())
	b.WriteString("\n")

	board := lipgloss.JoinHorizontal(lipgloss.Center,
		renderCards(v.CommunityCards, 5),
		PotStyle.Render(fmt.Sprintf("POT %d", v.Pot)),
	)
	b.WriteString(board + "\n")
	b.WriteString(ui.renderPlayers() + "\n")

	if me := ui.me(); me != nil {
		b.WriteString(gameInfoStyle.Render(fmt.Sprintf("You: %s | chips %d | bet %d | to call %d",
			me.Name, me.Balance, me.CurrentBet, max(0, v.CurrentBet-me.CurrentBet))))
		b.WriteString("\n")
	}
	if actions := ui.renderActionButtons(); actions != "" {
		b.WriteString(actions + "\n")
	}
	if ui.raising {
		b.WriteString(fmt.Sprintf("Raise by (min %d): %s_\n", v.MinRaiseTo-ui.myBet(), ui.raiseInput))
	}
	if lh := v.LastHand; lh != nil {
		b.WriteString(renderLastHand(lh) + "\n")
	}
	for _, line := range ui.feed {
		b.WriteString(logStyle.Render(line) + "\n")
	}
	b.WriteString(ui.renderStatus())
	b.WriteString(HelpStyle.Render("j join • l leave • s start • ←/→ + enter act • r reveal • u refresh • q quit"))
	return b.String()
}

func (ui *PokerUI) myBet() int64 {
	if me := ui.me(); me != nil {
		return me.CurrentBet
	}
	return 0
}

func (ui *PokerUI) renderStatus() string {
	switch {
	case ui.disconnected:
		return ErrorStyle.Render("Disconnected") + "\n"
	case ui.err != nil:
		return ErrorStyle.Render(ui.err.Error()) + "\n"
	case ui.message != "":
		return HelpStyle.Render(ui.message) + "\n"
	}
	return ""
}

// renderGameStatusHeader shows whose turn it is.
func (ui *PokerUI) renderGameStatusHeader() string {
	v := ui.view
	switch {
	case !v.Phase.IsBetting():
		return HelpStyle.Render(fmt.Sprintf("Waiting (%d players seated)", len(v.Players)))
	case ui.myTurn():
		return TitleStyle.Render("YOUR TURN")
	}
	name := v.CurrentPlayer
	for _, p := range v.Players {
		if p.ID == v.CurrentPlayer {
			name = p.Name
		}
	}
	return HelpStyle.Render(fmt.Sprintf("%s: waiting for %s", v.Phase, name))
}

func (ui *PokerUI) renderPlayers() string {
	v := ui.view
	if len(v.Players) == 0 {
		return HelpStyle.Render("No players seated")
	}
	boxes := make([]string, 0, len(v.Players))
	for _, p := range v.Players {
		var style lipgloss.Style
		switch {
		case p.ID == v.CurrentPlayer && v.Phase.IsBetting():
			style = CurrentPlayerStyle
		case p.ID == ui.playerID:
			style = YourPlayerStyle
		case p.State == "FOLDED" || p.State == "SITTING_OUT":
			style = FoldedPlayerStyle
		default:
			style = PlayerBoxStyle
		}
		boxes = append(boxes, style.Render(formatPlayerInfo(p)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func formatPlayerInfo(p protocol.PlayerView) string {
	name := p.Name
	if len(name) > 12 {
		name = name[:12] + "..."
	}
	var badges []string
	if p.IsDealer {
		badges = append(badges, "D")
	}
	if p.IsSmallBlind {
		badges = append(badges, "SB")
	}
	if p.IsBigBlind {
		badges = append(badges, "BB")
	}
	lines := []string{
		fmt.Sprintf("%d %s %s", p.Seat, name, strings.Join(badges, " ")),
		fmt.Sprintf("chips %d", p.Balance),
		fmt.Sprintf("bet %d", p.CurrentBet),
		strings.ToLower(p.State),
	}
	switch {
	case len(p.HoleCards) > 0:
		lines = append(lines, cardText(p.HoleCards))
	case p.CardCount > 0:
		lines = append(lines, strings.Repeat("🂠 ", p.CardCount))
	}
	return strings.Join(lines, "\n")
}

func cardText(cards []poker.Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// renderCards draws cards padded with face-down slots up to n.
func renderCards(cards []poker.Card, n int) string {
	elems := make([]string, 0, n)
	for _, c := range cards {
		style := CardStyle
		if c.Suit() == poker.Hearts || c.Suit() == poker.Diamonds {
			style = RedCardStyle
		}
		elems = append(elems, style.Render(c.String()))
	}
	for len(elems) < n {
		elems = append(elems, CardStyle.Render("🂠"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, elems...)
}

// renderActionButtons draws the legal actions when it is the player's turn.
func (ui *PokerUI) renderActionButtons() string {
	opts := ui.actionOptions()
	if len(opts) == 0 {
		return ""
	}
	buttons := make([]string, len(opts))
	for i, o := range opts {
		label := string(o)
		if o == optionCall {
			label = fmt.Sprintf("Call %d", ui.view.CurrentBet-ui.myBet())
		}
		if i == ui.selected {
			buttons[i] = SelectedActionStyle.Render(label)
		} else {
			buttons[i] = ActionButtonStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, buttons...)
}

func renderLastHand(r *poker.HandResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Last hand #%d:", r.HandNumber)
	for _, a := range r.Awards {
		fmt.Fprintf(&b, " %s won %d", a.PlayerID, a.Amount)
	}
	for _, s := range r.Showdown {
		fmt.Fprintf(&b, "\n  %s %s", s.PlayerID, cardText(s.HoleCards))
		if s.Description != "" {
			fmt.Fprintf(&b, " (%s)", s.Description)
		}
	}
	for id, cards := range r.Revealed {
		fmt.Fprintf(&b, "\n  %s shows %s", id, cardText(cards))
	}
	if len(r.WinnerCards) > 0 && len(r.Revealed) == 0 {
		fmt.Fprintf(&b, "\n  your cards: %s (press r to show)", cardText(r.WinnerCards))
	}
	return gameInfoStyle.Render(b.String())
}
