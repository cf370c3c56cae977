package ui

import (
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
)

func (ui *PokerUI) handleKey(msg tea.KeyMsg) tea.Cmd {
	if ui.raising {
		return ui.handleRaiseInput(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return tea.Quit
	case "j":
		return ui.dispatch.joinCmd(ui.name)
	case "l":
		return ui.dispatch.leaveCmd()
	case "s":
		return ui.dispatch.startCmd()
	case "r":
		return ui.dispatch.revealCmd()
	case "u":
		return ui.dispatch.stateCmd()
	case "left", "h":
		if ui.selected > 0 {
			ui.selected--
		}
	case "right":
		if ui.selected < len(ui.actionOptions())-1 {
			ui.selected++
		}
	case "enter", " ":
		return ui.performSelected()
	}
	return nil
}

func (ui *PokerUI) performSelected() tea.Cmd {
	opts := ui.actionOptions()
	if ui.selected >= len(opts) {
		return nil
	}
	switch opts[ui.selected] {
	case optionFold:
		return ui.dispatch.actCmd("fold", 0)
	case optionCheck:
		return ui.dispatch.actCmd("check", 0)
	case optionCall:
		return ui.dispatch.actCmd("call", 0)
	case optionRaise:
		ui.raising = true
		ui.raiseInput = ""
		ui.message = ""
	}
	return nil
}

// handleRaiseInput edits the raise amount: the chips added on top of the
// player's current bet.
func (ui *PokerUI) handleRaiseInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		ui.raising = false
		ui.raiseInput = ""
		return nil
	case tea.KeyBackspace:
		if len(ui.raiseInput) > 0 {
			ui.raiseInput = ui.raiseInput[:len(ui.raiseInput)-1]
		}
		return nil
	case tea.KeyEnter:
		amount, err := strconv.ParseInt(ui.raiseInput, 10, 64)
		if err != nil || amount <= 0 {
			ui.message = "Enter a positive amount"
			return nil
		}
		ui.raising = false
		ui.raiseInput = ""
		return ui.dispatch.actCmd("raise", amount)
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			if r >= '0' && r <= '9' && len(ui.raiseInput) < 12 {
				ui.raiseInput += string(r)
			}
		}
	}
	return nil
}
