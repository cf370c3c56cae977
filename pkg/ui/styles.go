package ui

import "github.com/charmbracelet/lipgloss"

var (
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true).MarginLeft(2)
	HelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Margin(1, 0)
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	gameInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("140")).Margin(1, 0)
	logStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)

// Card styles
var (
	CardStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("255")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1).
			Margin(0, 1).
			Border(lipgloss.RoundedBorder())

	RedCardStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("255")).
			Foreground(lipgloss.Color("196")).
			Padding(0, 1).
			Margin(0, 1).
			Border(lipgloss.RoundedBorder())
)

// Player styles
var (
	PlayerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	CurrentPlayerStyle = lipgloss.NewStyle().
				Border(lipgloss.ThickBorder()).
				BorderForeground(lipgloss.Color("46")).
				Padding(0, 1).
				Margin(0, 1)

	YourPlayerStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1).
			Margin(0, 1)

	FoldedPlayerStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("241")).
				Foreground(lipgloss.Color("241")).
				Padding(0, 1).
				Margin(0, 1)
)

// Game elements styles
var (
	PotStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Padding(0, 2).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("46")).
			Align(lipgloss.Center).
			Bold(true)

	ActionButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Padding(0, 2).
				Margin(0, 1).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39"))

	SelectedActionStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("39")).
				Foreground(lipgloss.Color("0")).
				Padding(0, 2).
				Margin(0, 1).
				Border(lipgloss.ThickBorder()).
				BorderForeground(lipgloss.Color("46")).
				Bold(true)
)
