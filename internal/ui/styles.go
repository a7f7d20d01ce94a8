package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	ColorPrimary = lipgloss.Color("#14B8A6") // Teal
	ColorAccent  = lipgloss.Color("#A78BFA") // Lavender
	ColorSuccess = lipgloss.Color("#22C55E")
	ColorWarning = lipgloss.Color("#EAB308")
	ColorError   = lipgloss.Color("#F43F5E")
	ColorMuted   = lipgloss.Color("#71717A")
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary)

	Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	Error   = lipgloss.NewStyle().Foreground(ColorError)
	Info    = lipgloss.NewStyle().Foreground(ColorPrimary)
	Muted   = lipgloss.NewStyle().Foreground(ColorMuted)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(0, 1)

	CellStyle = lipgloss.NewStyle().Padding(0, 1)

	// Action verbs are colored by what they do to the object.
	CreateStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	AlterStyle  = lipgloss.NewStyle().Foreground(ColorWarning)
	DropStyle   = lipgloss.NewStyle().Foreground(ColorError)
	TypeStyle   = lipgloss.NewStyle().Foreground(ColorAccent)
)

// Status icons
const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "!"
	IconInfo    = "•"
	IconArrow   = "→"
)
