package ui

import (
	"chatwidget/internal/transcript"

	"github.com/charmbracelet/lipgloss"
)

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("24")).
			Padding(0, 1)
	searchMatchStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("16")).
				Background(lipgloss.Color("220"))

	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("28")).
			Padding(0, 1)
	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("255")).
				Background(lipgloss.Color("25")).
				Padding(0, 1)
	errorLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)

	userBodyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	assistantBodyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	errorBodyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Italic(true)
)

func roleLabelStyle(r transcript.Role) lipgloss.Style {
	switch r {
	case transcript.RoleUser:
		return userLabelStyle
	case transcript.RoleAssistant:
		return assistantLabelStyle
	default:
		return errorLabelStyle
	}
}

func roleBodyStyle(r transcript.Role) lipgloss.Style {
	switch r {
	case transcript.RoleUser:
		return userBodyStyle
	case transcript.RoleAssistant:
		return assistantBodyStyle
	default:
		return errorBodyStyle
	}
}

func panelStyle(active bool) lipgloss.Style {
	border := lipgloss.NormalBorder()
	if active {
		return lipgloss.NewStyle().
			Border(border, true).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
	}
	return lipgloss.NewStyle().
		Border(border, true).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
}
