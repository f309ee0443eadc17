package cli

import "github.com/charmbracelet/lipgloss"

// Output styles shared by the commands.
var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	scoreStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	excerptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			PaddingLeft(4)

	answerStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)
