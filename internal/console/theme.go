package console

import "github.com/charmbracelet/lipgloss"

// Theme keeps the console's colours in one place.
type Theme struct {
	StatusOK     lipgloss.Style
	StatusFailed lipgloss.Style

	Border lipgloss.Style
	Title  lipgloss.Style
	Prompt lipgloss.Style
	Dim    lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		StatusOK:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StatusFailed: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(purple).
			Padding(0, 1),
		Prompt: lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}
