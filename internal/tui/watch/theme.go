// Package watch implements the host watch TUI: a live view of a running
// host's status API.
package watch

import "github.com/charmbracelet/lipgloss"

// Theme holds the styles shared by the header and the event stream.
type Theme struct {
	Ok   lipgloss.Style
	Warn lipgloss.Style
	Fail lipgloss.Style

	Panel   lipgloss.Style
	Heading lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style

	PulseOn  lipgloss.Style
	PulseOff lipgloss.Style
}

func NewDefaultTheme() Theme {
	fg := func(light, dark string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: light, Dark: dark})
	}

	return Theme{
		Ok:   fg("#1A7F37", "#3FB950"),
		Warn: fg("#9A6700", "#D29922"),
		Fail: fg("#CF222E", "#F85149"),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#58A6FF"}),
		Heading: fg("#24292F", "#F0F6FC").Bold(true).Padding(0, 1),
		Muted:   fg("#6E7781", "#8B949E"),
		Accent:  fg("#8250DF", "#BC8CFF"),

		PulseOn:  fg("#1A7F37", "#3FB950").Bold(true),
		PulseOff: fg("#D0D7DE", "#30363D"),
	}
}
