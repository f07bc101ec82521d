package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nidvy/host/internal/events"
)

const eventLogSize = 50

// dispatchInfo is the payload of a command.dispatched event.
type dispatchInfo struct {
	Seq        uint64  `json:"seq"`
	RequestID  *uint64 `json:"request_id"`
	Method     string  `json:"method"`
	Outcome    string  `json:"outcome"`
	ErrorKind  string  `json:"error_kind"`
	DurationUS int64   `json:"duration_us"`
}

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Heading.Render("EVENT STREAM"),
			theme.Muted.Render("  Waiting for events..."),
		)
		return theme.Panel.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= 12 {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Heading.Render("EVENT STREAM"),
		lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n")),
	)
	return theme.Panel.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Muted.Render(e.At.Format("15:04:05"))

	typeStyle := theme.Muted
	desc := extractEventDesc(e)
	switch e.Type {
	case events.TypeHostReady:
		typeStyle = theme.Accent
	case events.TypeTransportClosed:
		typeStyle = theme.Warn
	case events.TypeCommandDispatched:
		var d dispatchInfo
		if err := json.Unmarshal(e.Data, &d); err == nil && d.Outcome == "error" {
			typeStyle = theme.Fail
		} else {
			typeStyle = theme.Ok
		}
	}

	return fmt.Sprintf("%s %s %s", ts, typeStyle.Render(fmt.Sprintf("%-20s", e.Type)), desc)
}

func extractEventDesc(e events.Event) string {
	if e.Type == events.TypeCommandDispatched {
		var d dispatchInfo
		if err := json.Unmarshal(e.Data, &d); err == nil {
			parts := []string{fmt.Sprintf("#%d", d.Seq)}
			if d.RequestID != nil {
				parts = append(parts, fmt.Sprintf("[id %d]", *d.RequestID))
			}
			parts = append(parts, d.Method)
			if d.ErrorKind != "" {
				parts = append(parts, d.ErrorKind)
			}
			parts = append(parts, fmt.Sprintf("%dµs", d.DurationUS))
			return strings.Join(parts, " ")
		}
	}

	raw := string(e.Data)
	if len(raw) > 60 {
		raw = raw[:60] + "..."
	}
	return raw
}
