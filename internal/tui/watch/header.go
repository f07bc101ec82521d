package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StatusState is the last /status reading.
type StatusState struct {
	SessionID      string
	Running        bool
	Dispatched     uint64
	Errors         uint64
	WindowActive   bool
	WindowsCreated uint64
	QueueDepth     int
	Dropped        uint64
	UptimeSeconds  int64
	Connected      bool
	LastCheck      time.Time
}

func renderHeader(status StatusState, ticker Ticker, activity Activity, theme Theme, width int) string {
	innerWidth := width - 4

	stateText := theme.Ok.Render("RUNNING")
	switch {
	case !status.Connected:
		stateText = theme.Fail.Render("CONNECTING")
	case !status.Running:
		stateText = theme.Warn.Render("STOPPED")
	}

	window := theme.Muted.Render("no window")
	if status.WindowActive {
		window = theme.Ok.Render("window open")
	}

	lastEvent := "never"
	if !activity.LastEvent().IsZero() {
		lastEvent = fmt.Sprintf("%s ago", time.Since(activity.LastEvent()).Round(time.Second))
	}

	session := status.SessionID
	if len(session) > 8 {
		session = session[:8]
	}

	titleText := fmt.Sprintf(" NIDVY WATCH %s %s", theme.Accent.Render(ticker.Current()), theme.Muted.Render(session))
	clock := theme.Muted.Render(time.Now().Format("15:04:05"))
	pad := max(innerWidth-lipgloss.Width(titleText)-lipgloss.Width(clock)-4, 1)
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	statsLine := fmt.Sprintf(" %s  ⏱ %s  %s  Commands: %d  Failed: %d  Queue: %d  Dropped: %d",
		stateText,
		formatDuration(time.Duration(status.UptimeSeconds)*time.Second),
		window,
		status.Dispatched,
		status.Errors,
		status.QueueDepth,
		status.Dropped,
	)

	activityLine := fmt.Sprintf(" Last command: %s %s", lastEvent, activity.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, activityLine)
	return theme.Panel.Width(innerWidth).Render(content)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
