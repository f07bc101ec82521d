package watch

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nidvy/host/internal/events"
)

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	token  string

	width  int
	height int

	status   StatusState
	eventLog []events.Event
	lastID   int64

	ticker   Ticker
	activity Activity
	theme    Theme

	hubEvents chan events.Event

	lastError string
}

// New creates a watch model for the status API at apiURL. token may be empty.
func New(apiURL, token string) *Model {
	return &Model{
		apiURL:    apiURL,
		token:     token,
		eventLog:  make([]events.Event, 0),
		hubEvents: make(chan events.Event, 100),
		ticker:    NewTicker(),
		theme:     NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.token, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchStatus(m.apiURL, m.token) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.ticker.Tick()
		m.activity.Decay(time.Time(msg))
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)
		if e.ID > m.lastID {
			m.lastID = e.ID
		}

		// Newest first.
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > eventLogSize {
			m.eventLog = m.eventLog[:eventLogSize]
		}
		if e.Type == events.TypeCommandDispatched {
			m.activity.OnEvent(time.Now())
		}

		m.status.Connected = true
		m.lastError = ""
		return m, receiveNextEvent(m.hubEvents)

	case statusMsg:
		m.status = StatusState{
			SessionID:      msg.SessionID,
			Running:        msg.Running,
			Dispatched:     msg.Dispatched,
			Errors:         msg.Errors,
			WindowActive:   msg.WindowActive,
			WindowsCreated: msg.WindowsCreated,
			QueueDepth:     msg.QueueDepth,
			Dropped:        msg.Dropped,
			UptimeSeconds:  msg.UptimeSeconds,
			Connected:      true,
			LastCheck:      time.Now(),
		}
		m.lastError = ""
		return m, tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
			return fetchStatus(m.apiURL, m.token)
		})

	case streamClosedMsg:
		m.status.Connected = false
		m.lastError = "event stream closed, reconnecting..."
		if msg.lastID > m.lastID {
			m.lastID = msg.lastID
		}
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.token, m.lastID, m.hubEvents)

	case errMsg:
		m.status.Connected = false
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchStatus(m.apiURL, m.token)
		})
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to host..."
	}

	parts := []string{
		renderHeader(m.status, m.ticker, m.activity, m.theme, m.width),
		renderEventStream(m.eventLog, m.theme, m.width),
	}
	if m.lastError != "" {
		parts = append(parts, m.theme.Fail.Render(" ⚠ "+m.lastError))
	}
	parts = append(parts, m.theme.Muted.Render(" [q] Quit"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
