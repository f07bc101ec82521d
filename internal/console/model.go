// Package console is an interactive terminal controller for a host: type
// `method {params}` and the reply appears in the transcript.
package console

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nidvy/host/internal/protocol"
)

const maxTranscript = 500

// Model is the console's BubbleTea model.
type Model struct {
	caller Caller

	width  int
	height int

	input      textinput.Model
	viewport   viewport.Model
	transcript []string
	inFlight   int
	closed     bool

	theme Theme
}

func New(caller Caller) Model {
	ti := textinput.New()
	ti.Placeholder = `window.create {"title":"Nidvy"}`
	ti.Prompt = "> "
	ti.CharLimit = 0
	ti.Focus()

	theme := NewDefaultTheme()
	ti.PromptStyle = theme.Prompt

	return Model{
		caller:   caller,
		input:    ti,
		viewport: viewport.New(80, 10),
		theme:    theme,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitForStray(m.caller),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-4, 10)
		m.viewport.Height = max(msg.Height-7, 3)
		m.input.Width = max(msg.Width-6, 10)
		m.refresh()

	case responseMsg:
		m.inFlight--
		if msg.err != nil {
			m.appendLine(m.theme.StatusFailed.Render("! " + msg.err.Error()))
		} else {
			m.appendResponse(msg.resp)
		}
		return m, nil

	case strayMsg:
		m.appendResponse(protocol.Response(msg))
		return m, waitForStray(m.caller)

	case hostClosedMsg:
		m.closed = true
		m.appendLine(m.theme.StatusFailed.Render("! host output closed"))
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := m.input.Value()
	if strings.TrimSpace(line) == "" {
		return m, nil
	}
	m.input.Reset()

	method, params, err := ParseLine(line)
	if err != nil {
		m.appendLine(m.theme.StatusFailed.Render("! " + err.Error()))
		return m, nil
	}
	if m.closed {
		m.appendLine(m.theme.StatusFailed.Render("! host is gone, nothing sent"))
		return m, nil
	}

	sent := "→ " + method
	if params != nil {
		sent += " " + string(params)
	}
	m.appendLine(m.theme.Dim.Render(sent))
	m.inFlight++
	return m, call(m.caller, method, params)
}

func (m *Model) appendResponse(resp protocol.Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		b = []byte(fmt.Sprintf("%+v", resp))
	}
	style := m.theme.StatusOK
	if !resp.OK() {
		style = m.theme.StatusFailed
	}
	m.appendLine(style.Render("← " + string(b)))
}

func (m *Model) appendLine(line string) {
	m.transcript = append(m.transcript, line)
	if len(m.transcript) > maxTranscript {
		m.transcript = m.transcript[len(m.transcript)-maxTranscript:]
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.transcript, "\n"))
	m.viewport.GotoBottom()
}

// Transcript returns the lines shown so far, styled.
func (m Model) Transcript() []string {
	return append([]string(nil), m.transcript...)
}

func (m Model) View() string {
	status := m.theme.StatusOK.Render("connected")
	if m.closed {
		status = m.theme.StatusFailed.Render("disconnected")
	}
	if m.inFlight > 0 {
		status += m.theme.Dim.Render(fmt.Sprintf(" • %d pending", m.inFlight))
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center, m.theme.Title.Render("nidvy console"), " ", status)
	body := m.theme.Border.Render(m.viewport.View())
	help := m.theme.Dim.Render(" [enter] send • [pgup/pgdn] scroll • [esc] quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.input.View(), help)
}
