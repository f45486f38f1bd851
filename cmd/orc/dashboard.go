package main

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"orc/pkg/eventlog"
)

// Theme defines the visual styling for the orc dashboard.
type Theme struct {
	Primary lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Muted   lipgloss.Color
}

// DefaultTheme returns the default theme for orc dash.
func DefaultTheme() Theme {
	return Theme{
		Primary: lipgloss.Color("12"),  // Blue
		Success: lipgloss.Color("10"),  // Green
		Warning: lipgloss.Color("11"),  // Yellow
		Error:   lipgloss.Color("9"),   // Red
		Muted:   lipgloss.Color("240"), // Gray
	}
}

// tickMsg triggers a periodic data refresh.
type tickMsg time.Time

// statesMsg carries the latest per-worker states from the event log.
// nil means the event database is unavailable.
type statesMsg map[string]string

// eventsMsg carries recent events from the event log.
type eventsMsg []eventLine

// eventLine is one rendered event row.
type eventLine struct {
	At      string
	Type    string
	Worker  string
	Payload string
}

// tickCmd returns a command that sends a tickMsg after 2 seconds.
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchStatesCmd loads per-worker states from the event log.
func fetchStatesCmd() tea.Cmd {
	return func() tea.Msg {
		log, err := eventlog.OpenReadOnly(eventlog.DefaultDBPath())
		if err != nil {
			return statesMsg(nil)
		}
		defer func() { _ = log.Close() }()

		latest, err := log.LatestStates(context.Background())
		if err != nil {
			return statesMsg(nil)
		}
		states := make(map[string]string, len(latest))
		for id, payload := range latest {
			states[id] = stateFromPayload(payload)
		}
		return statesMsg(states)
	}
}

// fetchEventsCmd loads the most recent events from the event log.
func fetchEventsCmd() tea.Cmd {
	return func() tea.Msg {
		log, err := eventlog.OpenReadOnly(eventlog.DefaultDBPath())
		if err != nil {
			return eventsMsg(nil)
		}
		defer func() { _ = log.Close() }()

		events, err := log.Query(context.Background(), eventlog.QueryOpts{Limit: 15})
		if err != nil {
			return eventsMsg(nil)
		}
		lines := make([]eventLine, 0, len(events))
		for _, e := range events {
			lines = append(lines, eventLine{At: e.CreatedAt, Type: e.Type, Worker: e.WorkerID, Payload: e.Payload})
		}
		return eventsMsg(lines)
	}
}

// dashModel is the Bubble Tea model for the orc dashboard.
type dashModel struct {
	theme   Theme
	workers table.Model
	events  []eventLine
	offline bool

	width  int
	height int
}

// newDashModel creates the dashboard model with an empty workers table.
func newDashModel() dashModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Worker", Width: 20},
			{Title: "State", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(DefaultTheme().Primary)
	t.SetStyles(styles)

	return dashModel{theme: DefaultTheme(), workers: t}
}

// Init implements tea.Model.
func (m dashModel) Init() tea.Cmd {
	return tea.Batch(fetchStatesCmd(), fetchEventsCmd(), tickCmd())
}

// Update implements tea.Model.
func (m dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
		return m, tea.Batch(fetchStatesCmd(), fetchEventsCmd(), tickCmd())
	case statesMsg:
		m.offline = msg == nil
		m.workers.SetRows(stateRows(msg))
	case eventsMsg:
		m.events = msg
	}

	var cmd tea.Cmd
	m.workers, cmd = m.workers.Update(msg)
	return m, cmd
}

// stateRows converts the states map into sorted table rows.
func stateRows(states map[string]string) []table.Row {
	ids := make([]string, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]table.Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, table.Row{id, states[id]})
	}
	return rows
}

// View implements tea.Model.
func (m dashModel) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Primary).Render("orc dashboard")
	muted := lipgloss.NewStyle().Foreground(m.theme.Muted)

	header := title
	if m.offline {
		header += "  " + lipgloss.NewStyle().Foreground(m.theme.Error).Render("(no event log)")
	}

	out := header + "\n\n" + m.workers.View() + "\n\n"
	out += lipgloss.NewStyle().Bold(true).Render("Recent events") + "\n"
	if len(m.events) == 0 {
		out += muted.Render("  none") + "\n"
	}
	for _, e := range m.events {
		worker := e.Worker
		if worker == "" {
			worker = "-"
		}
		out += muted.Render(e.At) + "  " + e.Type + "  " + worker + "  " + e.Payload + "\n"
	}
	out += "\n" + muted.Render("q to quit")
	return out
}
