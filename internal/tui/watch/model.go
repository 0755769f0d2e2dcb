// Package watch is a live terminal view of a running executor server, fed by
// its /events stream and /healthz.
package watch

import (
	"encoding/json"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/executor/internal/events"
)

const maxEventLog = 50

// HealthState tracks server health from /healthz polling.
type HealthState struct {
	Status           string
	UptimeSeconds    int64
	ModulesLoaded    int
	CommandsExecuted int
	Connected        bool
}

// ModuleState tallies finished forwards for one module.
type ModuleState struct {
	ID        string
	Succeeded int
	Failed    int
	LastRun   time.Time
	LastError string
}

// Active is a forward that has started and not yet finished.
type Active struct {
	events.Forward
	Since time.Time
}

// Model is the bubbletea model for the watch view.
type Model struct {
	apiURL string
	token  string

	width  int
	height int

	health   HealthState
	active   *Active
	modules  map[string]*ModuleState
	eventLog []events.Event
	lastID   int64

	ticker    Ticker
	spinner   Spinner
	theme     Theme
	hubEvents chan events.Event
	lastError string
}

// New returns a watch model for the server at apiURL.
func New(apiURL, token string) Model {
	return Model{
		apiURL:    apiURL,
		token:     token,
		modules:   make(map[string]*ModuleState),
		hubEvents: make(chan events.Event, 100),
		ticker:    NewTicker(),
		spinner:   NewSpinner(),
		theme:     NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.subscribe(0),
		receiveNextEvent(m.hubEvents),
		m.fetchHealth,
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
		m.spinner.Decay()
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		m.apply(events.Event(msg))
		m.spinner.OnEvent()
		m.health.Connected = true
		m.lastError = ""
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health = HealthState{
			Status:           msg.Status,
			UptimeSeconds:    msg.UptimeSeconds,
			ModulesLoaded:    msg.ModulesLoaded,
			CommandsExecuted: msg.CommandsExecuted,
			Connected:        true,
		}
		m.lastError = ""
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg { return m.fetchHealth() })

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, m.subscribe(m.lastID)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg { return m.fetchHealth() })
	}

	return m, nil
}

// apply folds one event into the model state.
func (m *Model) apply(e events.Event) {
	if e.ID > m.lastID {
		m.lastID = e.ID
	}
	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > maxEventLog {
		m.eventLog = m.eventLog[:maxEventLog]
	}

	var f events.Forward
	if err := json.Unmarshal(e.Data, &f); err != nil || f.Module == "" {
		return
	}

	switch e.Type {
	case events.ForwardStarted:
		m.active = &Active{Forward: f, Since: e.At}
	case events.ForwardCompleted, events.ForwardFailed:
		m.active = nil
		s, ok := m.modules[f.Module]
		if !ok {
			s = &ModuleState{ID: f.Module}
			m.modules[f.Module] = s
		}
		s.LastRun = e.At
		if e.Type == events.ForwardFailed {
			s.Failed++
			s.LastError = f.Error
		} else {
			s.Succeeded++
			s.LastError = ""
		}
	}
}

// moduleStates returns tallies ordered by most recent run.
func (m Model) moduleStates() []*ModuleState {
	out := make([]*ModuleState, 0, len(m.modules))
	for _, s := range m.modules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastRun.Equal(out[j].LastRun) {
			return out[i].LastRun.After(out[j].LastRun)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
