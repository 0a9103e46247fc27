// Package tui is the terminal view of a single insight watch.
//
// The model drives a [insightwatch.Guard]: typing an issue id and pressing
// enter switches the guard to that issue, esc clears it. Observations reach
// the model through a [Feed].
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jpalmerr/insightwatch"
)

// feedBuffer bounds the observations queued between a controller and the
// model. A session emits at most two.
const feedBuffer = 16

// — styles ——————————————————————————————————————————————————————————————————

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	dimStyle   = lipgloss.NewStyle().Faint(true)
	boldStyle  = lipgloss.NewStyle().Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	labelStyle = lipgloss.NewStyle().Faint(true).Width(13)

	helpStyle = lipgloss.NewStyle().
			Faint(true).
			PaddingLeft(2)

	insightStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("2")).
			Padding(1, 3)
)

// — feed ————————————————————————————————————————————————————————————————————

// Feed carries observations from a controller to the model.
type Feed chan insightwatch.Observation[insightwatch.Insight]

// NewFeed returns an empty Feed.
func NewFeed() Feed {
	return make(Feed, feedBuffer)
}

// Observe is an [insightwatch.Observer]. It blocks only while the buffer is
// full, and the model always has a read pending.
func (f Feed) Observe(obs insightwatch.Observation[insightwatch.Insight]) {
	f <- obs
}

// — messages ————————————————————————————————————————————————————————————————

type observationMsg insightwatch.Observation[insightwatch.Insight]

type identifierSetMsg struct {
	identifier string
}

// — model ———————————————————————————————————————————————————————————————————

// Settings describe the polling behind the model, for display.
type Settings struct {
	// Identifier is watched as soon as the program starts.
	Identifier  string
	Interval    time.Duration
	MaxAttempts int
}

// Model is the bubbletea model of the watch view.
type Model struct {
	guard    *insightwatch.Guard[insightwatch.Insight]
	feed     <-chan insightwatch.Observation[insightwatch.Insight]
	settings Settings

	input   textinput.Model
	spinner spinner.Model
	width   int

	// active is the identifier the user asked for; state is "" until its
	// first observation arrives.
	active  string
	state   insightwatch.State
	attempt int
	insight insightwatch.Insight
	since   time.Time
}

// New creates a model driving guard and reading feed.
func New(guard *insightwatch.Guard[insightwatch.Insight], feed <-chan insightwatch.Observation[insightwatch.Insight], settings Settings) Model {
	ti := textinput.New()
	ti.Placeholder = "issue id, e.g. 8d1f0f7e-8c6b-4c55-9d0e-5f0bcb0f3a11"
	ti.CharLimit = 128
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = warnStyle

	m := Model{
		guard:    guard,
		feed:     feed,
		settings: settings,
		input:    ti,
		spinner:  sp,
	}
	if id := strings.TrimSpace(settings.Identifier); id != "" {
		m.active = id
		m.input.SetValue(id)
	}
	return m
}

// — commands ————————————————————————————————————————————————————————————————

// setIdentifier switches the guard off the update loop. Guard.Set cancels
// the outgoing session, which waits for its observer to return.
func setIdentifier(guard *insightwatch.Guard[insightwatch.Insight], identifier string) tea.Cmd {
	return func() tea.Msg {
		guard.Set(identifier)
		return identifierSetMsg{identifier: identifier}
	}
}

func waitForObservation(feed <-chan insightwatch.Observation[insightwatch.Insight]) tea.Cmd {
	return func() tea.Msg {
		obs, ok := <-feed
		if !ok {
			return nil
		}
		return observationMsg(obs)
	}
}

// Init starts the spinner, the feed reader and, when set, the initial
// identifier.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, waitForObservation(m.feed)}
	if m.active != "" {
		cmds = append(cmds, setIdentifier(m.guard, m.active))
	}
	return tea.Batch(cmds...)
}

// Update handles key presses, observations and spinner ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			id := strings.TrimSpace(m.input.Value())
			if id == m.active {
				return m, nil
			}
			m.reset(id)
			return m, setIdentifier(m.guard, id)
		case tea.KeyEsc:
			if m.active == "" {
				return m, tea.Quit
			}
			m.input.SetValue("")
			m.reset("")
			return m, setIdentifier(m.guard, "")
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case observationMsg:
		// observations queued before a switch belong to the old identifier
		if msg.Identifier == m.active {
			m.state = msg.State
			m.attempt = msg.Attempt
			m.since = msg.ObservedAt
			if msg.State == insightwatch.StateReady {
				m.insight = msg.Payload
			}
		}
		return m, waitForObservation(m.feed)

	case identifierSetMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) reset(identifier string) {
	m.active = identifier
	m.state = ""
	m.attempt = 0
	m.insight = insightwatch.Insight{}
	m.since = time.Time{}
}

// Active returns the identifier being watched.
func (m Model) Active() string {
	return m.active
}

// State returns the last observed state of the active identifier, or ""
// before its first observation.
func (m Model) State() insightwatch.State {
	return m.state
}

// — view ————————————————————————————————————————————————————————————————————

// View renders the input line, the status and, once ready, the insight.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Insightwatch"))
	b.WriteString("\n\n  ")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(m.statusView())
	b.WriteString("\n")
	if m.state == insightwatch.StateReady {
		b.WriteString(m.insightView())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter watch • esc clear • ctrl+c quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) statusView() string {
	if m.active == "" {
		return dimStyle.Render("  no issue selected")
	}

	issue := boldStyle.Render(m.active)
	switch m.state {
	case "":
		return fmt.Sprintf("  %s %s fetching", m.spinner.View(), issue)
	case insightwatch.StatePending:
		return fmt.Sprintf("  %s %s %s %s", m.spinner.View(), issue,
			warnStyle.Render("pending"),
			dimStyle.Render(fmt.Sprintf("polling every %s, up to %d attempts", m.settings.Interval, m.settings.MaxAttempts)))
	case insightwatch.StateReady:
		return fmt.Sprintf("  %s %s %s", issue, okStyle.Render("ready"),
			dimStyle.Render("at "+m.since.Format("15:04:05")))
	case insightwatch.StateUnavailable:
		return fmt.Sprintf("  %s %s %s", issue, errStyle.Render("unavailable"),
			dimStyle.Render(fmt.Sprintf("no insight after %d attempts", m.attempt)))
	default:
		return "  " + issue + " " + string(m.state)
	}
}

func (m Model) insightView() string {
	in := m.insight
	rows := []string{
		labelStyle.Render("summary") + in.Summary,
		labelStyle.Render("root cause") + in.RootCause,
		labelStyle.Render("remediation") + in.Remediation,
	}
	if in.ModelUsed != "" {
		rows = append(rows, labelStyle.Render("model")+fmt.Sprintf("%s (%d tokens)", in.ModelUsed, in.TokensUsed))
	}

	style := insightStyle
	if m.width > 8 {
		style = style.Width(m.width - 4)
	}
	return lipgloss.NewStyle().MarginLeft(2).Render(style.Render(strings.Join(rows, "\n")))
}
