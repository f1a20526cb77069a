// Package tui renders the weather screen in a terminal with Bubble Tea.
package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kjstillabower/weather-now/internal/screen"
)

// Actions is the controller surface the terminal screen drives.
type Actions interface {
	State() screen.State
	Initialize(ctx context.Context) screen.State
	Refresh(ctx context.Context) screen.State
	Retry(ctx context.Context) screen.State
}

// StateMsg carries a state transition into the program. The controller's OnChange is its only source.
type StateMsg screen.State

const helpReady = "r refresh · q quit"
const helpError = "enter retry · r refresh · q quit"

// Model is the Bubble Tea model for the weather screen.
type Model struct {
	actions Actions
	ctx     context.Context
	state   screen.State
}

// New returns a model showing the controller's current state. ctx bounds every cycle the model starts.
func New(ctx context.Context, actions Actions) Model {
	return Model{actions: actions, ctx: ctx, state: actions.State()}
}

// Init starts the first cycle when the screen is shown.
func (m Model) Init() tea.Cmd {
	return m.run(m.actions.Initialize)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		m.state = screen.State(msg)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.run(m.actions.Refresh)
		case "enter", "t", " ":
			if m.state.Phase() == screen.PhaseError {
				return m, m.run(m.actions.Retry)
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(screen.Present(m.state).String())
	b.WriteString("\n\n")
	switch m.state.Phase() {
	case screen.PhaseError:
		b.WriteString(helpError)
	case screen.PhaseReady:
		b.WriteString(helpReady)
	}
	b.WriteString("\n")
	return b.String()
}

// State returns the state the model is displaying.
func (m Model) State() screen.State { return m.state }

// run starts a cycle off the event loop. Transitions reach the model only through StateMsg from
// OnChange, so a finished cycle cannot overwrite a newer one.
func (m Model) run(action func(context.Context) screen.State) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		action(ctx)
		return nil
	}
}
