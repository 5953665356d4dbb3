package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/selfcustody/krux-installer/internal/engine"
	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/workflow"
)

// Update implements tea.Model.
func (m *PromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerChars)
		return m, tick()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case engineEventMsg:
		return m.handleEngineEvent(msg.event)

	case slogMsg:
		m.slogLines = append(m.slogLines, msg)
		if len(m.slogLines) > maxLogLines {
			m.slogLines = m.slogLines[len(m.slogLines)-maxLogLines:]
		}
		return m, nil

	case actionDoneMsg:
		return m.handleActionDone(msg)
	}

	return m, nil
}

func (m *PromptModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.abort()
	}
	if m.busy || m.done {
		return m, nil
	}

	choices := choicesFor(m.state)
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(choices)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		if m.cursor < len(choices) {
			return m.choose(choices[m.cursor].action)
		}
		return m, nil
	}

	for _, c := range choices {
		if c.key == msg.String() {
			return m.choose(c.action)
		}
	}
	return m, nil
}

// abort cancels running I/O or ends the session from a prompt.
func (m *PromptModel) abort() (tea.Model, tea.Cmd) {
	if m.done {
		return m, tea.Quit
	}
	if m.state == workflow.StateInspectingDetails {
		return m.choose(workflow.ActionCloseDetails)
	}
	// Abort only cancels in-flight work; the running action reports back.
	if err := m.driver.Apply(context.Background(), workflow.ActionAbort); err != nil {
		m.err = err
	}
	m.state = m.driver.State()
	if !m.busy {
		return m.finish()
	}
	return m, nil
}

// choose applies a menu action.
func (m *PromptModel) choose(action workflow.Action) (tea.Model, tea.Cmd) {
	m.cursor = 0
	switch action {
	case workflow.ActionShowDetails:
		details, err := m.driver.ShowDetails()
		if err != nil {
			m.err = err
			return m, nil
		}
		m.details = &details
		m.state = m.driver.State()
		return m, nil
	case workflow.ActionCloseDetails:
		if err := m.driver.Apply(m.ctx, action); err != nil {
			m.err = err
			return m, nil
		}
		m.details = nil
		m.state = m.driver.State()
		return m, nil
	case workflow.ActionProceed, workflow.ActionAbort:
		if err := m.driver.Apply(m.ctx, action); err != nil {
			m.err = err
		}
		m.state = m.driver.State()
		return m.finish()
	default:
		m.busy = true
		m.err = nil
		return m, m.run(action)
	}
}

func (m *PromptModel) handleActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	m.state = m.driver.State()

	switch {
	case msg.err == nil:
	case errors.Is(msg.err, kerrors.ErrConcurrentDownloadRejected):
		// The session is back at its prompt; the user may retry.
		m.err = msg.err
	case errors.Is(msg.err, context.Canceled):
	default:
		m.err = msg.err
	}

	if m.state.Terminal() {
		return m.finish()
	}
	return m, nil
}

func (m *PromptModel) finish() (tea.Model, tea.Cmd) {
	m.done = true
	m.busy = false
	return m, tea.Quit
}

// handleEngineEvent tracks download progress per file name.
func (m *PromptModel) handleEngineEvent(event engine.Event) (tea.Model, tea.Cmd) {
	switch event.Type {
	case engine.EventTransition:
		m.state = event.To
	case engine.EventStart:
		f := m.file(event.Name)
		f.total = event.Total
		f.downloaded = 0
		f.done = false
		f.err = nil
	case engine.EventProgress:
		f := m.file(event.Name)
		f.downloaded = event.Downloaded
		if event.Total > 0 {
			f.total = event.Total
		}
	case engine.EventComplete:
		if f, ok := m.files[event.Name]; ok {
			f.done = true
			if f.total <= 0 {
				f.total = f.downloaded
			}
		}
	case engine.EventError:
		if f, ok := m.files[event.Name]; ok {
			f.err = event.Error
		}
	}
	return m, nil
}

func (m *PromptModel) file(name string) *fileState {
	f, ok := m.files[name]
	if !ok {
		f = &fileState{name: name}
		m.files[name] = f
		m.fileOrder = append(m.fileOrder, name)
	}
	return f
}

// Compile-time check.
var _ tea.Model = (*PromptModel)(nil)

// TerminalState reports whether the prompt ended with a decision the
// caller can act on.
func (m *PromptModel) TerminalState() workflow.State {
	return m.state
}
