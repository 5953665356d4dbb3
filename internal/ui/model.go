package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/selfcustody/krux-installer/internal/locator"
	"github.com/selfcustody/krux-installer/internal/workflow"
)

const (
	tickInterval = 80 * time.Millisecond
	maxLogLines  = 5
)

// Driver is the session the prompt acts on.
type Driver interface {
	State() workflow.State
	Entry() locator.CacheEntry
	Apply(ctx context.Context, action workflow.Action) error
	ShowDetails() (workflow.Details, error)
}

// choice is one menu entry.
type choice struct {
	label  string
	key    string
	action workflow.Action
}

// choicesFor returns the menu of state. States without a menu return nil.
func choicesFor(state workflow.State) []choice {
	switch state {
	case workflow.StateAlreadyDownloaded:
		return []choice{
			{label: "Proceed with the cached archive", key: "p", action: workflow.ActionProceed},
			{label: "Download it again", key: "r", action: workflow.ActionRedownload},
			{label: "Show details", key: "i", action: workflow.ActionShowDetails},
			{label: "Abort", key: "q", action: workflow.ActionAbort},
		}
	case workflow.StateNotFound:
		return []choice{
			{label: "Download", key: "d", action: workflow.ActionDownload},
			{label: "Abort", key: "q", action: workflow.ActionAbort},
		}
	case workflow.StateInspectingDetails:
		return []choice{
			{label: "Back", key: "esc", action: workflow.ActionCloseDetails},
		}
	default:
		return nil
	}
}

// fileState tracks one file being downloaded.
type fileState struct {
	name       string
	downloaded int64
	total      int64
	done       bool
	err        error
}

// slogLine is one entry of the log panel.
type slogLine = slogMsg

// PromptModel is the Bubble Tea model that asks the user what to do with
// a release archive and shows the resulting downloads.
type PromptModel struct {
	ctx    context.Context
	driver Driver

	state   workflow.State
	cursor  int
	details *workflow.Details

	files     map[string]*fileState
	fileOrder []string
	slogLines []slogLine

	frame int
	busy  bool
	done  bool
	err   error
	width int
}

// NewPromptModel creates a PromptModel for driver. The check runs as soon
// as the program starts.
func NewPromptModel(ctx context.Context, driver Driver) *PromptModel {
	return &PromptModel{
		ctx:    ctx,
		driver: driver,
		state:  driver.State(),
		files:  make(map[string]*fileState),
		width:  80,
	}
}

// Init implements tea.Model.
func (m *PromptModel) Init() tea.Cmd {
	m.busy = true
	return tea.Batch(tick(), m.run(workflow.ActionCheck))
}

// Err returns the error that ended the session, if any.
func (m *PromptModel) Err() error {
	return m.err
}

// State returns the last observed workflow state.
func (m *PromptModel) State() workflow.State {
	return m.state
}

// FinalView returns the final rendered output for printing after the
// program exits.
func (m *PromptModel) FinalView() string {
	return m.View()
}

// run applies action off the UI goroutine.
func (m *PromptModel) run(action workflow.Action) tea.Cmd {
	ctx, driver := m.ctx, m.driver
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: driver.Apply(ctx, action)}
	}
}

// tick returns a command that sends a tickMsg after the tick interval.
func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
