package ui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selfcustody/krux-installer/internal/engine"
	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/locator"
	"github.com/selfcustody/krux-installer/internal/release"
	"github.com/selfcustody/krux-installer/internal/workflow"
)

// fakeDriver moves through a scripted set of states.
type fakeDriver struct {
	mu      sync.Mutex
	state   workflow.State
	next    map[workflow.Action]workflow.State
	errs    map[workflow.Action]error
	applied []workflow.Action
}

func newFakeDriver(state workflow.State) *fakeDriver {
	return &fakeDriver{
		state: state,
		next: map[workflow.Action]workflow.State{
			workflow.ActionCheck:        workflow.StateAlreadyDownloaded,
			workflow.ActionProceed:      workflow.StateProceeding,
			workflow.ActionRedownload:   workflow.StateProceeding,
			workflow.ActionDownload:     workflow.StateProceeding,
			workflow.ActionAbort:        workflow.StateAborted,
			workflow.ActionCloseDetails: workflow.StateAlreadyDownloaded,
		},
		errs: map[workflow.Action]error{},
	}
}

func (d *fakeDriver) State() workflow.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *fakeDriver) Entry() locator.CacheEntry {
	r := release.New("v22.08.2")
	return locator.CacheEntry{Release: r, LocalPath: "/data/krux-installer/v22.08.2/krux-v22.08.2.zip", RemoteURL: r.RemoteURL()}
}

func (d *fakeDriver) Apply(_ context.Context, action workflow.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied = append(d.applied, action)
	if err := d.errs[action]; err != nil {
		return err
	}
	d.state = d.next[action]
	return nil
}

func (d *fakeDriver) ShowDetails() (workflow.Details, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied = append(d.applied, workflow.ActionShowDetails)
	d.state = workflow.StateInspectingDetails
	return workflow.NewDetails(d.Entry()), nil
}

func (d *fakeDriver) actions() []workflow.Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]workflow.Action(nil), d.applied...)
}

// runCmd executes cmd and feeds resulting messages back, skipping ticks.
func runCmd(t *testing.T, m *PromptModel, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			runCmd(t, m, c)
		}
	case tickMsg, tea.QuitMsg, nil:
	default:
		_, next := m.Update(msg)
		runCmd(t, m, next)
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(t *testing.T, m *PromptModel, s string) tea.Cmd {
	t.Helper()
	_, cmd := m.Update(key(s))
	return cmd
}

func started(t *testing.T, d *fakeDriver) *PromptModel {
	t.Helper()
	m := NewPromptModel(context.Background(), d)
	runCmd(t, m, m.Init())
	require.False(t, m.busy)
	return m
}

func TestPromptModel_CheckThenProceed(t *testing.T) {
	t.Parallel()

	d := newFakeDriver(workflow.StateIdle)
	m := started(t, d)
	assert.Equal(t, workflow.StateAlreadyDownloaded, m.State())

	cmd := press(t, m, "enter")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.done)
	assert.Equal(t, workflow.StateProceeding, m.State())
	assert.Equal(t, []workflow.Action{workflow.ActionCheck, workflow.ActionProceed}, d.actions())
}

func TestPromptModel_MenuNavigation(t *testing.T) {
	t.Parallel()

	d := newFakeDriver(workflow.StateIdle)
	m := started(t, d)

	press(t, m, "up")
	assert.Equal(t, 0, m.cursor)
	press(t, m, "down")
	press(t, m, "j")
	assert.Equal(t, 2, m.cursor)
	for range 5 {
		press(t, m, "down")
	}
	assert.Equal(t, 3, m.cursor)
	press(t, m, "k")
	assert.Equal(t, 2, m.cursor)

	runCmd(t, m, press(t, m, "enter"))
	assert.Equal(t, workflow.StateInspectingDetails, m.State())
	require.NotNil(t, m.details)
	assert.Equal(t, workflow.DetailsTitle, m.details.Title)
}

func TestPromptModel_DetailsRoundTrip(t *testing.T) {
	t.Parallel()

	d := newFakeDriver(workflow.StateIdle)
	m := started(t, d)

	for range 3 {
		press(t, m, "i")
		assert.Equal(t, workflow.StateInspectingDetails, m.State())
		press(t, m, "esc")
		assert.Equal(t, workflow.StateAlreadyDownloaded, m.State())
		assert.Nil(t, m.details)
	}

	// ctrl+c inside details only closes them
	press(t, m, "i")
	press(t, m, "ctrl+c")
	assert.Equal(t, workflow.StateAlreadyDownloaded, m.State())
	assert.False(t, m.done)
}

func TestPromptModel_Redownload(t *testing.T) {
	t.Parallel()

	d := newFakeDriver(workflow.StateIdle)
	m := started(t, d)

	cmd := press(t, m, "r")
	assert.True(t, m.busy)

	// keys are ignored while busy
	assert.Nil(t, press(t, m, "p"))

	runCmd(t, m, cmd)
	assert.True(t, m.done)
	assert.Equal(t, workflow.StateProceeding, m.State())
	assert.Equal(t, []workflow.Action{workflow.ActionCheck, workflow.ActionRedownload}, d.actions())
}

func TestPromptModel_DownloadFromNotFound(t *testing.T) {
	t.Parallel()

	d := newFakeDriver(workflow.StateIdle)
	d.next[workflow.ActionCheck] = workflow.StateNotFound
	m := started(t, d)

	assert.Nil(t, press(t, m, "p"), "proceed is not offered")
	runCmd(t, m, press(t, m, "d"))
	assert.Equal(t, workflow.StateProceeding, m.State())
}

func TestPromptModel_RejectedDownloadReturnsToPrompt(t *testing.T) {
	t.Parallel()

	d := newFakeDriver(workflow.StateIdle)
	d.errs[workflow.ActionRedownload] = kerrors.NewConcurrentDownloadRejected("v22.08.2/krux-v22.08.2.zip", "")
	m := started(t, d)

	runCmd(t, m, press(t, m, "r"))
	assert.False(t, m.done)
	assert.False(t, m.busy)
	assert.Equal(t, workflow.StateAlreadyDownloaded, m.State())
	assert.ErrorIs(t, m.Err(), kerrors.ErrConcurrentDownloadRejected)
	assert.Contains(t, m.View(), "Proceed with the cached archive")
}

func TestPromptModel_FailedCheckQuits(t *testing.T) {
	t.Parallel()

	d := newFakeDriver(workflow.StateIdle)
	d.errs[workflow.ActionCheck] = errors.New("remote gone")
	d.state = workflow.StateFailed
	m := NewPromptModel(context.Background(), d)
	runCmd(t, m, m.Init())

	assert.True(t, m.done)
	assert.EqualError(t, m.Err(), "remote gone")
}

func TestPromptModel_AbortKeys(t *testing.T) {
	t.Parallel()

	for _, k := range []string{"q", "ctrl+c"} {
		d := newFakeDriver(workflow.StateIdle)
		m := started(t, d)

		cmd := press(t, m, k)
		require.NotNil(t, cmd, k)
		assert.True(t, m.done, k)
		assert.Equal(t, workflow.StateAborted, m.State(), k)
	}
}

func TestPromptModel_EngineEvents(t *testing.T) {
	t.Parallel()

	m := NewPromptModel(context.Background(), newFakeDriver(workflow.StateIdle))

	for _, e := range []engine.Event{
		{Type: engine.EventTransition, To: workflow.StateDownloading},
		{Type: engine.EventStart, Name: "krux-v22.08.2.zip", Total: 2048},
		{Type: engine.EventStart, Name: "selfcustody.pem", Total: -1},
		{Type: engine.EventProgress, Name: "krux-v22.08.2.zip", Downloaded: 1024, Total: 2048},
		{Type: engine.EventProgress, Name: "selfcustody.pem", Downloaded: 100, Total: -1},
		{Type: engine.EventComplete, Name: "selfcustody.pem", Total: 100},
		{Type: engine.EventError, Name: "krux-v22.08.2.zip", Error: errors.New("reset")},
	} {
		m.Update(engineEventMsg{event: e})
	}

	assert.Equal(t, workflow.StateDownloading, m.State())
	assert.Equal(t, []string{"krux-v22.08.2.zip", "selfcustody.pem"}, m.fileOrder)

	archive := m.files["krux-v22.08.2.zip"]
	assert.Equal(t, int64(1024), archive.downloaded)
	assert.EqualError(t, archive.err, "reset")

	key := m.files["selfcustody.pem"]
	assert.True(t, key.done)
	assert.Equal(t, int64(100), key.total)
}

func TestPromptModel_LogPanelKeepsLastLines(t *testing.T) {
	t.Parallel()

	m := NewPromptModel(context.Background(), newFakeDriver(workflow.StateIdle))
	for i := range maxLogLines + 3 {
		m.Update(slogMsg{message: string(rune('a' + i))})
	}
	require.Len(t, m.slogLines, maxLogLines)
	assert.Equal(t, "d", m.slogLines[0].message)
}
