package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/locator"
)

// RemoteChecker reports whether a URL is published.
type RemoteChecker interface {
	Exists(ctx context.Context, url string) (bool, error)
}

// RemoteCheckFunc adapts a function to RemoteChecker.
type RemoteCheckFunc func(ctx context.Context, url string) (bool, error)

// Exists implements RemoteChecker.
func (f RemoteCheckFunc) Exists(ctx context.Context, url string) (bool, error) {
	return f(ctx, url)
}

// Refresher re-runs the local presence check of an entry.
type Refresher interface {
	Refresh(entry locator.CacheEntry) (locator.CacheEntry, error)
}

// Fetcher downloads the archive of an entry and returns it refreshed.
// It must reject a second concurrent fetch of the same release with a
// ConcurrentDownloadRejected error.
type Fetcher interface {
	Fetch(ctx context.Context, entry locator.CacheEntry) (locator.CacheEntry, error)
}

// Observer is notified of every state change.
type Observer func(from, to State)

// Machine is the decision workflow of one session.
// All methods are safe for concurrent use.
type Machine struct {
	mu       sync.Mutex
	state    State
	entry    locator.CacheEntry
	decision Decision
	err      error
	cancel   context.CancelFunc

	remote   RemoteChecker
	local    Refresher
	fetcher  Fetcher
	observer Observer
}

// Option configures a Machine.
type Option func(*Machine)

// WithRemoteChecker sets how remote existence is confirmed.
func WithRemoteChecker(c RemoteChecker) Option {
	return func(m *Machine) {
		m.remote = c
	}
}

// WithRefresher sets how local presence is checked.
func WithRefresher(r Refresher) Option {
	return func(m *Machine) {
		m.local = r
	}
}

// WithFetcher sets the downloader used by Redownload and Download.
func WithFetcher(f Fetcher) Option {
	return func(m *Machine) {
		m.fetcher = f
	}
}

// WithObserver registers a callback for state changes.
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		m.observer = o
	}
}

// New creates a Machine in Idle for entry.
func New(entry locator.CacheEntry, opts ...Option) *Machine {
	m := &Machine{
		state: StateIdle,
		entry: entry,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Entry returns the entry the session works on.
func (m *Machine) Entry() locator.CacheEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entry
}

// Decision returns the decision taken, if any.
func (m *Machine) Decision() Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decision
}

// Err returns the error that moved the machine to Failed.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Details returns the provenance of the session entry.
func (m *Machine) Details() Details {
	m.mu.Lock()
	defer m.mu.Unlock()
	return NewDetails(m.entry)
}

// setState must be called with mu held.
func (m *Machine) setState(to State) {
	from := m.state
	m.state = to
	slog.Debug("workflow transition", "release", m.entry.Release.ID(), "from", from, "to", to)
	if m.observer != nil {
		m.observer(from, to)
	}
}

func (m *Machine) invalid(action Action) error {
	return kerrors.NewInvalidTransition(string(m.state), string(action))
}

// begin moves from one of allowed into inFlight and returns a cancelable
// context that Abort can stop. Must be called with mu held.
func (m *Machine) begin(ctx context.Context, inFlight State) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.setState(inFlight)
	return ctx
}

// finish releases the in-flight context. It reports false when the
// operation was aborted meanwhile. Must be called with mu held.
func (m *Machine) finish(inFlight State) bool {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return m.state == inFlight
}

// fail moves to Failed, or to Aborted when err is a cancellation.
// Must be called with mu held.
func (m *Machine) fail(err error) error {
	if errors.Is(err, context.Canceled) {
		m.decision = DecisionAbort
		m.setState(StateAborted)
		return err
	}
	m.err = err
	m.setState(StateFailed)
	return err
}

// Check confirms the archive is published and then looks for a cached copy.
// A missing remote archive fails the session with a NotFound error; a
// missing local copy moves to NotFound, which is a normal branch.
func (m *Machine) Check(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateIdle {
		defer m.mu.Unlock()
		return m.invalid(ActionCheck)
	}
	ctx = m.begin(ctx, StateCheckingRemote)
	entry := m.entry
	m.mu.Unlock()

	exists := true
	var err error
	if m.remote != nil {
		exists, err = m.remote.Exists(ctx, entry.RemoteURL)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateCheckingRemote {
		m.finish(StateCheckingRemote)
		return context.Canceled
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		m.finish(StateCheckingRemote)
		return m.fail(err)
	}
	if !exists {
		m.finish(StateCheckingRemote)
		return m.fail(kerrors.NewNotFound(kerrors.ScopeRemote, entry.RemoteURL))
	}

	m.setState(StateCheckingLocal)
	if m.local != nil {
		entry, err = m.local.Refresh(entry)
	}
	m.finish(StateCheckingLocal)
	if err != nil {
		return m.fail(err)
	}

	m.entry = entry
	if entry.Exists {
		m.setState(StateAlreadyDownloaded)
	} else {
		m.setState(StateNotFound)
	}
	return nil
}

// Proceed reuses the cached archive.
func (m *Machine) Proceed() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAlreadyDownloaded {
		return m.invalid(ActionProceed)
	}
	m.decision = DecisionProceedWithCached
	m.setState(StateProceeding)
	return nil
}

// ShowDetails enters the provenance side branch.
func (m *Machine) ShowDetails() (Details, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAlreadyDownloaded {
		return Details{}, m.invalid(ActionShowDetails)
	}
	m.setState(StateInspectingDetails)
	return NewDetails(m.entry), nil
}

// CloseDetails returns from the provenance side branch.
func (m *Machine) CloseDetails() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateInspectingDetails {
		return m.invalid(ActionCloseDetails)
	}
	m.setState(StateAlreadyDownloaded)
	return nil
}

// Abort ends the session. While a check or download is running, Abort
// cancels it and the running call returns context.Canceled.
func (m *Machine) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.state.InFlight():
		if m.cancel != nil {
			m.cancel()
		}
	case m.state == StateAlreadyDownloaded, m.state == StateNotFound, m.state == StateIdle:
	default:
		return m.invalid(ActionAbort)
	}
	m.decision = DecisionAbort
	m.setState(StateAborted)
	return nil
}

// Redownload discards the cached archive and fetches it again.
func (m *Machine) Redownload(ctx context.Context) error {
	return m.fetch(ctx, ActionRedownload, StateAlreadyDownloaded, StateRedownloading, DecisionRedownload)
}

// Download fetches an archive that is not cached yet.
func (m *Machine) Download(ctx context.Context) error {
	return m.fetch(ctx, ActionDownload, StateNotFound, StateDownloading, DecisionDownload)
}

func (m *Machine) fetch(ctx context.Context, action Action, from, inFlight State, decision Decision) error {
	m.mu.Lock()
	if m.state != from {
		defer m.mu.Unlock()
		return m.invalid(action)
	}
	if m.fetcher == nil {
		defer m.mu.Unlock()
		return m.fail(kerrors.NewDownloadFailed(m.entry.RemoteURL, errors.New("no fetcher configured")))
	}
	m.decision = decision
	ctx = m.begin(ctx, inFlight)
	entry := m.entry
	m.mu.Unlock()

	refreshed, err := m.fetcher.Fetch(ctx, entry)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.finish(inFlight) {
		return context.Canceled
	}

	switch {
	case err == nil:
		m.entry = refreshed
		m.setState(StateProceeding)
		return nil
	case errors.Is(err, kerrors.ErrConcurrentDownloadRejected):
		// The decision is not consumed: another session owns the download.
		m.decision = DecisionNone
		m.setState(from)
		return err
	case errors.Is(err, context.Canceled):
		return m.fail(err)
	case errors.Is(err, kerrors.ErrDownloadFailed):
		return m.fail(err)
	default:
		return m.fail(kerrors.NewDownloadFailed(entry.RemoteURL, err))
	}
}
