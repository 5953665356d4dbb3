package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/selfcustody/krux-installer/internal/download"
	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/extract"
	"github.com/selfcustody/krux-installer/internal/github"
	"github.com/selfcustody/krux-installer/internal/locator"
	"github.com/selfcustody/krux-installer/internal/platform"
	"github.com/selfcustody/krux-installer/internal/state"
	"github.com/selfcustody/krux-installer/internal/verify"
	"github.com/selfcustody/krux-installer/internal/workflow"
)

// Session drives the workflow of one release archive.
type Session struct {
	engine  *Engine
	profile platform.Profile
	locator *locator.Locator
	fetcher *download.ReleaseFetcher
	store   *state.Store
	machine *workflow.Machine
}

func newSession(e *Engine, profile platform.Profile, loc *locator.Locator, store *state.Store, entry locator.CacheEntry) *Session {
	s := &Session{
		engine:  e,
		profile: profile,
		locator: loc,
		store:   store,
		fetcher: download.NewFetcher(loc,
			download.WithDownloader(download.NewDownloaderWithClient(e.client)),
			download.WithGuard(e.guard),
		),
	}

	id := entry.Release.ID()
	s.machine = workflow.New(entry,
		workflow.WithRemoteChecker(workflow.RemoteCheckFunc(func(ctx context.Context, url string) (bool, error) {
			return github.AssetExists(ctx, e.client, url)
		})),
		workflow.WithRefresher(loc),
		workflow.WithFetcher(recordingFetcher{session: s}),
		workflow.WithObserver(func(from, to workflow.State) {
			e.emitEvent(Event{Type: EventTransition, Release: id, From: from, To: to})
		}),
	)
	return s
}

// recordingFetcher stores every completed download in the state ledger.
type recordingFetcher struct {
	session *Session
}

func (f recordingFetcher) Fetch(ctx context.Context, entry locator.CacheEntry) (locator.CacheEntry, error) {
	s := f.session
	id := entry.Release.ID()

	refreshed, err := s.fetcher.Fetch(s.engine.withDownloadEvents(ctx, id), entry)
	if err != nil {
		s.engine.emitEvent(Event{Type: EventError, Release: id, Name: entry.Release.ArchiveName, Error: err})
		return refreshed, err
	}
	if err := s.store.Update(func(st *state.State) error {
		st.RecordDownload(refreshed, s.engine.now())
		return nil
	}); err != nil {
		slog.Warn("failed to record download", "release", id, "error", err)
	}
	return refreshed, nil
}

// Profile returns the platform profile the session resolved.
func (s *Session) Profile() platform.Profile {
	return s.profile
}

// Entry returns the current cache entry.
func (s *Session) Entry() locator.CacheEntry {
	return s.machine.Entry()
}

// State returns the current workflow state.
func (s *Session) State() workflow.State {
	return s.machine.State()
}

// Decision returns the decision taken so far.
func (s *Session) Decision() workflow.Decision {
	return s.machine.Decision()
}

// Err returns the error that failed the session, if any.
func (s *Session) Err() error {
	return s.machine.Err()
}

// Sidecars returns the verification files of the session archive.
func (s *Session) Sidecars() locator.Sidecars {
	return s.locator.Sidecars(s.machine.Entry())
}

// Check runs the remote and local presence checks.
// A ledger record whose archive is no longer on disk is dropped.
func (s *Session) Check(ctx context.Context) error {
	if err := s.machine.Check(ctx); err != nil {
		return err
	}
	if s.machine.State() == workflow.StateNotFound {
		s.forgetMissing()
	}
	return nil
}

func (s *Session) forgetMissing() {
	id := s.machine.Entry().Release.ID()
	if st, err := s.store.LoadReadOnly(); err != nil || st.Record(id) == nil {
		return
	}
	slog.Info("forgetting release missing from cache", "release", id)
	if err := s.store.Update(func(st *state.State) error {
		st.Forget(id)
		return nil
	}); err != nil {
		slog.Warn("failed to update state", "release", id, "error", err)
	}
}

// Proceed reuses the cached archive.
func (s *Session) Proceed() error {
	return s.machine.Proceed()
}

// Redownload fetches the archive again over the cached copy.
func (s *Session) Redownload(ctx context.Context) error {
	return s.machine.Redownload(ctx)
}

// Download fetches an archive that is not cached yet.
func (s *Session) Download(ctx context.Context) error {
	return s.machine.Download(ctx)
}

// Abort ends the session, canceling running I/O.
func (s *Session) Abort() error {
	return s.machine.Abort()
}

// ShowDetails enters the details view of a cached archive.
func (s *Session) ShowDetails() (workflow.Details, error) {
	return s.machine.ShowDetails()
}

// CloseDetails leaves the details view.
func (s *Session) CloseDetails() error {
	return s.machine.CloseDetails()
}

// Apply dispatches action to the matching method.
func (s *Session) Apply(ctx context.Context, action workflow.Action) error {
	switch action {
	case workflow.ActionCheck:
		return s.Check(ctx)
	case workflow.ActionProceed:
		return s.Proceed()
	case workflow.ActionRedownload:
		return s.Redownload(ctx)
	case workflow.ActionDownload:
		return s.Download(ctx)
	case workflow.ActionAbort:
		return s.Abort()
	case workflow.ActionShowDetails:
		_, err := s.ShowDetails()
		return err
	case workflow.ActionCloseDetails:
		return s.CloseDetails()
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

// Verify checks the archive against its published digest and signature.
// Missing sidecars are downloaded first. The verification is recomputed on
// every call and recorded in the state ledger. A mismatch is returned both
// in the Result and as a SignatureMismatch error.
func (s *Session) Verify(ctx context.Context) (verify.Result, error) {
	if st := s.machine.State(); st != workflow.StateProceeding {
		return verify.Result{}, kerrors.NewInvalidTransition(string(st), "verify")
	}

	verifier, err := s.engine.Verifier()
	if err != nil {
		return verify.Result{}, err
	}

	entry := s.machine.Entry()
	id := entry.Release.ID()

	if err := s.fetcher.FetchSidecars(s.engine.withDownloadEvents(ctx, id), entry); err != nil {
		return verify.Result{}, err
	}

	expected, err := verify.LoadExpected(entry, s.locator.Sidecars(entry))
	if err != nil {
		return verify.Result{}, err
	}

	result, err := verifier.Verify(ctx, entry, expected)
	if err != nil {
		s.engine.emitEvent(Event{Type: EventVerify, Release: id, Name: entry.Release.ArchiveName, Error: err})
		return result, err
	}

	if err := s.store.Update(func(st *state.State) error {
		st.RecordVerification(entry, result, s.engine.now())
		return nil
	}); err != nil {
		slog.Warn("failed to record verification", "release", id, "error", err)
	}

	err = result.Err()
	s.engine.emitEvent(Event{Type: EventVerify, Release: id, Name: entry.Release.ArchiveName, Error: err})
	return result, err
}

// Extract unpacks the firmware of device from a verified archive.
func (s *Session) Extract(ctx context.Context, verified verify.Result, device string) (extract.Result, error) {
	return extract.New(s.locator.Paths()).Firmware(ctx, s.machine.Entry(), verified, device)
}
