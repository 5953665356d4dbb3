// Package engine wires platform resolution, the toolchain probe, the cache
// locator, the decision workflow and signature verification into sessions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/selfcustody/krux-installer/internal/config"
	"github.com/selfcustody/krux-installer/internal/download"
	"github.com/selfcustody/krux-installer/internal/github"
	"github.com/selfcustody/krux-installer/internal/locator"
	"github.com/selfcustody/krux-installer/internal/path"
	"github.com/selfcustody/krux-installer/internal/platform"
	"github.com/selfcustody/krux-installer/internal/probe"
	"github.com/selfcustody/krux-installer/internal/release"
	"github.com/selfcustody/krux-installer/internal/state"
	"github.com/selfcustody/krux-installer/internal/verify"
)

// errNotProbed is returned when a session is requested before Probe.
var errNotProbed = errors.New("the openssl toolchain has not been probed")

// Engine creates sessions for releases. One Engine is shared by all
// sessions of a process so they also share the download guard.
type Engine struct {
	cfg    *config.Config
	env    *config.Env
	client *http.Client
	prober *probe.Prober
	guard  *download.Guard
	now    func() time.Time

	resolverOpts []platform.Option
	keyURL       string
	baseURL      string

	// mu guards probed and eventHandler.
	mu           sync.Mutex
	probed       *probe.Result
	eventHandler EventHandler
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient replaces the HTTP client used for downloads and API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.client = c
	}
}

// WithProber replaces the toolchain prober.
func WithProber(p *probe.Prober) Option {
	return func(e *Engine) {
		e.prober = p
	}
}

// WithResolverOptions adds platform resolver options such as WithHome.
func WithResolverOptions(opts ...platform.Option) Option {
	return func(e *Engine) {
		e.resolverOpts = append(e.resolverOpts, opts...)
	}
}

// WithClock replaces time.Now for state records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithReleaseBaseURL points downloads at a different release host.
func WithReleaseBaseURL(url string) Option {
	return func(e *Engine) {
		e.baseURL = url
	}
}

// WithPublicKeyURL overrides where the signing key is fetched from.
func WithPublicKeyURL(url string) Option {
	return func(e *Engine) {
		e.keyURL = url
	}
}

// New creates an Engine from the loaded configuration and environment.
func New(cfg *config.Config, env *config.Env, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if env == nil {
		env = config.DetectEnv(os.Getenv)
	}
	e := &Engine{
		cfg:    cfg,
		env:    env,
		prober: probe.New(),
		guard:  download.NewGuard(),
		now:    time.Now,
		keyURL: release.PublicKeyURL(cfg.Owner, cfg.Repo),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = github.NewHTTPClient(env.Token)
	}
	if e.baseURL == "" {
		e.baseURL = release.DownloadBaseURL(cfg.Owner, cfg.Repo)
	}
	return e
}

// SetEventHandler sets a callback for engine events.
// It may be called while downloads are running.
func (e *Engine) SetEventHandler(handler EventHandler) {
	e.mu.Lock()
	e.eventHandler = handler
	e.mu.Unlock()
}

// Config returns the configuration of e.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Probe looks for openssl on the host. It must succeed before any session
// is created; a missing toolchain is returned as a fatal ProbeNotFound error.
func (e *Engine) Probe(ctx context.Context) (probe.Result, error) {
	target, err := platform.ParseOS(e.env.OS)
	if err != nil {
		return probe.Result{}, err
	}

	result, err := e.prober.Probe(ctx, target)
	if err != nil {
		return result, err
	}

	e.mu.Lock()
	e.probed = &result
	e.mu.Unlock()

	if err := result.Err(); err != nil {
		return result, err
	}
	slog.Debug("toolchain found", "path", result.Path, "version", result.Version)
	return result, nil
}

// probeResult returns the gate result or an error when the gate is closed.
func (e *Engine) probeResult() (probe.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.probed == nil {
		return probe.Result{}, errNotProbed
	}
	if err := e.probed.Err(); err != nil {
		return *e.probed, err
	}
	return *e.probed, nil
}

// Profile resolves the platform profile from the environment and the
// configuration overrides.
func (e *Engine) Profile() (platform.Profile, error) {
	locale := e.env.Locale
	if e.cfg.Locale != "" {
		locale = e.cfg.Locale
	}

	opts := []platform.Option{platform.WithCI(e.env.CI)}
	if e.cfg.DocumentsRoot != "" {
		root, err := path.Expand(e.cfg.DocumentsRoot)
		if err != nil {
			return platform.Profile{}, err
		}
		opts = append(opts, platform.WithDocumentsRoot(root))
	}
	opts = append(opts, e.resolverOpts...)

	return platform.Resolve(e.env.OS, locale, opts...)
}

// Release returns the Release of version in the configured repository.
func (e *Engine) Release(version string) release.Release {
	return release.New(version, release.WithRemoteBaseURL(e.baseURL))
}

// Locator returns a Locator for profile.
func (e *Engine) Locator(profile platform.Profile) *locator.Locator {
	return locator.New(path.New(profile), locator.WithPublicKeyURL(e.keyURL))
}

// Store opens the state ledger of profile.
func (e *Engine) Store(profile platform.Profile) (*state.Store, error) {
	paths := path.New(profile)
	return state.NewStore(paths.StateFile(), paths.StateLockFile())
}

// Verifier returns the configured signature backend.
func (e *Engine) Verifier() (verify.Verifier, error) {
	result, err := e.probeResult()
	if err != nil {
		return nil, err
	}
	return verify.New(e.cfg.Verifier, result.Path)
}

// NewSession resolves where version lives and prepares its workflow.
// The toolchain probe gates this call.
func (e *Engine) NewSession(version string) (*Session, error) {
	if _, err := e.probeResult(); err != nil {
		return nil, err
	}
	if err := release.ValidateVersion(version); err != nil {
		return nil, err
	}

	profile, err := e.Profile()
	if err != nil {
		return nil, err
	}
	if err := platform.Ensure(profile); err != nil {
		return nil, err
	}

	loc := e.Locator(profile)
	if err := path.EnsureDir(loc.Paths().ResourcesDir()); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", loc.Paths().ResourcesDir(), err)
	}

	entry, err := loc.Locate(e.Release(version))
	if err != nil {
		return nil, err
	}

	store, err := e.Store(profile)
	if err != nil {
		return nil, err
	}

	return newSession(e, profile, loc, store, entry), nil
}

// ListReleases returns the published versions matching the configured
// constraint, newest first.
func (e *Engine) ListReleases(ctx context.Context) ([]string, error) {
	releases, err := github.ListReleases(ctx, e.client, e.cfg.Owner, e.cfg.Repo)
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(releases))
	for _, r := range releases {
		if r.Prerelease {
			continue
		}
		tags = append(tags, r.TagName)
	}
	return release.FilterVersions(release.SortVersions(tags), e.cfg.VersionConstraint)
}

// LatestAlias is accepted wherever a version is expected.
const LatestAlias = "latest"

// ResolveVersion maps LatestAlias to the tag of the latest published release.
// Other values are returned as given.
func (e *Engine) ResolveVersion(ctx context.Context, version string) (string, error) {
	if version != LatestAlias {
		return version, nil
	}
	tag, err := github.GetLatestRelease(ctx, e.client, e.cfg.Owner, e.cfg.Repo)
	if err != nil {
		return "", err
	}
	slog.Debug("resolved latest release", "version", tag)
	return tag, nil
}

// Cached returns the state ledger of the resolved profile.
func (e *Engine) Cached() (*state.State, error) {
	profile, err := e.Profile()
	if err != nil {
		return nil, err
	}
	store, err := e.Store(profile)
	if err != nil {
		return nil, err
	}
	return store.LoadReadOnly()
}
