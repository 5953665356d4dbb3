package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selfcustody/krux-installer/internal/config"
	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/platform"
	"github.com/selfcustody/krux-installer/internal/verify"
)

func TestEngine_ProbeGate(t *testing.T) {
	t.Parallel()

	t.Run("not probed", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		_, err := h.engine.NewSession(testVersion)
		assert.ErrorIs(t, err, errNotProbed)
	})

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		result, err := h.engine.Probe(context.Background())
		require.NoError(t, err)
		assert.True(t, result.Found)
		assert.Equal(t, "/usr/bin/openssl", result.Path)
		assert.Equal(t, "OpenSSL 3.0.2 15 Mar 2022", result.Version)

		s, err := h.engine.NewSession(testVersion)
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("missing toolchain is fatal", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, WithProber(missingProber()))

		result, err := h.engine.Probe(context.Background())
		assert.ErrorIs(t, err, kerrors.ErrProbeNotFound)
		assert.False(t, result.Found)

		_, err = h.engine.NewSession(testVersion)
		assert.ErrorIs(t, err, kerrors.ErrProbeNotFound)

		// nothing is created under the documents root
		entries, err := os.ReadDir(h.root)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("unsupported os", func(t *testing.T) {
		t.Parallel()
		e := New(config.DefaultConfig(), &config.Env{OS: "plan9"}, WithProber(foundProber()))

		_, err := e.Probe(context.Background())
		assert.ErrorIs(t, err, kerrors.ErrUnsupportedPlatform)
	})
}

func TestEngine_Profile(t *testing.T) {
	t.Parallel()

	home := t.TempDir()

	tests := []struct {
		name     string
		cfg      func(*config.Config)
		env      config.Env
		wantRoot string
		wantErr  error
	}{
		{
			name:     "locale derived",
			env:      config.Env{OS: "linux", Locale: "pt_BR.UTF-8"},
			wantRoot: home + "/Documentos",
		},
		{
			name:     "config locale wins",
			cfg:      func(c *config.Config) { c.Locale = "en" },
			env:      config.Env{OS: "linux", Locale: "pt_BR.UTF-8"},
			wantRoot: home + "/Documents",
		},
		{
			name:     "ci root",
			env:      config.Env{OS: "linux", CI: true},
			wantRoot: "/home/runner",
		},
		{
			name:     "documents root override",
			cfg:      func(c *config.Config) { c.DocumentsRoot = "/srv/krux" },
			env:      config.Env{OS: "linux", CI: true},
			wantRoot: "/srv/krux",
		},
		{
			name:    "unknown locale",
			env:     config.Env{OS: "linux", Locale: "fr_FR.UTF-8"},
			wantErr: kerrors.ErrUnsupportedLocale,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			env := tt.env
			e := New(cfg, &env, WithResolverOptions(platform.WithHome(home)))

			profile, err := e.Profile()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoot, profile.DocumentsRoot)
			assert.Equal(t, env.CI, profile.CI)
		})
	}
}

func TestEngine_NewSessionRejectsInvalidVersion(t *testing.T) {
	t.Parallel()

	h := newHarness(t).probed(t)

	for _, version := range []string{"../../x", "main", "v22.08.2/../.."} {
		_, err := h.engine.NewSession(version)
		assert.ErrorIs(t, err, kerrors.ErrInvalidVersion, version)
	}

	entries, err := os.ReadDir(h.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEngine_SetEventHandlerDuringDownload(t *testing.T) {
	t.Parallel()

	h := newHarness(t).probed(t)
	ctx := context.Background()

	s, err := h.engine.NewSession(testVersion)
	require.NoError(t, err)
	require.NoError(t, s.Check(ctx))

	var received atomic.Int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			h.engine.SetEventHandler(func(Event) { received.Add(1) })
		}
	}()

	require.NoError(t, s.Download(ctx))
	<-done

	_, err = os.Stat(s.Entry().LocalPath)
	require.NoError(t, err)

	before := received.Load()
	h.engine.emitEvent(Event{Type: EventVerify, Release: s.Entry().Release.ID()})
	assert.Equal(t, before+1, received.Load())
}

func TestEngine_ListReleases(t *testing.T) {
	t.Parallel()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/selfcustody/krux/releases" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"tag_name": "v22.03.0"},
			{"tag_name": "v23.09.1"},
			{"tag_name": "v24.03.0", "prerelease": true},
			{"tag_name": "v21.04.0"},
			{"tag_name": "v22.08.2"},
			{"tag_name": "nightly"},
			{"tag_name": "v24.07.0", "draft": true},
		})
	}))
	t.Cleanup(api.Close)

	target, err := url.Parse(api.URL)
	require.NoError(t, err)

	e := New(config.DefaultConfig(), &config.Env{OS: "linux"},
		WithHTTPClient(&http.Client{Transport: rewriteTransport{target: target}}))

	got, err := e.ListReleases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"v23.09.1", "v22.08.2", "v22.03.0"}, got)
}

func TestEngine_ResolveVersion(t *testing.T) {
	t.Parallel()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/selfcustody/krux/releases/latest" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"tag_name": "v23.09.1"})
	}))
	t.Cleanup(api.Close)

	target, err := url.Parse(api.URL)
	require.NoError(t, err)

	e := New(config.DefaultConfig(), &config.Env{OS: "linux"},
		WithHTTPClient(&http.Client{Transport: rewriteTransport{target: target}}))

	got, err := e.ResolveVersion(context.Background(), LatestAlias)
	require.NoError(t, err)
	assert.Equal(t, "v23.09.1", got)

	got, err = e.ResolveVersion(context.Background(), testVersion)
	require.NoError(t, err)
	assert.Equal(t, testVersion, got)
}

func TestEngine_Verifier(t *testing.T) {
	t.Parallel()

	h := newHarness(t).probed(t)

	v, err := h.engine.Verifier()
	require.NoError(t, err)
	assert.IsType(t, &verify.NativeVerifier{}, v)

	h.engine.Config().Verifier = config.VerifierOpenSSL
	v, err = h.engine.Verifier()
	require.NoError(t, err)
	assert.IsType(t, &verify.OpenSSLVerifier{}, v)
}

func TestEngine_Cached(t *testing.T) {
	t.Parallel()

	h := newHarness(t).probed(t)

	st, err := h.engine.Cached()
	require.NoError(t, err)
	assert.Empty(t, st.Releases)

	s, err := h.engine.NewSession(testVersion)
	require.NoError(t, err)
	require.NoError(t, s.Check(context.Background()))
	require.NoError(t, s.Download(context.Background()))

	st, err = h.engine.Cached()
	require.NoError(t, err)
	rec := st.Record(s.Entry().Release.ID())
	require.NotNil(t, rec)
	assert.Equal(t, filepath.Join(h.root, "krux-installer", testVersion, "krux-"+testVersion+".zip"), rec.LocalPath)
	assert.True(t, rec.DownloadedAt.Equal(fixedTime))
	assert.False(t, rec.Verified)
}
