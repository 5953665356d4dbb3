package engine

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"

	"github.com/selfcustody/krux-installer/internal/config"
	"github.com/selfcustody/krux-installer/internal/platform"
	"github.com/selfcustody/krux-installer/internal/probe"
)

const testVersion = "v22.08.2"

var fixedTime = time.Date(2022, 8, 2, 12, 0, 0, 0, time.UTC)

var (
	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1      = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

type spki struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

func hostOS() platform.OS {
	if filepath.Separator == '\\' {
		return platform.Win32
	}
	return platform.Linux
}

func publicKeyPEM(t *testing.T, pub *secp256k1.PublicKey) []byte {
	t.Helper()

	params, err := asn1.Marshal(oidSecp256k1)
	require.NoError(t, err)
	raw := pub.SerializeUncompressed()
	der, err := asn1.Marshal(spki{
		Algorithm: pkix.AlgorithmIdentifier{Algorithm: oidPublicKeyECDSA, Parameters: asn1.RawValue{FullBytes: params}},
		PublicKey: asn1.BitString{Bytes: raw, BitLength: 8 * len(raw)},
	})
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func firmwareZip(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"krux-" + testVersion + "/maixpy_amigo/kboot.kfpkg":  "kfpkg-amigo",
		"krux-" + testVersion + "/maixpy_amigo/firmware.bin": "bin-amigo",
		"krux-" + testVersion + "/maixpy_dock/kboot.kfpkg":   "kfpkg-dock",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// releaseServer publishes one signed release and the signing key.
type releaseServer struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	gets  map[string]int
}

func newReleaseServer(t *testing.T) *releaseServer {
	t.Helper()

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	archive := firmwareZip(t)
	sum := sha256.Sum256(archive)
	name := "krux-" + testVersion + ".zip"

	rs := &releaseServer{
		gets: map[string]int{},
		files: map[string][]byte{
			"/" + testVersion + "/" + name:                 archive,
			"/" + testVersion + "/" + name + ".sha256.txt": []byte(hex.EncodeToString(sum[:]) + "  " + name + "\n"),
			"/" + testVersion + "/" + name + ".sig":        ecdsa.Sign(priv, sum[:]).Serialize(),
			"/main/selfcustody.pem":                        publicKeyPEM(t, priv.PubKey()),
		},
	}
	rs.Server = httptest.NewServer(http.HandlerFunc(rs.serve))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *releaseServer) serve(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	body, ok := rs.files[r.URL.Path]
	if r.Method == http.MethodGet {
		rs.gets[r.URL.Path]++
	}
	rs.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, _ = w.Write(body)
}

func (rs *releaseServer) set(path string, body []byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.files[path] = body
}

func (rs *releaseServer) remove(path string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.files, path)
}

func (rs *releaseServer) getCount(path string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.gets[path]
}

// rewriteTransport sends every request to target, keeping the path.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func foundProber() *probe.Prober {
	return probe.New(
		probe.WithLookPath(func(string) (string, error) { return "/usr/bin/openssl", nil }),
		probe.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
			return []byte("OpenSSL 3.0.2 15 Mar 2022\n"), nil
		}),
	)
}

func missingProber() *probe.Prober {
	return probe.New(
		probe.WithLookPath(func(string) (string, error) { return "", errors.New("not found") }),
		probe.WithStat(func(string) (os.FileInfo, error) { return nil, fs.ErrNotExist }),
	)
}

type harness struct {
	engine *Engine
	server *releaseServer
	root   string

	mu     sync.Mutex
	events []Event
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	srv := newReleaseServer(t)
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DocumentsRoot = root
	env := &config.Env{OS: string(hostOS()), Locale: "en_US.UTF-8"}

	base := []Option{
		WithHTTPClient(srv.Client()),
		WithProber(foundProber()),
		WithReleaseBaseURL(srv.URL),
		WithPublicKeyURL(srv.URL + "/main/selfcustody.pem"),
		WithClock(func() time.Time { return fixedTime }),
	}
	h := &harness{
		engine: New(cfg, env, append(base, opts...)...),
		server: srv,
		root:   root,
	}
	h.engine.SetEventHandler(func(e Event) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.events = append(h.events, e)
	})
	return h
}

func (h *harness) probed(t *testing.T) *harness {
	t.Helper()
	_, err := h.engine.Probe(context.Background())
	require.NoError(t, err)
	return h
}

func (h *harness) eventsOf(typ EventType) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Event
	for _, e := range h.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
