// Package verify decides whether a cached release archive can be trusted.
// An archive is trusted only when its SHA-256 matches the published manifest
// and the detached signature over it checks out against the signing key.
// Results are recomputed on every call and never persisted as trust.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/selfcustody/krux-installer/internal/checksum"
	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/locator"
)

// Backend names accepted by New.
const (
	BackendNative  = "native"
	BackendOpenSSL = "openssl"
)

// Mismatch reasons.
const (
	ReasonDigestMismatch    = "sha256 mismatch"
	ReasonSignatureMismatch = "signature does not match signing key"
	ReasonMalformed         = "malformed signature"
)

// Expected is the signature bundle published with a release.
type Expected struct {
	// Digest is the sha256 listed in <archive>.sha256.txt.
	Digest checksum.Digest
	// Signature is the DER encoded ECDSA signature from <archive>.sig.
	Signature []byte
	// PublicKey is the PEM encoded signing key.
	PublicKey []byte

	SignaturePath string
	PublicKeyPath string
}

// Result is the outcome of one verification.
type Result struct {
	Verified bool      `json:"verified"`
	Reason   string    `json:"reason,omitempty"`
	Computed string    `json:"computed"`
	Expected string    `json:"expected"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modTime"`
	Backend  string    `json:"backend"`
}

// Err returns a SignatureMismatch error when r is not verified.
func (r Result) Err() error {
	if r.Verified {
		return nil
	}
	return kerrors.NewSignatureMismatch(r.Path, r.Reason, r.Computed, r.Expected)
}

// Matches reports whether r was computed for the file currently described by info.
func (r Result) Matches(path string, info fs.FileInfo) bool {
	return r.Path == path && r.Size == info.Size() && r.ModTime.Equal(info.ModTime())
}

// Verifier checks a cached archive against its expected signature bundle.
// A mismatch is reported in the Result; errors are reserved for I/O failures.
type Verifier interface {
	Verify(ctx context.Context, entry locator.CacheEntry, expected Expected) (Result, error)
}

// New returns the verifier named by backend. opensslPath is only used by
// the openssl backend.
func New(backend, opensslPath string) (Verifier, error) {
	switch backend {
	case "", BackendNative:
		return NewNativeVerifier(), nil
	case BackendOpenSSL:
		if opensslPath == "" {
			return nil, errors.New("openssl backend requires a probed openssl binary")
		}
		return NewOpenSSLVerifier(opensslPath), nil
	default:
		return nil, fmt.Errorf("unknown verifier backend %q", backend)
	}
}

// LoadExpected reads the signature bundle of entry from its cached sidecars.
func LoadExpected(entry locator.CacheEntry, sidecars locator.Sidecars) (Expected, error) {
	manifest, err := readSidecar(sidecars.Checksum.LocalPath)
	if err != nil {
		return Expected{}, err
	}
	digest, err := checksum.ParseManifest(manifest, entry.Release.ArchiveName)
	if err != nil {
		return Expected{}, fmt.Errorf("failed to parse %s: %w", sidecars.Checksum.LocalPath, err)
	}

	sig, err := readSidecar(sidecars.Signature.LocalPath)
	if err != nil {
		return Expected{}, err
	}
	key, err := readSidecar(sidecars.PublicKey.LocalPath)
	if err != nil {
		return Expected{}, err
	}

	return Expected{
		Digest:        digest,
		Signature:     sig,
		PublicKey:     key,
		SignaturePath: sidecars.Signature.LocalPath,
		PublicKeyPath: sidecars.PublicKey.LocalPath,
	}, nil
}

func readSidecar(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, kerrors.NewNotFound(kerrors.ScopeLocal, path)
	case errors.Is(err, fs.ErrPermission):
		return nil, kerrors.NewAccessDenied(path, err)
	default:
		return nil, err
	}
}

// digestArchive hashes the archive of entry and returns the digest along
// with the file metadata observed at open time.
func digestArchive(ctx context.Context, path string) (checksum.Digest, fs.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return "", nil, kerrors.NewNotFound(kerrors.ScopeLocal, path)
		case errors.Is(err, fs.ErrPermission):
			return "", nil, kerrors.NewAccessDenied(path, err)
		}
		return "", nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", nil, err
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("%s is a directory", path)
	}

	digest, err := checksum.CalculateFromReader(ctx, f, checksum.AlgorithmSHA256)
	if err != nil {
		return "", nil, err
	}
	return digest, info, nil
}

func newResult(backend, path string, info fs.FileInfo, computed, expected checksum.Digest) Result {
	return Result{
		Computed: computed.Identifier(checksum.AlgorithmSHA256),
		Expected: expected.Normalize().Identifier(checksum.AlgorithmSHA256),
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Backend:  backend,
	}
}
