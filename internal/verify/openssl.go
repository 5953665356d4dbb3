package verify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/selfcustody/krux-installer/internal/command"
	"github.com/selfcustody/krux-installer/internal/locator"
)

const opensslVerifiedOK = "Verified OK"

// OpenSSLVerifier delegates the signature check to the openssl binary found
// by the toolchain probe. The digest comparison still runs in-process so the
// Result carries the same identifiers as the native backend.
type OpenSSLVerifier struct {
	binary string
	run    command.RunFunc
}

// OpenSSLOption configures an OpenSSLVerifier.
type OpenSSLOption func(*OpenSSLVerifier)

// WithRunFunc replaces the command runner.
func WithRunFunc(run command.RunFunc) OpenSSLOption {
	return func(v *OpenSSLVerifier) {
		v.run = run
	}
}

// NewOpenSSLVerifier creates an OpenSSLVerifier for the binary at path.
func NewOpenSSLVerifier(path string, opts ...OpenSSLOption) *OpenSSLVerifier {
	v := &OpenSSLVerifier{
		binary: path,
		run:    command.NewRunner("").Run,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs openssl dgst -sha256 -verify <key> -signature <sig> <archive>.
func (v *OpenSSLVerifier) Verify(ctx context.Context, entry locator.CacheEntry, expected Expected) (Result, error) {
	computed, info, err := digestArchive(ctx, entry.LocalPath)
	if err != nil {
		return Result{}, err
	}
	result := newResult(BackendOpenSSL, entry.LocalPath, info, computed, expected.Digest)

	if !computed.Equal(expected.Digest) {
		result.Reason = ReasonDigestMismatch
		return result, nil
	}

	out, err := v.run(ctx, v.binary,
		"dgst", "-sha256",
		"-verify", expected.PublicKeyPath,
		"-signature", expected.SignaturePath,
		entry.LocalPath,
	)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	output := strings.TrimSpace(string(out))
	switch {
	case err == nil && strings.Contains(output, opensslVerifiedOK):
		result.Verified = true
	case strings.Contains(output, "Verification failure"), strings.Contains(output, "Verification Failure"):
		result.Reason = ReasonSignatureMismatch
	case strings.Contains(output, "Error verifying data"), strings.Contains(output, "Error Verifying Data"):
		result.Reason = ReasonMalformed
	case err != nil:
		return Result{}, err
	default:
		result.Reason = "unexpected openssl output: " + output
	}

	slog.Debug("openssl verification finished", "path", entry.LocalPath, "verified", result.Verified, "output", output)
	return result, nil
}
