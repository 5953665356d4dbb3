package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/selfcustody/krux-installer/internal/locator"
)

// NativeVerifier verifies archives in-process.
type NativeVerifier struct{}

// NewNativeVerifier creates a NativeVerifier.
func NewNativeVerifier() *NativeVerifier {
	return &NativeVerifier{}
}

// Verify hashes the archive, compares the digest with the manifest and then
// checks the detached signature over that digest.
func (v *NativeVerifier) Verify(ctx context.Context, entry locator.CacheEntry, expected Expected) (Result, error) {
	key, err := ParsePublicKeyPEM(expected.PublicKey)
	if err != nil {
		return Result{}, err
	}

	computed, info, err := digestArchive(ctx, entry.LocalPath)
	if err != nil {
		return Result{}, err
	}
	result := newResult(BackendNative, entry.LocalPath, info, computed, expected.Digest)

	if !computed.Equal(expected.Digest) {
		result.Reason = ReasonDigestMismatch
		slog.Warn("archive digest mismatch", "path", entry.LocalPath, "computed", result.Computed, "expected", result.Expected)
		return result, nil
	}

	hash, err := computed.Bytes()
	if err != nil {
		return Result{}, fmt.Errorf("invalid computed digest: %w", err)
	}

	ok, err := key.VerifyDigest(hash, expected.Signature)
	switch {
	case errors.Is(err, errMalformedSignature):
		result.Reason = ReasonMalformed
	case err != nil:
		return Result{}, err
	case !ok:
		result.Reason = ReasonSignatureMismatch
	default:
		result.Verified = true
	}

	slog.Debug("archive verified", "path", entry.LocalPath, "curve", key.Curve(), "verified", result.Verified, "reason", result.Reason)
	return result, nil
}
