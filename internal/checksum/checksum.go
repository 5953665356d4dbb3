// Package checksum computes archive digests and parses published checksum
// manifests such as krux-<version>.zip.sha256.txt.
package checksum

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Algorithm represents a checksum hash algorithm.
type Algorithm string

const (
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmSHA512 Algorithm = "sha512"
)

// Digest is a lower-case hex encoded hash value.
type Digest string

// Normalize lower-cases and trims d.
func (d Digest) Normalize() Digest {
	return Digest(strings.ToLower(strings.TrimSpace(string(d))))
}

// Equal compares two digests ignoring case.
func (d Digest) Equal(other Digest) bool {
	return d.Normalize() == other.Normalize()
}

// Bytes decodes the hex value.
func (d Digest) Bytes() ([]byte, error) {
	return hex.DecodeString(string(d.Normalize()))
}

// Identifier returns "<algorithm>:<hex>", the form used in diagnostics.
func (d Digest) Identifier(algorithm Algorithm) string {
	return string(algorithm) + ":" + string(d.Normalize())
}

// Parse parses a checksum value in format "algorithm:hash".
func Parse(value string) (Algorithm, Digest, error) {
	algo, hashValue, ok := strings.Cut(value, ":")
	if !ok {
		return "", "", fmt.Errorf("invalid checksum format: expected 'algorithm:hash', got %q", value)
	}

	algorithm := Algorithm(algo)
	switch algorithm {
	case AlgorithmSHA256, AlgorithmSHA512:
	default:
		return "", "", fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}

	if DetectAlgorithm(hashValue) != algorithm || !isHexString(hashValue) {
		return "", "", fmt.Errorf("invalid %s value %q", algorithm, hashValue)
	}

	return algorithm, Digest(hashValue).Normalize(), nil
}

// Calculate calculates the checksum of a file using the given algorithm.
func Calculate(ctx context.Context, filePath string, algorithm Algorithm) (Digest, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return CalculateFromReader(ctx, f, algorithm)
}

// CalculateFromReader calculates the checksum from a reader using the given
// algorithm. The context is checked between reads.
func CalculateFromReader(ctx context.Context, r io.Reader, algorithm Algorithm) (Digest, error) {
	h, err := NewHash(algorithm)
	if err != nil {
		return "", err
	}

	if _, err := CopyWithContext(ctx, h, r); err != nil {
		return "", fmt.Errorf("failed to read data: %w", err)
	}

	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// DetectAlgorithm detects the hash algorithm from the hash length.
func DetectAlgorithm(hashValue string) Algorithm {
	switch len(hashValue) {
	case sha256.Size * 2:
		return AlgorithmSHA256
	case sha512.Size * 2:
		return AlgorithmSHA512
	default:
		return ""
	}
}

// NewHash returns a new hash.Hash for the given algorithm.
func NewHash(algorithm Algorithm) (hash.Hash, error) {
	switch algorithm {
	case AlgorithmSHA256:
		return sha256.New(), nil
	case AlgorithmSHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}

// CopyWithContext copies src to dst and stops with ctx.Err() once ctx is done.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		nr, readErr := src.Read(buf)
		if nr > 0 {
			nw, writeErr := dst.Write(buf[:nr])
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
