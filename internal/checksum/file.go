package checksum

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"fmt"
	"path"
	"strings"
)

// ParseManifest extracts the sha256 digest of archive from a krux
// <archive>.sha256.txt manifest. Releases publish sha256sum output, one
// "<hex>  <name>" line with an optional "*" binary marker before the name.
// A manifest holding only the hash, with no name, is accepted as well.
func ParseManifest(content []byte, archive string) (Digest, error) {
	var (
		lines int
		bare  Digest
	)

	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lines++

		hexValue, name, hasName := strings.Cut(line, " ")
		if !isSHA256Hex(hexValue) {
			return "", fmt.Errorf("line %d: not a sha256 manifest entry", lines)
		}
		if !hasName {
			bare = Digest(hexValue).Normalize()
			continue
		}

		name = strings.TrimPrefix(strings.TrimLeft(name, " "), "*")
		if name == archive || path.Base(name) == archive {
			return Digest(hexValue).Normalize(), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}

	switch {
	case lines == 0:
		return "", fmt.Errorf("manifest is empty")
	case lines == 1 && bare != "":
		return bare, nil
	default:
		return "", fmt.Errorf("no sha256 entry for %s", archive)
	}
}

func isSHA256Hex(s string) bool {
	return len(s) == sha256.Size*2 && isHexString(s)
}

// isHexString checks if a string contains only hexadecimal characters.
func isHexString(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return s != ""
}
