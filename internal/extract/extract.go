// Package extract unpacks the firmware of one device from a release archive
// that has just been verified.
package extract

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/selfcustody/krux-installer/internal/checksum"
	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/locator"
	"github.com/selfcustody/krux-installer/internal/path"
	"github.com/selfcustody/krux-installer/internal/release"
	"github.com/selfcustody/krux-installer/internal/verify"
)

const (
	// FirmwareFile is the flashable package of a device.
	FirmwareFile = "kboot.kfpkg"
	// BinaryFile is the raw firmware image shipped next to it.
	BinaryFile = "firmware.bin"

	devicePrefix = "maixpy_"
)

// Result lists what was written for a device.
type Result struct {
	Device string   `json:"device"`
	Dir    string   `json:"dir"`
	Files  []string `json:"files"`
}

// Extractor writes device firmware into the cache layout.
type Extractor struct {
	paths *path.Paths
}

// New creates an Extractor for paths.
func New(paths *path.Paths) *Extractor {
	return &Extractor{paths: paths}
}

// Firmware extracts */maixpy_<device>/kboot.kfpkg (and firmware.bin when
// present) from the archive of entry. verified must be a successful
// verification of the exact file on disk: same path, size and mtime.
func (e *Extractor) Firmware(ctx context.Context, entry locator.CacheEntry, verified verify.Result, device string) (Result, error) {
	if !release.IsDevice(device) {
		return Result{}, fmt.Errorf("unknown device %q (supported: %s)", device, strings.Join(release.Devices, ", "))
	}
	if err := verified.Err(); err != nil {
		return Result{}, err
	}

	f, err := os.Open(entry.LocalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, kerrors.NewNotFound(kerrors.ScopeLocal, entry.LocalPath)
		}
		return Result{}, kerrors.NewAccessDenied(entry.LocalPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{}, err
	}
	if !verified.Matches(entry.LocalPath, info) {
		return Result{}, kerrors.NewSignatureMismatch(entry.LocalPath, "archive changed since it was verified", "", verified.Computed)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return Result{}, fmt.Errorf("failed to read zip archive: %w", err)
	}

	destDir := e.paths.ExtractDir(entry.Release, device)
	result := Result{Device: device, Dir: destDir}

	slog.Debug("extracting firmware", "archive", entry.LocalPath, "device", device, "dest", destDir)
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		name, ok := deviceFile(zf.Name, device)
		if !ok {
			continue
		}

		target := filepath.Join(destDir, name)
		if !isInsideDir(destDir, target) {
			return Result{}, fmt.Errorf("invalid file path: %s", zf.Name)
		}

		if err := extractFile(ctx, zf, target); err != nil {
			return Result{}, err
		}
		result.Files = append(result.Files, target)
	}

	if !slices.Contains(result.Files, filepath.Join(destDir, FirmwareFile)) {
		return Result{}, kerrors.NewNotFound(kerrors.ScopeLocal, entry.LocalPath+":*/"+devicePrefix+device+"/"+FirmwareFile)
	}

	slog.Info("firmware extracted", "device", device, "dest", destDir, "files", len(result.Files))
	return result, nil
}

// deviceFile matches <stem>/maixpy_<device>/<file> for the files we ship.
func deviceFile(name, device string) (string, bool) {
	if isOSMetadataPath(name) {
		return "", false
	}
	parts := strings.Split(name, "/")
	if len(parts) != 3 || parts[1] != devicePrefix+device {
		return "", false
	}
	switch parts[0] {
	case "", ".", "..":
		return "", false
	}
	switch parts[2] {
	case FirmwareFile, BinaryFile:
		return parts[2], true
	default:
		return "", false
	}
}

// extractFile writes zf to target through a temporary file in the same
// directory so a partial file never appears under target.
func extractFile(ctx context.Context, zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return kerrors.NewAccessDenied(filepath.Dir(target), err)
	}

	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("failed to open file in archive: %w", err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.tmp")
	if err != nil {
		return kerrors.NewAccessDenied(filepath.Dir(target), err)
	}
	tmpPath := tmp.Name()

	if _, err := checksum.CopyWithContext(ctx, tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", target, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return kerrors.NewAccessDenied(target, err)
	}
	return nil
}

// isOSMetadataPath returns true for entries injected by macOS zip tools.
func isOSMetadataPath(name string) bool {
	return name == "__MACOSX" || name == "__MACOSX/" || strings.HasPrefix(name, "__MACOSX/")
}

// isInsideDir checks if target path is inside the base directory.
func isInsideDir(baseDir, target string) bool {
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && len(rel) > 0 && rel[0] != '.'
}
