// Package probe checks that the OpenSSL toolchain is installed before any
// cache or network operation runs.
package probe

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/selfcustody/krux-installer/internal/command"
	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/platform"
)

const (
	toolName           = "openssl"
	defaultProgramDir  = `C:\Program Files`
	envProgramFiles    = "ProgramFiles"
	pathSearchLocation = "$PATH"
)

// darwinFallbacks are checked when openssl is not on PATH.
var darwinFallbacks = []string{
	"/usr/bin/openssl",
	"/opt/homebrew/bin/openssl",
	"/usr/local/bin/openssl",
}

// Result is the outcome of a probe.
type Result struct {
	OS      platform.OS `json:"os"`
	Found   bool        `json:"found"`
	Path    string      `json:"path,omitempty"`
	Version string      `json:"version,omitempty"`
	Tried   []string    `json:"tried"`
}

// Err returns a ProbeNotFound error when the toolchain is missing.
func (r Result) Err() error {
	if r.Found {
		return nil
	}
	return kerrors.NewProbeNotFound(string(r.OS), toolName, r.Tried)
}

// Prober looks for openssl with injectable lookups.
type Prober struct {
	lookPath func(file string) (string, error)
	stat     func(name string) (os.FileInfo, error)
	run      command.RunFunc
	getenv   func(key string) string
}

// Option configures a Prober.
type Option func(*Prober)

// WithLookPath replaces exec.LookPath.
func WithLookPath(f func(string) (string, error)) Option {
	return func(p *Prober) {
		p.lookPath = f
	}
}

// WithStat replaces os.Stat.
func WithStat(f func(string) (os.FileInfo, error)) Option {
	return func(p *Prober) {
		p.stat = f
	}
}

// WithRunner replaces the command used to read the version.
func WithRunner(f command.RunFunc) Option {
	return func(p *Prober) {
		p.run = f
	}
}

// WithEnv replaces os.Getenv.
func WithEnv(f func(string) string) Option {
	return func(p *Prober) {
		p.getenv = f
	}
}

// New creates a Prober.
func New(opts ...Option) *Prober {
	p := &Prober{
		lookPath: exec.LookPath,
		stat:     os.Stat,
		run:      command.NewRunner("").Run,
		getenv:   os.Getenv,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe runs the detection procedure for target. A missing toolchain is
// reported in the Result; the error is only set when ctx is done.
func (p *Prober) Probe(ctx context.Context, target platform.OS) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{OS: target}, err
	}

	result := Result{OS: target}

	binary, fallbacks := p.candidates(target)

	result.Tried = append(result.Tried, pathSearchLocation)
	if path, err := p.lookPath(binary); err == nil {
		result.Found = true
		result.Path = path
	} else {
		for _, candidate := range fallbacks {
			result.Tried = append(result.Tried, candidate)
			info, err := p.stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			result.Found = true
			result.Path = candidate
			break
		}
	}

	if !result.Found {
		slog.Warn("crypto toolchain not found", "os", target, "tried", result.Tried)
		return result, nil
	}

	out, err := p.run(ctx, result.Path, "version")
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	if err != nil {
		slog.Warn("failed to read openssl version", "path", result.Path, "error", err)
	} else {
		result.Version = strings.TrimSpace(string(out))
	}

	slog.Debug("crypto toolchain found", "os", target, "path", result.Path, "version", result.Version)
	return result, nil
}

func (p *Prober) candidates(target platform.OS) (string, []string) {
	switch target {
	case platform.Darwin:
		return toolName, darwinFallbacks
	case platform.Win32:
		programFiles := p.getenv(envProgramFiles)
		if programFiles == "" {
			programFiles = defaultProgramDir
		}
		return toolName + ".exe", []string{
			platform.Join(platform.Win32, programFiles, "OpenSSL-Win64", "bin", "openssl.exe"),
			platform.Join(platform.Win32, programFiles, "Git", "usr", "bin", "openssl.exe"),
		}
	default:
		return toolName, nil
	}
}
