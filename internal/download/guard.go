package download

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	kerrors "github.com/selfcustody/krux-installer/internal/errors"
)

// Guard admits at most one download per release at a time. A key is held
// in-process and, when a lock file is given, by an advisory file lock so
// other installer processes are rejected as well.
type Guard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewGuard creates an empty Guard.
func NewGuard() *Guard {
	return &Guard{active: make(map[string]struct{})}
}

// Acquire claims key. It never blocks: a second claim for the same key
// fails with a ConcurrentDownloadRejected error until release is called.
func (g *Guard) Acquire(key, lockFile string) (release func(), err error) {
	g.mu.Lock()
	if _, busy := g.active[key]; busy {
		g.mu.Unlock()
		return nil, kerrors.NewConcurrentDownloadRejected(key, lockFile)
	}
	g.active[key] = struct{}{}
	g.mu.Unlock()

	drop := func() {
		g.mu.Lock()
		delete(g.active, key)
		g.mu.Unlock()
	}

	if lockFile == "" {
		return sync.OnceFunc(drop), nil
	}

	if err := os.MkdirAll(filepath.Dir(lockFile), 0755); err != nil {
		drop()
		return nil, kerrors.NewAccessDenied(filepath.Dir(lockFile), err)
	}

	fl := flock.New(lockFile)
	locked, err := fl.TryLock()
	if err != nil {
		drop()
		return nil, kerrors.NewDownloadFailed(key, err)
	}
	if !locked {
		drop()
		return nil, kerrors.NewConcurrentDownloadRejected(key, lockFile)
	}

	return sync.OnceFunc(func() {
		if err := fl.Unlock(); err != nil {
			slog.Warn("failed to release download lock", "lock", lockFile, "error", err)
		}
		drop()
	}), nil
}

// Busy reports whether key is currently held in this process.
func (g *Guard) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.active[key]
	return ok
}
