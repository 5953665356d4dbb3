package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	kerrors "github.com/selfcustody/krux-installer/internal/errors"
)

// Store handles state file persistence with file locking.
type Store struct {
	statePath string
	lockPath  string
	fileLock  *flock.Flock
	locked    bool
}

// NewStore creates a Store for statePath guarded by lockPath.
// path.Paths.StateFile and StateLockFile give the default locations.
func NewStore(statePath, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(statePath), 0755); err != nil {
		return nil, kerrors.NewStateError("failed to create state directory", err)
	}

	return &Store{
		statePath: statePath,
		lockPath:  lockPath,
		fileLock:  flock.New(lockPath),
	}, nil
}

// Lock acquires an exclusive lock on the state file.
// It writes the current PID to the lock file on success.
// Returns a StateLocked error if another process holds the lock.
func (s *Store) Lock() error {
	if s.locked {
		return nil
	}

	locked, err := s.fileLock.TryLock()
	if err != nil {
		return kerrors.NewStateError("failed to acquire lock", err)
	}
	if !locked {
		pid, _ := s.readLockPID()
		return kerrors.NewLockError(s.lockPath, pid)
	}

	if err := s.writeLockPID(); err != nil {
		_ = s.fileLock.Unlock()
		return kerrors.NewStateError("failed to write PID to lock file", err)
	}

	s.locked = true
	return nil
}

// Unlock releases the lock.
func (s *Store) Unlock() error {
	if !s.locked {
		return nil
	}

	if err := s.fileLock.Unlock(); err != nil {
		return kerrors.NewStateError("failed to release lock", err)
	}

	s.locked = false
	return nil
}

// Load reads the state from disk.
// Returns a new empty state if the file doesn't exist.
// Must be called after Lock().
func (s *Store) Load() (*State, error) {
	if !s.locked {
		return nil, errors.New("must acquire lock before loading state")
	}

	st, err := s.readState()
	if err != nil {
		return nil, err
	}

	for _, w := range Validate(st).Warnings {
		slog.Warn("state validation warning", "field", w.Field, "message", w.Message)
	}

	return st, nil
}

// Save writes the state to disk atomically.
// Must be called after Lock().
func (s *Store) Save(state *State) error {
	if !s.locked {
		return errors.New("must acquire lock before saving state")
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpPath := s.statePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return kerrors.NewStateError("failed to write temp state file", err)
	}

	if err := os.Rename(tmpPath, s.statePath); err != nil {
		os.Remove(tmpPath)
		return kerrors.NewStateError("failed to rename state file", err)
	}

	return nil
}

// Update locks the store, applies fn to the loaded state and saves it.
// The previous state.json is kept as state.json.bak.
func (s *Store) Update(fn func(*State) error) error {
	if err := s.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := s.Unlock(); err != nil {
			slog.Warn("failed to unlock state", "error", err)
		}
	}()

	st, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	if err := CreateBackup(s); err != nil {
		return kerrors.NewStateError("failed to back up state", err)
	}
	return s.Save(st)
}

// LoadReadOnly reads the state from disk without requiring a lock.
func (s *Store) LoadReadOnly() (*State, error) {
	return s.readState()
}

// readState reads and unmarshals the state file.
// Returns a new empty state if the file doesn't exist. A corrupt file falls
// back to the last backup.
func (s *Store) readState() (*State, error) {
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, kerrors.NewStateError("failed to read state file", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		backup, bakErr := LoadBackup(s.statePath)
		if bakErr != nil || backup == nil {
			return nil, kerrors.NewStateError("failed to parse state file", err)
		}
		slog.Warn("state file is corrupt, using backup", "path", s.statePath, "error", err)
		state = *backup
	}
	if state.Releases == nil {
		state.Releases = make(map[string]*ReleaseRecord)
	}

	return &state, nil
}

// StatePath returns the path to the state file.
func (s *Store) StatePath() string {
	return s.statePath
}

// LockPath returns the path to the lock file.
func (s *Store) LockPath() string {
	return s.lockPath
}

func (s *Store) readLockPID() (int, error) {
	data, err := os.ReadFile(s.lockPath)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func (s *Store) writeLockPID() error {
	pid := os.Getpid()
	return os.WriteFile(s.lockPath, []byte(strconv.Itoa(pid)), 0644)
}
