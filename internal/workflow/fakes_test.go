package workflow_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/selfcustody/krux-installer/internal/download"
	"github.com/selfcustody/krux-installer/internal/locator"
	"github.com/selfcustody/krux-installer/internal/workflow"
)

func remoteAnswer(exists bool, err error) workflow.RemoteCheckFunc {
	return func(context.Context, string) (bool, error) {
		return exists, err
	}
}

// blockingRemote blocks until ctx is done.
func blockingRemote(started chan<- struct{}) workflow.RemoteCheckFunc {
	return func(ctx context.Context, _ string) (bool, error) {
		close(started)
		<-ctx.Done()
		return false, ctx.Err()
	}
}

type fakeRefresher struct {
	exists bool
	err    error
}

func (f fakeRefresher) Refresh(entry locator.CacheEntry) (locator.CacheEntry, error) {
	entry.Exists = f.exists
	if f.exists {
		entry.SizeBytes = 1024
	}
	return entry, f.err
}

// slowFetcher holds a shared guard for delay and records how many fetches
// overlapped.
type slowFetcher struct {
	guard   *download.Guard
	delay   time.Duration
	err     error
	calls   atomic.Int32
	active  atomic.Int32
	overlap atomic.Int32

	mu      sync.Mutex
	started chan struct{}
}

func newSlowFetcher(guard *download.Guard, delay time.Duration) *slowFetcher {
	return &slowFetcher{guard: guard, delay: delay, started: make(chan struct{})}
}

func (f *slowFetcher) Fetch(ctx context.Context, entry locator.CacheEntry) (locator.CacheEntry, error) {
	release, err := f.guard.Acquire(entry.Release.ID(), "")
	if err != nil {
		return entry, err
	}
	defer release()

	f.calls.Add(1)
	if n := f.active.Add(1); n > 1 {
		f.overlap.Add(1)
	}
	defer f.active.Add(-1)

	f.mu.Lock()
	select {
	case <-f.started:
	default:
		close(f.started)
	}
	f.mu.Unlock()

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return entry, ctx.Err()
	}
	if f.err != nil {
		return entry, f.err
	}
	entry.Exists = true
	entry.SizeBytes = 2048
	return entry, nil
}
