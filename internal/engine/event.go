package engine

import (
	"context"

	"github.com/selfcustody/krux-installer/internal/download"
	"github.com/selfcustody/krux-installer/internal/workflow"
)

// EventType represents the type of engine event.
type EventType int

const (
	// EventStart is emitted when a file download starts.
	EventStart EventType = iota
	// EventProgress is emitted during download to report progress.
	EventProgress
	// EventComplete is emitted when a file download succeeds.
	EventComplete
	// EventError is emitted when a release download fails.
	EventError
	// EventTransition is emitted on every workflow state change.
	EventTransition
	// EventVerify is emitted with the outcome of a verification. Error is
	// nil when the archive is authentic.
	EventVerify
)

// Event represents an engine event for progress reporting.
type Event struct {
	Type       EventType
	Release    string
	Name       string
	Error      error
	Downloaded int64          // bytes downloaded (for EventProgress)
	Total      int64          // total bytes (-1 if unknown)
	From       workflow.State // for EventTransition
	To         workflow.State // for EventTransition
}

// EventHandler is a callback for engine events.
type EventHandler func(event Event)

func (e *Engine) handler() EventHandler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.eventHandler
}

// emitEvent emits an event to the handler if set. The handler runs outside
// the lock so it may call back into e.
func (e *Engine) emitEvent(event Event) {
	if h := e.handler(); h != nil {
		h(event)
	}
}

// withDownloadEvents stores download callbacks in ctx that forward to the
// event handler.
func (e *Engine) withDownloadEvents(ctx context.Context, releaseID string) context.Context {
	if e.handler() == nil {
		return ctx
	}
	ctx = download.WithCallback(ctx, download.StartCallback(func(name string, total int64) {
		e.emitEvent(Event{Type: EventStart, Release: releaseID, Name: name, Total: total})
	}))
	ctx = download.WithCallback(ctx, download.ProgressCallback(func(name string, downloaded, total int64) {
		e.emitEvent(Event{Type: EventProgress, Release: releaseID, Name: name, Downloaded: downloaded, Total: total})
	}))
	return download.WithCallback(ctx, download.CompleteCallback(func(name string, size int64) {
		e.emitEvent(Event{Type: EventComplete, Release: releaseID, Name: name, Downloaded: size, Total: size})
	}))
}
