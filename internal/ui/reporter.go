package ui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/selfcustody/krux-installer/internal/engine"
)

const progressThrottleInterval = 100 * time.Millisecond

// sender abstracts tea.Program.Send for testing.
type sender interface {
	Send(msg tea.Msg)
}

// ThrottledReporter bridges engine events to Bubble Tea,
// throttling EventProgress to reduce UI update frequency.
type ThrottledReporter struct {
	target       sender
	mu           sync.Mutex
	lastProgress map[string]time.Time
	now          func() time.Time
}

// NewThrottledReporter creates a reporter that forwards events to the given sender.
func NewThrottledReporter(target sender) *ThrottledReporter {
	return &ThrottledReporter{
		target:       target,
		lastProgress: make(map[string]time.Time),
		now:          time.Now,
	}
}

// HandleEvent processes an engine event, throttling progress events per file.
func (r *ThrottledReporter) HandleEvent(event engine.Event) {
	if event.Type == engine.EventProgress && event.Downloaded != event.Total {
		key := event.Release + "/" + event.Name
		r.mu.Lock()
		last, ok := r.lastProgress[key]
		now := r.now()
		if ok && now.Sub(last) < progressThrottleInterval {
			r.mu.Unlock()
			return
		}
		r.lastProgress[key] = now
		r.mu.Unlock()
	}

	r.target.Send(engineEventMsg{event: event})
}
