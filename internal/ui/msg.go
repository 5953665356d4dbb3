package ui

import (
	"log/slog"
	"time"

	"github.com/selfcustody/krux-installer/internal/engine"
	"github.com/selfcustody/krux-installer/internal/workflow"
)

// engineEventMsg wraps an engine.Event as a Bubble Tea message.
type engineEventMsg struct {
	event engine.Event
}

// actionDoneMsg reports the outcome of an action run off the UI goroutine.
type actionDoneMsg struct {
	action workflow.Action
	err    error
}

// tickMsg triggers periodic UI updates (spinner).
type tickMsg time.Time

// slogMsg delivers a structured log record to the TUI model.
type slogMsg struct {
	level   slog.Level
	message string
}
