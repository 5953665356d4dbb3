// Package ui renders krux-installer sessions: plain progress bars for
// pipes and CI, and an interactive prompt for terminals.
package ui

import (
	"github.com/fatih/color"

	"github.com/selfcustody/krux-installer/internal/workflow"
)

// Style holds common output styling for CLI commands.
type Style struct {
	SuccessMark  string
	FailMark     string
	WarnMark     string
	DownloadMark string
	CachedMark   string
	Header       *color.Color
	Path         *color.Color
	Success      *color.Color
	Step         *color.Color
}

// NewStyle creates a new Style with standard colors.
func NewStyle() *Style {
	return &Style{
		SuccessMark:  color.New(color.FgGreen).Sprint("✓"),
		FailMark:     color.New(color.FgRed).Sprint("✗"),
		WarnMark:     color.New(color.FgYellow).Sprint("⚠"),
		DownloadMark: color.New(color.FgCyan).Sprint("↓"),
		CachedMark:   color.New(color.FgCyan).Sprint("●"),
		Header:       color.New(color.FgCyan, color.Bold),
		Path:         color.New(color.FgCyan),
		Success:      color.New(color.FgGreen, color.Bold),
		Step:         color.New(color.FgYellow),
	}
}

// DecisionIcon returns the icon for a session decision.
func (s *Style) DecisionIcon(d workflow.Decision) string {
	switch d {
	case workflow.DecisionProceedWithCached:
		return s.CachedMark
	case workflow.DecisionDownload, workflow.DecisionRedownload:
		return s.DownloadMark
	case workflow.DecisionAbort:
		return s.WarnMark
	default:
		return " "
	}
}
