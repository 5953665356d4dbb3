package ui

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/selfcustody/krux-installer/internal/workflow"
)

const (
	progressBarWidth = 20
	progressFull     = '█'
	progressEmpty    = '░'
)

// View implements tea.Model.
// The last frame rendered before tea.Quit persists in the terminal scrollback.
func (m *PromptModel) View() string {
	var b strings.Builder

	entry := m.driver.Entry()
	b.WriteString(titleStyle.Render("krux-installer " + entry.Release.ID()))
	b.WriteByte('\n')
	b.WriteString(m.renderStateLine())
	b.WriteByte('\n')

	for _, name := range m.fileOrder {
		b.WriteString(renderFileLine(m.files[name], m.width))
		b.WriteByte('\n')
	}

	if m.details != nil && m.state == workflow.StateInspectingDetails {
		b.WriteByte('\n')
		b.WriteString(renderDetails(*m.details, m.width))
		b.WriteByte('\n')
	}

	if !m.busy && !m.done {
		if choices := choicesFor(m.state); len(choices) > 0 {
			b.WriteByte('\n')
			b.WriteString(renderChoices(choices, m.cursor))
		}
	}

	if m.err != nil {
		fmt.Fprintf(&b, "\n%s %v\n", failMark, m.err)
	}

	renderLogPanel(&b, m.slogLines, m.width)

	return b.String()
}

func (m *PromptModel) renderStateLine() string {
	label := stateLabel(m.state, shortenPath(m.driver.Entry().LocalPath))
	switch {
	case m.busy:
		return spinnerChars[m.frame] + " " + stateStyle.Render(label)
	case m.state == workflow.StateProceeding:
		return doneMark + " " + label
	case m.state == workflow.StateFailed:
		return failMark + " " + label
	default:
		return "  " + stateStyle.Render(label)
	}
}

// stateLabel returns the sentence shown for state.
func stateLabel(state workflow.State, localPath string) string {
	switch state {
	case workflow.StateIdle, workflow.StateCheckingRemote:
		return "Checking the release"
	case workflow.StateCheckingLocal:
		return "Looking for " + localPath
	case workflow.StateAlreadyDownloaded:
		return localPath + " is already downloaded"
	case workflow.StateNotFound:
		return localPath + " was not found"
	case workflow.StateInspectingDetails:
		return "Details"
	case workflow.StateDownloading:
		return "Downloading"
	case workflow.StateRedownloading:
		return "Downloading again"
	case workflow.StateProceeding:
		return "Ready: " + localPath
	case workflow.StateAborted:
		return "Aborted"
	case workflow.StateFailed:
		return "Failed"
	default:
		return string(state)
	}
}

func renderChoices(choices []choice, cursor int) string {
	var b strings.Builder
	for i, c := range choices {
		mark := " "
		label := choiceStyle.Render(c.label)
		if i == cursor {
			mark = cursorStyle.Render(cursorMark)
			label = cursorStyle.Render(c.label)
		}
		fmt.Fprintf(&b, "%s %s %s\n", mark, label, keyHintStyle.Render("("+c.key+")"))
	}
	return b.String()
}

// renderDetails draws the details overlay.
func renderDetails(d workflow.Details, width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(d.Title))
	b.WriteByte('\n')
	b.WriteString(d.Subtitle)
	b.WriteByte('\n')
	for _, field := range d.Fields() {
		label, value, _ := strings.Cut(field, "\n")
		b.WriteByte('\n')
		b.WriteString(detailsLabelStyle.Render(label))
		b.WriteByte('\n')
		b.WriteString(value)
		b.WriteByte('\n')
	}
	return detailsBoxStyle.Width(max(width-4, 20)).Render(strings.TrimRight(b.String(), "\n"))
}

// renderFileLine renders one download, e.g.
// "  ✓ krux-v22.08.2.zip  ████████████████████  3.1 MiB / 3.1 MiB".
func renderFileLine(f *fileState, width int) string {
	var mark string
	switch {
	case f.err != nil:
		mark = failMark
	case f.done:
		mark = doneMark
	default:
		mark = " "
	}

	prefix := fmt.Sprintf("  %s %s ", mark, f.name)
	suffix := formatSize(f.downloaded)
	if f.total > 0 {
		suffix += " / " + formatSize(f.total)
	}
	bar := renderProgressBar(f.downloaded, f.total)
	return rightAlign(prefix+bar, suffix, width)
}

// renderProgressBar renders a fixed-width bar. An unknown total renders empty.
func renderProgressBar(downloaded, total int64) string {
	filled := 0
	if total > 0 {
		filled = min(int(downloaded*progressBarWidth/total), progressBarWidth)
	}
	return strings.Repeat(string(progressFull), filled) + strings.Repeat(string(progressEmpty), progressBarWidth-filled)
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		kib = 1024
		mib = 1024 * kib
		gib = 1024 * mib
	)

	switch {
	case bytes >= gib:
		return fmt.Sprintf("%.1f GiB", float64(bytes)/float64(gib))
	case bytes >= mib:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/float64(mib))
	case bytes >= kib:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/float64(kib))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// shortenPath replaces the user's home directory with ~.
func shortenPath(p string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return p
	}
	if strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}

// rightAlign places suffix at the right edge of a line of given width.
// Uses width-1 to prevent terminals from wrapping at the exact column boundary.
func rightAlign(prefix, suffix string, width int) string {
	gap := max(width-1-lipgloss.Width(prefix)-lipgloss.Width(suffix), 1)
	return prefix + strings.Repeat(" ", gap) + suffix
}

// renderLogPanel renders the slog log panel if there are log lines.
func renderLogPanel(b *strings.Builder, lines []slogLine, width int) {
	if len(lines) == 0 {
		return
	}

	sep := "── Logs " + strings.Repeat("─", max(width-8, 0))
	b.WriteByte('\n')
	b.WriteString(logSeparatorStyle.Render(sep))
	b.WriteByte('\n')

	for _, line := range lines {
		b.WriteString(slogLineStyle(line.level, fmt.Sprintf(" %s %s", slogLevelLabel(line.level), line.message)))
		b.WriteByte('\n')
	}
}

// slogLevelLabel returns a short label for the log level.
func slogLevelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// slogLineStyle applies color to the entire log line based on level.
func slogLineStyle(level slog.Level, text string) string {
	switch {
	case level >= slog.LevelError:
		return errorLogStyle.Render(text)
	case level >= slog.LevelWarn:
		return warnLogStyle.Render(text)
	case level >= slog.LevelInfo:
		return text
	default:
		return debugLogStyle.Render(text)
	}
}
