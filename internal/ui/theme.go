package ui

import "github.com/charmbracelet/lipgloss"

var (
	doneMarkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))   // green
	failMarkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))   // red
	titleStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	stateStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))   // cyan
	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))  // light cyan
	choiceStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("252")) // light gray
	keyHintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	detailsLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	detailsBoxStyle   = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("6")).
				Padding(0, 1)
	warnLogStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))   // yellow
	errorLogStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))   // red
	debugLogStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	logSeparatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	cursorMark        = "›"
	doneMark          = doneMarkStyle.Render("✓")
	failMark          = failMarkStyle.Render("✗")
)

// spinnerChars are the braille spinner frames.
var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
