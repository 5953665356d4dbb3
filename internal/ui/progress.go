package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/selfcustody/krux-installer/internal/engine"
	"github.com/selfcustody/krux-installer/internal/workflow"
)

// SessionResults tracks what a non-interactive run did.
type SessionResults struct {
	Downloaded int
	Failed     int
	Verified   bool
	State      workflow.State
}

// ProgressManager draws one bar per downloaded file. Without a terminal
// it prints one line per file instead.
type ProgressManager struct {
	mu                  sync.Mutex
	w                   io.Writer
	isTTY               bool
	progress            *mpb.Progress
	bars                map[string]*mpb.Bar
	downloadHeaderShown bool
}

// NewProgressManager creates a new progress manager.
func NewProgressManager(w io.Writer) *ProgressManager {
	return newProgressManager(w, isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
}

func newProgressManager(w io.Writer, isTTY bool) *ProgressManager {
	pm := &ProgressManager{
		w:     w,
		isTTY: isTTY,
		bars:  make(map[string]*mpb.Bar),
	}
	if isTTY {
		pm.progress = mpb.New(mpb.WithOutput(w), mpb.WithWidth(40))
	}
	return pm
}

// Wait waits for all progress to complete.
func (pm *ProgressManager) Wait() {
	if pm.progress != nil {
		pm.progress.Wait()
	}
}

// HandleEvent handles engine events for progress display.
func (pm *ProgressManager) HandleEvent(event engine.Event, results *SessionResults) {
	switch event.Type {
	case engine.EventStart:
		pm.handleStart(event)
	case engine.EventProgress:
		pm.handleProgress(event)
	case engine.EventComplete:
		pm.handleComplete(event, results)
	case engine.EventError:
		pm.handleError(event, results)
	case engine.EventTransition:
		results.State = event.To
	case engine.EventVerify:
		pm.handleVerify(event, results)
	}
}

func (pm *ProgressManager) handleStart(event engine.Event) {
	style := NewStyle()

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if !pm.downloadHeaderShown && !pm.isTTY {
		fmt.Fprintln(pm.w)
		fmt.Fprintln(pm.w, "Downloads:")
	}
	pm.downloadHeaderShown = true

	if !pm.isTTY {
		fmt.Fprintf(pm.w, "  %s %s\n", style.DownloadMark, style.Path.Sprint(event.Name))
		return
	}

	total := max(event.Total, 0)
	pm.bars[event.Name] = pm.progress.AddBar(total,
		mpb.BarFillerClearOnComplete(),
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("  %s %s ", style.DownloadMark, style.Path.Sprint(event.Name)),
				decor.WC{W: 34, C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f"),
			decor.OnComplete(decor.Name(""), " done"),
		),
	)
}

func (pm *ProgressManager) handleProgress(event engine.Event) {
	if !pm.isTTY {
		return
	}

	pm.mu.Lock()
	bar, ok := pm.bars[event.Name]
	pm.mu.Unlock()

	if ok {
		if event.Total > 0 {
			bar.SetTotal(event.Total, false)
		}
		bar.SetCurrent(event.Downloaded)
	}
}

func (pm *ProgressManager) handleComplete(event engine.Event, results *SessionResults) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.isTTY {
		if bar, ok := pm.bars[event.Name]; ok {
			bar.SetTotal(event.Total, true)
			delete(pm.bars, event.Name)
		}
	}
	results.Downloaded++
}

// handleError aborts every bar still running: a failed fetch cancels all
// of its files.
func (pm *ProgressManager) handleError(event engine.Event, results *SessionResults) {
	style := NewStyle()

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.isTTY {
		for name, bar := range pm.bars {
			bar.Abort(true)
			delete(pm.bars, name)
		}
	}
	fmt.Fprintf(pm.w, "  %s %s failed: %v\n", style.FailMark, event.Name, event.Error)
	results.Failed++
}

func (pm *ProgressManager) handleVerify(event engine.Event, results *SessionResults) {
	style := NewStyle()
	results.Verified = event.Error == nil

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if event.Error != nil {
		fmt.Fprintf(pm.w, "  %s %s: %v\n", style.FailMark, event.Name, event.Error)
		return
	}
	fmt.Fprintf(pm.w, "  %s %s signature verified\n", style.SuccessMark, event.Name)
}

// PrintSessionSummary prints how a non-interactive session ended.
func PrintSessionSummary(w io.Writer, decision workflow.Decision, results *SessionResults) {
	style := NewStyle()

	fmt.Fprintln(w)
	style.Header.Fprintln(w, "Summary:")
	if decision != workflow.DecisionNone {
		fmt.Fprintf(w, "  %s Decision:   %s\n", style.DecisionIcon(decision), decision)
	}
	if results.Downloaded > 0 {
		fmt.Fprintf(w, "  %s Downloaded: %d\n", style.DownloadMark, results.Downloaded)
	}
	if results.Failed > 0 {
		fmt.Fprintf(w, "  %s Failed:     %d\n", style.FailMark, results.Failed)
	}

	fmt.Fprintln(w)
	switch results.State {
	case workflow.StateProceeding:
		style.Success.Fprintln(w, "Ready!")
	case workflow.StateAborted:
		color.New(color.FgYellow, color.Bold).Fprintln(w, "Aborted")
	case workflow.StateFailed:
		color.New(color.FgRed, color.Bold).Fprintln(w, "Failed")
	default:
		fmt.Fprintf(w, "Stopped at %s\n", results.State)
	}
}
