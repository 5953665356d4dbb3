package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/selfcustody/krux-installer/internal/engine"
	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/ui"
	"github.com/selfcustody/krux-installer/internal/workflow"
)

var (
	fetchAction   string
	fetchNoVerify bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <version>",
	Short: "Make a release archive available locally and verify it",
	Long: `Check whether a release archive is cached, download it when needed and
verify its signature.

On a terminal without --action, a prompt asks whether to reuse a cached
archive, download it again, inspect its details or abort. Otherwise
--action decides; a cached archive defaults to proceed and a missing one
to download.

Examples:
  krux-installer fetch v22.08.2
  krux-installer fetch v22.08.2 --action redownload
  krux-installer fetch latest --no-verify`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchAction, "action", "", "Decision for the archive: proceed, redownload, download, abort")
	fetchCmd.Flags().BoolVar(&fetchNoVerify, "no-verify", false, "Skip signature verification")
	_ = fetchCmd.RegisterFlagCompletionFunc("action", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"proceed", "redownload", "download", "abort"}, cobra.ShellCompDirectiveNoFileComp
	})
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var action workflow.Action
	if fetchAction != "" {
		a, ok := workflow.ParseAction(fetchAction)
		if !ok || a == workflow.ActionShowDetails || a == workflow.ActionCloseDetails {
			return fmt.Errorf("invalid action %q: must be proceed, redownload, download or abort", fetchAction)
		}
		action = a
	}

	eng, err := probedEngine(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if action == "" && isTTY {
		return runFetchWithPrompt(ctx, eng, args[0], w)
	}
	return runFetchWithProgress(ctx, eng, args[0], action, w)
}

// runFetchWithPrompt asks the user for the decision.
func runFetchWithPrompt(ctx context.Context, eng *engine.Engine, version string, w io.Writer) error {
	s, err := openSession(ctx, eng, version)
	if err != nil {
		return err
	}

	model := ui.NewPromptModel(ctx, s)
	p := tea.NewProgram(model, tea.WithOutput(w), tea.WithContext(ctx))

	prevLogger := slog.Default()
	slog.SetDefault(slog.New(ui.NewTUILogHandler(p, parseLogLevel(logLevel))))
	eng.SetEventHandler(ui.NewThrottledReporter(p).HandleEvent)

	_, runErr := p.Run()

	slog.SetDefault(prevLogger)
	eng.SetEventHandler(nil)

	if runErr != nil {
		return fmt.Errorf("prompt failed: %w", runErr)
	}
	if err := model.Err(); err != nil && s.State() != workflow.StateAborted {
		return err
	}
	if s.State() != workflow.StateProceeding {
		return sessionOutcome(s)
	}
	if fetchNoVerify {
		return nil
	}

	results := &ui.SessionResults{State: s.State()}
	pm := ui.NewProgressManager(w)
	eng.SetEventHandler(func(e engine.Event) { pm.HandleEvent(e, results) })
	_, err = s.Verify(ctx)
	pm.Wait()
	return err
}

// runFetchWithProgress applies action without prompting.
func runFetchWithProgress(ctx context.Context, eng *engine.Engine, version string, action workflow.Action, w io.Writer) error {
	results := &ui.SessionResults{}
	pm := ui.NewProgressManager(w)
	eng.SetEventHandler(func(e engine.Event) { pm.HandleEvent(e, results) })

	s, err := checkedSession(ctx, eng, version)
	if err != nil {
		return err
	}

	if action == "" {
		action = defaultAction(s.State())
	}
	slog.Debug("applying action", "release", s.Entry().Release.ID(), "state", s.State(), "action", action)

	err = s.Apply(ctx, action)
	if err == nil && s.State() == workflow.StateProceeding && !fetchNoVerify {
		_, err = s.Verify(ctx)
	}

	pm.Wait()
	results.State = s.State()
	ui.PrintSessionSummary(w, s.Decision(), results)
	if err != nil {
		return err
	}
	return sessionOutcome(s)
}

// defaultAction returns the non-interactive decision for state.
func defaultAction(state workflow.State) workflow.Action {
	if state == workflow.StateNotFound {
		return workflow.ActionDownload
	}
	return workflow.ActionProceed
}

// sessionOutcome turns a session that did not proceed into an error.
func sessionOutcome(s *engine.Session) error {
	switch s.State() {
	case workflow.StateProceeding, workflow.StateAborted:
		return nil
	case workflow.StateFailed:
		if err := s.Err(); err != nil {
			return err
		}
	}
	return kerrors.NewInvalidTransition(string(s.State()), "fetch")
}
