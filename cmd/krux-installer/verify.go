package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/selfcustody/krux-installer/internal/engine"
	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/ui"
	"github.com/selfcustody/krux-installer/internal/verify"
	"github.com/selfcustody/krux-installer/internal/workflow"
)

var verifyFormat string

var verifyCmd = &cobra.Command{
	Use:   "verify <version>",
	Short: "Verify a cached archive against its signature",
	Long: `Verify the cached archive of a release against its sha256 manifest and
detached signature. Missing verification files are downloaded; the archive
itself is never downloaded by this command.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateOutput(verifyFormat); err != nil {
			return err
		}
		eng, err := probedEngine(cmd.Context())
		if err != nil {
			return err
		}

		_, result, verifyErr := verifyCached(cmd.Context(), eng, args[0])
		if result.Path == "" {
			return verifyErr
		}

		if err := writeOutput(cmd.OutOrStdout(), verifyFormat, result, func(w io.Writer) error {
			printVerifyResult(w, result)
			return nil
		}); err != nil {
			return err
		}
		return verifyErr
	},
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyFormat, "output", "o", outputText, "Output format: text, json, yaml")
}

// verifyCached proceeds with the cached archive of version and verifies it.
func verifyCached(ctx context.Context, eng *engine.Engine, version string) (*engine.Session, verify.Result, error) {
	s, err := checkedSession(ctx, eng, version)
	if err != nil {
		return nil, verify.Result{}, err
	}
	if s.State() == workflow.StateNotFound {
		return s, verify.Result{}, kerrors.NewNotFound(kerrors.ScopeLocal, s.Entry().LocalPath)
	}
	if err := s.Proceed(); err != nil {
		return s, verify.Result{}, err
	}
	result, err := s.Verify(ctx)
	return s, result, err
}

func printVerifyResult(w io.Writer, r verify.Result) {
	style := ui.NewStyle()
	if r.Verified {
		fmt.Fprintf(w, "%s %s\n", style.SuccessMark, style.Path.Sprint(r.Path))
	} else {
		fmt.Fprintf(w, "%s %s: %s\n", style.FailMark, style.Path.Sprint(r.Path), r.Reason)
	}
	fmt.Fprintf(w, "  backend:  %s\n", r.Backend)
	fmt.Fprintf(w, "  computed: %s\n", r.Computed)
	fmt.Fprintf(w, "  expected: %s\n", r.Expected)
}
