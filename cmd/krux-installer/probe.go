package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/ui"
)

var probeFormat string

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the openssl toolchain is installed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := validateOutput(probeFormat); err != nil {
			return err
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Probe(cmd.Context())
		if err != nil && !errors.Is(err, kerrors.ErrProbeNotFound) {
			return err
		}

		if outErr := writeOutput(cmd.OutOrStdout(), probeFormat, result, func(w io.Writer) error {
			style := ui.NewStyle()
			if !result.Found {
				fmt.Fprintf(w, "%s openssl not found on %s\n", style.FailMark, result.OS)
				fmt.Fprintf(w, "  tried: %s\n", strings.Join(result.Tried, ", "))
				return nil
			}
			fmt.Fprintf(w, "%s %s\n", style.SuccessMark, style.Path.Sprint(result.Path))
			if result.Version != "" {
				fmt.Fprintf(w, "  %s\n", result.Version)
			}
			return nil
		}); outErr != nil {
			return outErr
		}
		return err
	},
}

func init() {
	probeCmd.Flags().StringVarP(&probeFormat, "output", "o", outputText, "Output format: text, json, yaml")
}
