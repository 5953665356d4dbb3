package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/selfcustody/krux-installer/internal/ui"
)

var detailsFormat string

var detailsCmd = &cobra.Command{
	Use:   "details <version>",
	Short: "Show where a cached archive came from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateOutput(detailsFormat); err != nil {
			return err
		}
		eng, err := probedEngine(cmd.Context())
		if err != nil {
			return err
		}
		s, err := checkedSession(cmd.Context(), eng, args[0])
		if err != nil {
			return err
		}

		details, err := s.ShowDetails()
		if err != nil {
			return err
		}
		if err := s.CloseDetails(); err != nil {
			return err
		}

		return writeOutput(cmd.OutOrStdout(), detailsFormat, details, func(w io.Writer) error {
			ui.NewStyle().Header.Fprintln(w, details.Title)
			fmt.Fprintln(w, details.Subtitle)
			fmt.Fprintln(w)
			fmt.Fprintln(w, details.String())
			return nil
		})
	},
}

func init() {
	detailsCmd.Flags().StringVarP(&detailsFormat, "output", "o", outputText, "Output format: text, json, yaml")
}
