package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/selfcustody/krux-installer/internal/printer"
)

var releasesFormat string

var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "List published firmware releases",
	Long: `List the published releases of the configured repository, newest first,
filtered by the versionConstraint of config.cue.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := validateOutput(releasesFormat); err != nil {
			return err
		}
		eng, err := probedEngine(cmd.Context())
		if err != nil {
			return err
		}

		versions, err := eng.ListReleases(cmd.Context())
		if err != nil {
			return err
		}

		return writeOutput(cmd.OutOrStdout(), releasesFormat, versions, func(w io.Writer) error {
			cached, err := eng.Cached()
			if err != nil {
				slog.Debug("state ledger unavailable", "error", err)
			}
			printer.Releases(w, versions, cached)
			return nil
		})
	},
}

func init() {
	releasesCmd.Flags().StringVarP(&releasesFormat, "output", "o", outputText, "Output format: text, json, yaml")
}
