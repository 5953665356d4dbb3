package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/selfcustody/krux-installer/internal/printer"
)

var (
	listFormat string
	listWide   bool
)

var listCmd = &cobra.Command{
	Use:   "list [version]",
	Short: "List downloaded releases",
	Long: `List the releases recorded in state.json with their last verification.
The ledger is informational; verify always recomputes the signature check.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateOutput(listFormat); err != nil {
			return err
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}

		st, err := eng.Cached()
		if err != nil {
			return err
		}

		return writeOutput(cmd.OutOrStdout(), listFormat, st, func(w io.Writer) error {
			var version string
			if len(args) == 1 {
				version = args[0]
			}
			printer.Ledger(w, st, version, listWide)
			return nil
		})
	},
}

func init() {
	listCmd.Flags().StringVarP(&listFormat, "output", "o", outputText, "Output format: text, json, yaml")
	listCmd.Flags().BoolVar(&listWide, "wide", false, "Show size, digest and verification backend")
}
