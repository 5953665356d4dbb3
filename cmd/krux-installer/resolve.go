package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/selfcustody/krux-installer/internal/locator"
	"github.com/selfcustody/krux-installer/internal/platform"
	"github.com/selfcustody/krux-installer/internal/ui"
)

var resolveFormat string

// resolution is the output of resolve.
type resolution struct {
	Profile  platform.Profile    `json:"profile"`
	Entry    *locator.CacheEntry `json:"entry,omitempty"`
	Sidecars *locator.Sidecars   `json:"sidecars,omitempty"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [version]",
	Short: "Show where releases are cached on this machine",
	Long: `Show the resolved platform profile and, for a version, the local and
remote location of its archive and verification files.

Examples:
  krux-installer resolve
  krux-installer resolve v22.08.2 -o json
  krux-installer resolve latest`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateOutput(resolveFormat); err != nil {
			return err
		}
		eng, err := probedEngine(cmd.Context())
		if err != nil {
			return err
		}

		profile, err := eng.Profile()
		if err != nil {
			return err
		}
		res := resolution{Profile: profile}

		if len(args) == 1 {
			version, err := eng.ResolveVersion(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			loc := eng.Locator(profile)
			entry, err := loc.Locate(eng.Release(version))
			if err != nil {
				return err
			}
			sidecars := loc.Sidecars(entry)
			res.Entry = &entry
			res.Sidecars = &sidecars
		}

		return writeOutput(cmd.OutOrStdout(), resolveFormat, res, func(w io.Writer) error {
			style := ui.NewStyle()
			fmt.Fprintf(w, "OS:             %s\n", res.Profile.OS)
			fmt.Fprintf(w, "Locale:         %s\n", res.Profile.Locale)
			fmt.Fprintf(w, "CI:             %t\n", res.Profile.CI)
			fmt.Fprintf(w, "Documents root: %s\n", style.Path.Sprint(res.Profile.DocumentsRoot))
			if res.Entry == nil {
				return nil
			}

			mark := style.FailMark
			if res.Entry.Exists {
				mark = style.SuccessMark
			}
			fmt.Fprintln(w)
			style.Header.Fprintln(w, res.Entry.Release.ID())
			fmt.Fprintf(w, "  %s local:  %s\n", mark, style.Path.Sprint(res.Entry.LocalPath))
			fmt.Fprintf(w, "    remote: %s\n", res.Entry.RemoteURL)
			for _, a := range res.Sidecars.All() {
				fmt.Fprintf(w, "    %s: %s\n", a.Name, a.LocalPath)
			}
			return nil
		})
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveFormat, "output", "o", outputText, "Output format: text, json, yaml")
}
