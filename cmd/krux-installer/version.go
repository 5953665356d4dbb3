package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// VersionInfo contains version information for the binary.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
			GoVersion: runtime.Version(),
			Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		}

		return writeOutput(cmd.OutOrStdout(), versionFormat, info, func(w io.Writer) error {
			fmt.Fprintf(w, "krux-installer version %s\n", info.Version)
			fmt.Fprintf(w, "  commit:    %s\n", info.Commit)
			fmt.Fprintf(w, "  built:     %s\n", info.BuildDate)
			fmt.Fprintf(w, "  go:        %s\n", info.GoVersion)
			fmt.Fprintf(w, "  platform:  %s\n", info.Platform)
			return nil
		})
	},
}

func init() {
	versionCmd.Flags().StringVarP(&versionFormat, "output", "o", outputText, "Output format (text, json, yaml)")
}
