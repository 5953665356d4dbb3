package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

var (
	logLevel    string
	noColor     bool
	errorFormat string
	configDir   string
)

var rootCmd = &cobra.Command{
	Use:   "krux-installer",
	Short: "Resolve, download and verify Krux firmware releases",
	Long: `krux-installer resolves where a Krux firmware release lives on this
machine, downloads it from GitHub when needed and verifies its signature
against the selfcustody signing key before the firmware is used.

The openssl toolchain must be installed; every command that touches the
cache or the network checks for it first.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if noColor {
			color.NoColor = true
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: parseLogLevel(logLevel),
		})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&errorFormat, "error-format", outputText, "Error format: text, json")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Config directory (default ~/.config/krux-installer)")

	rootCmd.AddCommand(
		versionCmd,
		configCmd,
		probeCmd,
		resolveCmd,
		fetchCmd,
		detailsCmd,
		verifyCmd,
		extractCmd,
		releasesCmd,
		listCmd,
	)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
