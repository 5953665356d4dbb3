package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/selfcustody/krux-installer/internal/config"
	"github.com/selfcustody/krux-installer/internal/path"
	"github.com/selfcustody/krux-installer/internal/ui"
)

var (
	configFormat string
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration after config.cue and the environment are applied.

The text format prints CUE that can be saved as config.cue.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), configFormat, cfg, func(w io.Writer) error {
			b, err := cfg.ToCue()
			if err != nil {
				return err
			}
			_, err = w.Write(b)
			return err
		})
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.cue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, env, err := loadConfig()
		if err != nil {
			return err
		}
		dir, err := config.ResolveConfigDir(env)
		if err != nil {
			return err
		}

		target := filepath.Join(dir, config.ConfigFileName)
		if _, err := os.Stat(target); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", target)
		}

		b, err := config.DefaultConfig().ToCue()
		if err != nil {
			return err
		}
		if err := path.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := os.WriteFile(target, b, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}

		style := ui.NewStyle()
		fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", style.SuccessMark, style.Path.Sprint(target))
		return nil
	},
}

func init() {
	configCmd.Flags().StringVarP(&configFormat, "output", "o", outputText, "Output format: text (cue), json, yaml")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config.cue")
	configCmd.AddCommand(configInitCmd)
}
