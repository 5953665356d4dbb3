package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/selfcustody/krux-installer/internal/release"
	"github.com/selfcustody/krux-installer/internal/ui"
)

var (
	extractDevice string
	extractFormat string
)

var extractCmd = &cobra.Command{
	Use:   "extract <version> --device <device>",
	Short: "Extract the firmware of a device from a verified archive",
	Long: fmt.Sprintf(`Verify the cached archive of a release and extract the firmware
files of one device next to it.

Devices: %s`, strings.Join(release.Devices, ", ")),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateOutput(extractFormat); err != nil {
			return err
		}
		eng, err := probedEngine(cmd.Context())
		if err != nil {
			return err
		}

		s, verified, err := verifyCached(cmd.Context(), eng, args[0])
		if err != nil {
			return err
		}

		result, err := s.Extract(cmd.Context(), verified, extractDevice)
		if err != nil {
			return err
		}

		return writeOutput(cmd.OutOrStdout(), extractFormat, result, func(w io.Writer) error {
			style := ui.NewStyle()
			fmt.Fprintf(w, "%s %s firmware in %s\n", style.SuccessMark, result.Device, style.Path.Sprint(result.Dir))
			for _, f := range result.Files {
				fmt.Fprintf(w, "  %s\n", f)
			}
			return nil
		})
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractDevice, "device", "", "Target device")
	extractCmd.Flags().StringVarP(&extractFormat, "output", "o", outputText, "Output format: text, json, yaml")
	_ = extractCmd.MarkFlagRequired("device")
	_ = extractCmd.RegisterFlagCompletionFunc("device", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return release.Devices, cobra.ShellCompDirectiveNoFileComp
	})
}
