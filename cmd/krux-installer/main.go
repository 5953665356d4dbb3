package main

import (
	"os"

	"github.com/selfcustody/krux-installer/internal/errors"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		formatter := errors.NewFormatter(os.Stderr, noColor)
		if errorFormat == outputJSON {
			if b, jsonErr := formatter.FormatJSON(err); jsonErr == nil {
				os.Stderr.Write(append(b, '\n'))
				os.Exit(1)
			}
		}
		os.Stderr.WriteString(formatter.Format(err))
		os.Exit(1)
	}
}
