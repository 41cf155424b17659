package main

import (
	"errors"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	colorRed    = color.New(color.FgRed, color.Bold)
	colorYellow = color.New(color.FgYellow, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorCyan   = color.New(color.FgCyan)
	colorBold   = color.New(color.Bold)
)

// errReported signals a failure whose message was already written to stdout.
var errReported = errors.New("failure already reported")

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "promptguard-cli",
		Short: "Prompt security validation from the command line",
		Long: `promptguard-cli validates prompts and document images for sensitive
power-utility information before they are sent to an external LLM.

The validate subcommand speaks JSON over stdin/stdout so other programs
can shell out to it; check prints a human-readable report.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to an optional YAML config file")

	root.AddCommand(newValidateCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newImageCmd())
	root.AddCommand(newTokenCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
