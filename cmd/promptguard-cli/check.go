package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/valinor-ai/promptguard/internal/sentinel"
)

var (
	checkFile   string
	checkFailOn string
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [text...]",
		Short: "Print a human-readable report for a prompt",
		Long: `Validates the prompt given as arguments, read from --file, or read from
stdin when neither is given, and prints a colored report.

With --fail-on the command exits 1 when the security level is at or above
the given level (SAFE, WARNING, DANGER, BLOCKED).`,
		Example: `  promptguard-cli check "SCADA 관리자 비밀번호는 admin1234"
  promptguard-cli check --file draft.txt --fail-on DANGER`,
		RunE: runCheck,
	}
	cmd.Flags().StringVarP(&checkFile, "file", "f", "", "read the prompt from a file")
	cmd.Flags().StringVar(&checkFailOn, "fail-on", "", "exit 1 at or above this security level")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	var failOn *sentinel.Level
	if checkFailOn != "" {
		l, err := sentinel.ParseLevel(checkFailOn)
		if err != nil {
			return err
		}
		failOn = &l
	}

	text, err := checkInput(cmd, args)
	if err != nil {
		return err
	}

	res := sentinel.NewValidator(nil).Validate(text)
	printReport(cmd.OutOrStdout(), res)

	if failOn != nil && res.Level >= *failOn {
		return errReported
	}
	return nil
}

func checkInput(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case len(args) > 0 && checkFile != "":
		return "", fmt.Errorf("give the prompt as arguments or --file, not both")
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case checkFile != "":
		data, err := os.ReadFile(checkFile)
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxStdinBytes))
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func levelColor(l sentinel.Level) *color.Color {
	switch l {
	case sentinel.Safe:
		return colorGreen
	case sentinel.Warning:
		return colorYellow
	}
	return colorRed
}

func printReport(w io.Writer, res sentinel.Result) {
	levelColor(res.Level).Fprintf(w, "%s  risk score %d/100\n", res.Level.Code(), res.RiskScore)
	fmt.Fprintln(w)

	if len(res.Violations) == 0 {
		colorGreen.Fprintln(w, "No violations found.")
	} else {
		colorBold.Fprintf(w, "Violations (%d):\n", len(res.Violations))
		for _, v := range res.Violations {
			fmt.Fprintf(w, "  [%2d] %-18s %-28s %q @ %d-%d\n",
				v.Severity, v.Category.Code(), v.Description, v.MatchedText, v.Span.Start, v.Span.End)
		}
	}
	fmt.Fprintln(w)

	colorCyan.Fprintln(w, "Sanitized:")
	fmt.Fprintf(w, "  %s\n", res.SanitizedText)
	fmt.Fprintln(w)
	colorCyan.Fprintln(w, "Recommendation:")
	for _, line := range strings.Split(res.Recommendation, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
}
