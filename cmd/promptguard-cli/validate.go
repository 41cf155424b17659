package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valinor-ai/promptguard/internal/sentinel"
)

const maxStdinBytes = 10 << 20

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a JSON request read from stdin",
		Long: `Reads one JSON object {"prompt": "..."} from stdin and writes the
validation result as JSON to stdout. Exits 1 with {"error": ..., "success": false}
when the input is unusable.`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	prompt, msg := readPrompt(cmd.InOrStdin())
	if msg != "" {
		if err := writeLine(out, sentinel.ErrorResponse{Error: msg, Success: false}); err != nil {
			return err
		}
		return errReported
	}

	res := sentinel.NewValidator(nil).Validate(prompt)
	return writeLine(out, sentinel.NewResponse(res))
}

// readPrompt decodes the request. A non-empty message describes why the
// input was rejected.
func readPrompt(r io.Reader) (string, string) {
	data, err := io.ReadAll(io.LimitReader(r, maxStdinBytes+1))
	if err != nil {
		return "", fmt.Sprintf("reading stdin: %v", err)
	}
	if len(data) > maxStdinBytes {
		return "", "prompt too large"
	}

	var req struct {
		Prompt *string `json:"prompt"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return "", fmt.Sprintf("invalid JSON: %v", err)
	}
	if req.Prompt == nil {
		return "", "prompt is required"
	}
	if strings.TrimSpace(*req.Prompt) == "" {
		return "", "prompt is empty"
	}
	return *req.Prompt, ""
}

func writeLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
