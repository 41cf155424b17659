package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/valinor-ai/promptguard/internal/correction"
	"github.com/valinor-ai/promptguard/internal/imagecheck"
	"github.com/valinor-ai/promptguard/internal/ocr"
	"github.com/valinor-ai/promptguard/internal/platform/config"
	"github.com/valinor-ai/promptguard/internal/sentinel"
)

var (
	imageJSON      bool
	imageNoCorrect bool
)

// newEngine is replaced in tests.
var newEngine = func(cfg config.OCRConfig) ocr.Engine {
	if !cfg.Enabled {
		return nil
	}
	return ocr.NewTesseract(cfg.Languages, time.Duration(cfg.TimeoutSecs)*time.Second)
}

func newImageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image <file>",
		Short: "Extract text from an image and validate it",
		Long: `Runs OCR on an image file, optionally corrects the recognized text with
the configured inference model, and validates the result.

Supported formats: jpg, png, gif, bmp, tif, webp.`,
		Args: cobra.ExactArgs(1),
		RunE: runImage,
	}
	cmd.Flags().BoolVar(&imageJSON, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVar(&imageNoCorrect, "no-correct", false, "skip OCR correction even when configured")
	return cmd
}

func runImage(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// Keep provider warnings off stdout.
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn})))

	data, err := readImage(args[0], cfg.Limits.MaxImageBytes)
	if err != nil {
		return err
	}

	engine, err := ocr.Select(newEngine(cfg.OCR))
	if err != nil {
		colorYellow.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}

	var corrector imagecheck.Corrector
	if cfg.Correction.Enabled && !imageNoCorrect {
		corrector = correction.New(correction.Config{
			BaseURL:    cfg.Correction.BaseURL,
			APIKey:     cfg.Correction.APIKey,
			Model:      cfg.Correction.Model,
			Timeout:    time.Duration(cfg.Correction.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Correction.MaxRetries,
		})
	}

	pipeline := imagecheck.NewPipeline(engine, corrector, sentinel.NewValidator(nil), nil)
	out, err := pipeline.Run(cmd.Context(), data)
	if err != nil {
		if errors.Is(err, ocr.ErrUnsupportedImage) {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		return err
	}

	w := cmd.OutOrStdout()
	if imageJSON {
		return writeLine(w, imagecheck.NewResponse(out))
	}
	printOCR(w, out)
	printReport(w, out.Result)
	return nil
}

func readImage(path string, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = imagecheck.DefaultMaxImageBytes
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxBytes {
		return nil, fmt.Errorf("%s: image too large (%d bytes, limit %d)", path, fi.Size(), maxBytes)
	}
	return os.ReadFile(path)
}

func printOCR(w io.Writer, out imagecheck.Outcome) {
	colorBold.Fprintln(w, "OCR:")
	engine := out.OCR.Engine
	if engine == "" {
		engine = "none"
	}
	fmt.Fprintf(w, "  engine      %s\n", engine)
	fmt.Fprintf(w, "  image       %dx%d, %d bytes\n", out.OCR.Width, out.OCR.Height, out.OCR.ByteSize)
	if out.OCR.Error != "" {
		colorRed.Fprintf(w, "  error       %s\n", out.OCR.Error)
	} else {
		fmt.Fprintf(w, "  confidence  %.2f\n", out.OCR.Confidence)
	}
	if out.Correction != nil {
		if out.Correction.Success {
			fmt.Fprintf(w, "  corrected   %d change(s)\n", len(out.Correction.Corrections))
		} else {
			colorYellow.Fprintf(w, "  correction  failed: %s\n", out.Correction.Error)
		}
	}
	fmt.Fprintf(w, "  text source %s\n", out.TextSource)
	fmt.Fprintln(w)
}
