//go:build !notesseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text through libtesseract.
type Tesseract struct {
	languages []string
	timeout   time.Duration

	once      sync.Once
	available bool
}

// NewTesseract creates an engine for languages in Tesseract's "kor+eng"
// form. Availability is probed on first use.
func NewTesseract(languages string, timeout time.Duration) *Tesseract {
	if languages == "" {
		languages = "kor+eng"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Tesseract{
		languages: strings.Split(languages, "+"),
		timeout:   timeout,
	}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Available() bool {
	t.once.Do(t.probe)
	return t.available
}

// probe runs recognition on a blank image; missing language data fails here.
func (t *Tesseract) probe() {
	blank := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, blank); err != nil {
		return
	}
	if _, err := t.recognize(buf.Bytes()); err != nil {
		slog.Warn("tesseract unavailable", "languages", t.languages, "error", err)
		return
	}
	slog.Info("tesseract available", "version", gosseract.Version(), "languages", t.languages)
	t.available = true
}

func (t *Tesseract) Extract(ctx context.Context, data []byte) (Result, error) {
	if !t.Available() {
		return Result{}, fmt.Errorf("tesseract: %w", ErrUnavailable)
	}

	prepared, info, err := Prepare(data)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		boxes []gosseract.BoundingBox
		err   error
	}
	// A gosseract client is not safe for concurrent use; each call owns one.
	done := make(chan outcome, 1)
	go func() {
		boxes, err := t.recognize(prepared)
		done <- outcome{boxes, err}
	}()

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("tesseract: %w", ctx.Err())
	case out := <-done:
		if out.err != nil {
			return Result{}, fmt.Errorf("tesseract: %w", out.err)
		}
		words := make([]string, len(out.boxes))
		confidences := make([]float64, len(out.boxes))
		for i, b := range out.boxes {
			words[i] = b.Word
			confidences[i] = b.Confidence
		}
		text, conf := meanConfidence(words, confidences)
		return Result{
			Text:       text,
			Confidence: conf,
			Width:      info.Width,
			Height:     info.Height,
			ByteSize:   info.ByteSize,
		}, nil
	}
}

func (t *Tesseract) recognize(img []byte) ([]gosseract.BoundingBox, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, err
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return nil, err
	}
	return client.GetBoundingBoxes(gosseract.RIL_WORD)
}
