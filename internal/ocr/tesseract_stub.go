//go:build notesseract

package ocr

import (
	"context"
	"fmt"
	"time"
)

// Tesseract is compiled out in notesseract builds and never available.
type Tesseract struct{}

func NewTesseract(string, time.Duration) *Tesseract { return &Tesseract{} }

func (t *Tesseract) Name() string    { return "tesseract" }
func (t *Tesseract) Available() bool { return false }

func (t *Tesseract) Extract(context.Context, []byte) (Result, error) {
	return Result{}, fmt.Errorf("tesseract: %w", ErrUnavailable)
}
