// Package ocr extracts text from images for validation.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnavailable      = errors.New("no OCR engine available")
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// Result is the text extracted from one image. Confidence is the mean
// word confidence on a 0-100 scale; Width and Height describe the image
// as uploaded, before any preprocessing.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	ByteSize   int     `json:"byte_size"`
}

// Engine is an OCR backend.
type Engine interface {
	Name() string
	// Available reports whether the engine can run on this host.
	Available() bool
	// Extract recognizes text in an encoded image.
	Extract(ctx context.Context, data []byte) (Result, error)
}

// Select returns the first available engine in priority order.
func Select(engines ...Engine) (Engine, error) {
	var names []string
	for _, e := range engines {
		if e == nil {
			continue
		}
		if e.Available() {
			return e, nil
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, ErrUnavailable
	}
	return nil, fmt.Errorf("%w (tried %s)", ErrUnavailable, strings.Join(names, ", "))
}

// meanConfidence averages the positive confidences of non-empty words and
// joins those words with single spaces.
func meanConfidence(words []string, confidences []float64) (string, float64) {
	var (
		kept []string
		sum  float64
	)
	for i, w := range words {
		w = strings.TrimSpace(w)
		if w == "" || i >= len(confidences) || confidences[i] <= 0 {
			continue
		}
		kept = append(kept, w)
		sum += confidences[i]
	}
	if len(kept) == 0 {
		return "", 0
	}
	return strings.Join(kept, " "), sum / float64(len(kept))
}
