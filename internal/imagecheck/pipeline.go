// Package imagecheck validates text found in images: OCR, optional
// correction of OCR errors, then the sentinel validator.
package imagecheck

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/valinor-ai/promptguard/internal/correction"
	"github.com/valinor-ai/promptguard/internal/ocr"
	"github.com/valinor-ai/promptguard/internal/sentinel"
)

// Text sources reported with each outcome.
const (
	SourceOCR       = "ocr"
	SourceCorrected = "corrected"
	SourceNone      = "none"
)

// Corrector fixes OCR errors. It must not fail; a failed correction
// returns the input with Success false.
type Corrector interface {
	Correct(ctx context.Context, text string) correction.Result
}

// OCRReport describes the extraction step.
type OCRReport struct {
	Engine     string  `json:"engine"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	ByteSize   int     `json:"byte_size"`
	Error      string  `json:"error,omitempty"`
}

// Outcome is the result of running one image through the pipeline.
type Outcome struct {
	OCR        OCRReport
	Correction *correction.Result
	TextSource string
	Result     sentinel.Result
}

// Pipeline wires an OCR engine, an optional corrector and the validator.
type Pipeline struct {
	engine    ocr.Engine
	corrector Corrector
	validator *sentinel.Validator
	recorder  sentinel.Recorder
}

// NewPipeline creates a Pipeline. engine may be nil when no OCR backend is
// installed; corrector and recorder are optional.
func NewPipeline(engine ocr.Engine, corrector Corrector, validator *sentinel.Validator, recorder sentinel.Recorder) *Pipeline {
	if recorder == nil {
		recorder = sentinel.NopRecorder{}
	}
	return &Pipeline{engine: engine, corrector: corrector, validator: validator, recorder: recorder}
}

// EngineName returns the configured engine's name, or "" without one.
func (p *Pipeline) EngineName() string {
	if p.engine == nil {
		return ""
	}
	return p.engine.Name()
}

// Run validates the text in data. It returns ocr.ErrUnsupportedImage when
// data is not a readable image. OCR engine failures are reported in the
// outcome and the empty string is validated instead.
func (p *Pipeline) Run(ctx context.Context, data []byte) (Outcome, error) {
	info, err := ocr.Inspect(data)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		OCR: OCRReport{
			Engine:   p.EngineName(),
			Width:    info.Width,
			Height:   info.Height,
			ByteSize: info.ByteSize,
		},
		TextSource: SourceNone,
	}

	var text string
	var confidence *float64
	switch res, err := p.extract(ctx, data); {
	case errors.Is(err, ocr.ErrUnsupportedImage):
		return Outcome{}, err
	case err != nil:
		slog.Warn("ocr failed", "engine", out.OCR.Engine, "error", err)
		out.OCR.Error = err.Error()
	default:
		text = res.Text
		out.OCR.Text = res.Text
		out.OCR.Confidence = res.Confidence
		confidence = &out.OCR.Confidence
		if strings.TrimSpace(text) != "" {
			out.TextSource = SourceOCR
		}
	}

	if p.corrector != nil && out.TextSource == SourceOCR {
		corr := p.corrector.Correct(ctx, text)
		out.Correction = &corr
		if corr.Success && strings.TrimSpace(corr.CorrectedText) != "" {
			text = corr.CorrectedText
			out.TextSource = SourceCorrected
		}
	}

	out.Result = p.validator.Validate(text)
	p.recorder.Record(ctx, sentinel.Observation{
		Source:        "image",
		Result:        out.Result,
		OCRConfidence: confidence,
	})
	return out, nil
}

func (p *Pipeline) extract(ctx context.Context, data []byte) (ocr.Result, error) {
	if p.engine == nil {
		return ocr.Result{}, ocr.ErrUnavailable
	}
	return p.engine.Extract(ctx, data)
}
