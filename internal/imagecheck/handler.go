package imagecheck

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/h2non/filetype"
	"github.com/valinor-ai/promptguard/internal/correction"
	"github.com/valinor-ai/promptguard/internal/ocr"
	"github.com/valinor-ai/promptguard/internal/sentinel"
)

// DefaultMaxImageBytes bounds uploaded images.
const DefaultMaxImageBytes = 10 << 20

// multipartOverhead leaves room for boundaries and part headers.
const multipartOverhead = 1 << 20

type imageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Response extends the text validation body with OCR details.
type Response struct {
	sentinel.Response
	ExtractedText string             `json:"extracted_text"`
	OCRConfidence float64            `json:"ocr_confidence"`
	ImageSize     imageSize          `json:"image_size"`
	FileSize      int                `json:"file_size"`
	OCR           OCRReport          `json:"ocr"`
	Correction    *correction.Result `json:"correction,omitempty"`
	TextSource    string             `json:"text_source"`
}

// NewResponse converts an outcome into its wire form.
func NewResponse(out Outcome) Response {
	return Response{
		Response:      sentinel.NewResponse(out.Result),
		ExtractedText: out.OCR.Text,
		OCRConfidence: math.Round(out.OCR.Confidence*100) / 100,
		ImageSize:     imageSize{Width: out.OCR.Width, Height: out.OCR.Height},
		FileSize:      out.OCR.ByteSize,
		OCR:           out.OCR,
		Correction:    out.Correction,
		TextSource:    out.TextSource,
	}
}

// Handler serves POST /api/v1/validate-image.
type Handler struct {
	pipeline *Pipeline
	maxBytes int64
}

// NewHandler creates a Handler. maxBytes <= 0 uses DefaultMaxImageBytes.
func NewHandler(p *Pipeline, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &Handler{pipeline: p, maxBytes: maxBytes}
}

// HandleValidateImage reads the multipart field "image" and runs it
// through the pipeline.
func (h *Handler) HandleValidateImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)

	file, _, err := r.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "image too large")
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, "image is required")
		default:
			writeError(w, http.StatusBadRequest, "invalid multipart form")
		}
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading image failed")
		return
	}
	if int64(len(data)) > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "image too large")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "image is empty")
		return
	}
	if !filetype.IsImage(data) {
		writeError(w, http.StatusBadRequest, "file is not an image")
		return
	}

	out, err := h.pipeline.Run(r.Context(), data)
	if err != nil {
		if errors.Is(err, ocr.ErrUnsupportedImage) {
			writeError(w, http.StatusBadRequest, "unsupported image format")
			return
		}
		slog.Error("image validation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "image validation failed")
		return
	}

	writeJSON(w, http.StatusOK, NewResponse(out))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, sentinel.ErrorResponse{Error: message, Success: false})
}
