// Package audit records completed validations. Entries flow through a
// single background worker into one or more sinks (JSONL file, Postgres,
// statistics counters) and never affect the result returned to callers.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/valinor-ai/promptguard/internal/auth"
	"github.com/valinor-ai/promptguard/internal/platform/middleware"
	"github.com/valinor-ai/promptguard/internal/sentinel"
)

const (
	InputText  = "text"
	InputImage = "image"
)

// ViolationSummary is the persisted form of a violation. Matched text is
// omitted so the log never stores the sensitive value itself.
type ViolationSummary struct {
	Type        sentinel.Category `json:"type"`
	Description string            `json:"description"`
	Severity    int               `json:"severity"`
}

// Entry is one validation log record. The original prompt is not kept.
type Entry struct {
	ID              uuid.UUID          `json:"id"`
	Timestamp       time.Time          `json:"timestamp"`
	InputType       string             `json:"input_type"`
	Level           sentinel.Level     `json:"security_level"`
	RiskScore       int                `json:"risk_score"`
	IsSafe          bool               `json:"is_safe"`
	ViolationCount  int                `json:"violation_count"`
	Violations      []ViolationSummary `json:"violations"`
	SanitizedPrompt string             `json:"sanitized_prompt"`
	UserID          string             `json:"user_id,omitempty"`
	Department      string             `json:"department,omitempty"`
	RequestID       string             `json:"request_id,omitempty"`
	OCRConfidence   *float64           `json:"ocr_confidence,omitempty"`
}

// NewEntry builds an entry from an observation, stamping the caller's
// identity and request ID from ctx when present.
func NewEntry(ctx context.Context, obs sentinel.Observation) Entry {
	res := obs.Result
	summaries := make([]ViolationSummary, 0, len(res.Violations))
	for _, v := range res.Violations {
		summaries = append(summaries, ViolationSummary{
			Type:        v.Category,
			Description: v.Description,
			Severity:    v.Severity,
		})
	}

	inputType := obs.Source
	if inputType == "" {
		inputType = InputText
	}
	ts := res.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	e := Entry{
		ID:              uuid.New(),
		Timestamp:       ts,
		InputType:       inputType,
		Level:           res.Level,
		RiskScore:       res.RiskScore,
		IsSafe:          res.IsSafe,
		ViolationCount:  len(res.Violations),
		Violations:      summaries,
		SanitizedPrompt: res.SanitizedText,
		RequestID:       middleware.GetRequestID(ctx),
		OCRConfidence:   obs.OCRConfidence,
	}
	if identity := auth.GetIdentity(ctx); identity != nil {
		e.UserID = identity.UserID
		e.Department = identity.Department
	}
	return e
}

// Logger is the audit logging interface. Log is fire-and-forget.
type Logger interface {
	Log(ctx context.Context, entry Entry)
	Close() error
}

// NopLogger is a no-op audit logger for testing and when audit is disabled.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Entry) {}
func (NopLogger) Close() error               { return nil }

// Recorder adapts a Logger to sentinel.Recorder.
type Recorder struct {
	logger Logger
}

// NewRecorder returns a Recorder writing to logger.
func NewRecorder(logger Logger) *Recorder {
	return &Recorder{logger: logger}
}

// Record implements sentinel.Recorder.
func (r *Recorder) Record(ctx context.Context, obs sentinel.Observation) {
	r.logger.Log(ctx, NewEntry(ctx, obs))
}
