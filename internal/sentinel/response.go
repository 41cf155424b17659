package sentinel

import "time"

// ViolationJSON is the wire form of a Violation.
type ViolationJSON struct {
	Type        Category `json:"type"`
	Description string   `json:"description"`
	MatchedText string   `json:"matched_text"`
	Position    [2]int   `json:"position"`
	Severity    int      `json:"severity"`
}

// Response is the JSON body returned by every validation surface.
type Response struct {
	Success         bool            `json:"success"`
	IsSafe          bool            `json:"is_safe"`
	SecurityLevel   Level           `json:"security_level"`
	RiskScore       int             `json:"risk_score"`
	Violations      []ViolationJSON `json:"violations"`
	SanitizedPrompt string          `json:"sanitized_prompt"`
	OriginalPrompt  string          `json:"original_prompt"`
	Timestamp       string          `json:"timestamp"`
	Recommendation  string          `json:"recommendation"`
}

// NewResponse converts a Result into its wire form.
func NewResponse(r Result) Response {
	violations := make([]ViolationJSON, 0, len(r.Violations))
	for _, v := range r.Violations {
		violations = append(violations, ViolationJSON{
			Type:        v.Category,
			Description: v.Description,
			MatchedText: v.MatchedText,
			Position:    [2]int{v.Span.Start, v.Span.End},
			Severity:    v.Severity,
		})
	}

	return Response{
		Success:         true,
		IsSafe:          r.IsSafe,
		SecurityLevel:   r.Level,
		RiskScore:       r.RiskScore,
		Violations:      violations,
		SanitizedPrompt: r.SanitizedText,
		OriginalPrompt:  r.OriginalText,
		Timestamp:       r.Timestamp.Format(time.RFC3339Nano),
		Recommendation:  r.Recommendation,
	}
}

// ErrorResponse is returned whenever a request fails before validation.
type ErrorResponse struct {
	Error   string `json:"error"`
	Success bool   `json:"success"`
}
