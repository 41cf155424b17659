package sentinel

import (
	"strings"
	"time"
)

// Validator runs the full detection pipeline against a Registry.
// A Validator is safe for concurrent use.
type Validator struct {
	registry *Registry
	now      func() time.Time
}

// NewValidator creates a Validator. A nil registry selects DefaultRegistry.
func NewValidator(registry *Registry) *Validator {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Validator{registry: registry, now: time.Now}
}

// Registry returns the rule set this validator uses.
func (v *Validator) Registry() *Registry {
	return v.registry
}

// Validate inspects text and never fails. Empty or whitespace-only input is
// reported safe without running any rule.
func (v *Validator) Validate(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{
			IsSafe:         true,
			Level:          Safe,
			SanitizedText:  text,
			OriginalText:   text,
			Timestamp:      v.now(),
			Recommendation: safeRecommendation,
		}
	}

	violations := Detect(text, v.registry)
	score := Score(violations)
	level := Classify(score)

	return Result{
		IsSafe:         level == Safe,
		Level:          level,
		RiskScore:      score,
		Violations:     violations,
		SanitizedText:  Sanitize(text, violations),
		OriginalText:   text,
		Timestamp:      v.now(),
		Recommendation: Recommend(level, violations),
	}
}
