// Package sentinel inspects free text for sensitive information before it is
// sent to an external AI service. It detects violations with a fixed rule
// registry, scores and classifies the result, and produces a masked copy.
package sentinel

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Category is the kind of sensitive information a violation belongs to.
type Category int

const (
	PersonalInfo Category = iota + 1
	Confidential
	TechnicalInfo
	Organization
	Location
	Financial
	SystemInfo
)

// AllCategories returns every category in declaration order.
func AllCategories() []Category {
	return []Category{PersonalInfo, Confidential, TechnicalInfo, Organization, Location, Financial, SystemInfo}
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	return c >= PersonalInfo && c <= SystemInfo
}

// Code returns the wire identifier, e.g. "personal_info".
func (c Category) Code() string {
	switch c {
	case PersonalInfo:
		return "personal_info"
	case Confidential:
		return "confidential"
	case TechnicalInfo:
		return "technical_info"
	case Organization:
		return "organization"
	case Location:
		return "location"
	case Financial:
		return "financial"
	case SystemInfo:
		return "system_info"
	}
	panic(fmt.Sprintf("sentinel: unknown category %d", int(c)))
}

// Label returns a human readable name.
func (c Category) Label() string {
	switch c {
	case PersonalInfo:
		return "Personal information"
	case Confidential:
		return "Confidential information"
	case TechnicalInfo:
		return "Technical information"
	case Organization:
		return "Organization information"
	case Location:
		return "Location information"
	case Financial:
		return "Financial information"
	case SystemInfo:
		return "System information"
	}
	panic(fmt.Sprintf("sentinel: unknown category %d", int(c)))
}

// Weight is the multiplier applied to a violation's severity when scoring.
func (c Category) Weight() float64 {
	switch c {
	case PersonalInfo:
		return 1.5
	case Confidential:
		return 1.4
	case SystemInfo:
		return 1.3
	case TechnicalInfo:
		return 1.2
	case Financial:
		return 1.1
	case Organization:
		return 1.0
	case Location:
		return 1.0
	}
	panic(fmt.Sprintf("sentinel: unknown category %d", int(c)))
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return c.Code()
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown category %d", int(c))
	}
	return []byte(c.Code()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory converts a wire code back into a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories() {
		if c.Code() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// Level is the ordered security classification of a validated text.
type Level int

const (
	Safe Level = iota
	Warning
	Danger
	Blocked
)

// AllLevels returns every level from least to most severe.
func AllLevels() []Level {
	return []Level{Safe, Warning, Danger, Blocked}
}

func (l Level) Valid() bool {
	return l >= Safe && l <= Blocked
}

// Code returns the wire identifier, e.g. "BLOCKED".
func (l Level) Code() string {
	switch l {
	case Safe:
		return "SAFE"
	case Warning:
		return "WARNING"
	case Danger:
		return "DANGER"
	case Blocked:
		return "BLOCKED"
	}
	panic(fmt.Sprintf("sentinel: unknown level %d", int(l)))
}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return l.Code()
}

func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("unknown level %d", int(l))
	}
	return []byte(l.Code()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel accepts a wire code in any letter case.
func ParseLevel(s string) (Level, error) {
	for _, l := range AllLevels() {
		if strings.EqualFold(l.Code(), s) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown security level %q", s)
}

// Span is a half-open [Start, End) range of rune offsets into the input.
type Span struct {
	Start int
	End   int
}

// Len returns the number of runes covered.
func (s Span) Len() int { return s.End - s.Start }

// Violation is a single detected occurrence of sensitive content.
type Violation struct {
	Category    Category
	Description string
	MatchedText string
	Span        Span
	Severity    int
}

// Result is the aggregate outcome of validating one text.
type Result struct {
	IsSafe         bool
	Level          Level
	RiskScore      int
	Violations     []Violation
	SanitizedText  string
	OriginalText   string
	Timestamp      time.Time
	Recommendation string
}

// Observation is what a Recorder receives after each completed validation.
type Observation struct {
	Source        string // "text" or "image"
	Result        Result
	OCRConfidence *float64
}

// Recorder receives completed validations for logging and statistics.
// Implementations must not block the caller.
type Recorder interface {
	Record(ctx context.Context, obs Observation)
}

// NopRecorder discards every observation (for testing / when audit is disabled).
type NopRecorder struct{}

func (NopRecorder) Record(_ context.Context, _ Observation) {}
