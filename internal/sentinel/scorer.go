package sentinel

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

const (
	warningThreshold = 15
	dangerThreshold  = 40
	blockedThreshold = 60

	maxCountPenalty = 20
	maxScore        = 100
)

// Score reduces violations to a risk score in [0, 100]: the sum of
// severity times category weight, plus two points per violation (at most
// twenty), rounded to the nearest integer.
func Score(violations []Violation) int {
	if len(violations) == 0 {
		return 0
	}

	var weighted float64
	for _, v := range violations {
		weighted += float64(v.Severity) * v.Category.Weight()
	}
	penalty := min(len(violations)*2, maxCountPenalty)

	score := int(math.Round(weighted + float64(penalty)))
	return max(0, min(maxScore, score))
}

// Classify maps a risk score to its security level.
func Classify(score int) Level {
	switch {
	case score >= blockedThreshold:
		return Blocked
	case score >= dangerThreshold:
		return Danger
	case score >= warningThreshold:
		return Warning
	default:
		return Safe
	}
}

const safeRecommendation = "prompt is safe to use as-is."

// Recommend builds remediation guidance for the given level and violations.
func Recommend(level Level, violations []Violation) string {
	if level == Safe {
		return safeRecommendation
	}

	var b strings.Builder
	switch level {
	case Blocked:
		b.WriteString("BLOCKED: this prompt must not be sent. It contains highly sensitive information.")
	case Danger:
		b.WriteString("DANGER: this prompt contains sensitive information. Revise it before sending.")
	case Warning:
		b.WriteString("WARNING: this prompt may contain sensitive information. Review it before sending.")
	}

	b.WriteString("\n\nDetected ")
	b.WriteString(strconv.Itoa(len(violations)))
	b.WriteString(" issue(s):")
	for _, bucket := range histogram(violations) {
		b.WriteString("\n- ")
		b.WriteString(bucket.category.Label())
		b.WriteString(": ")
		b.WriteString(strconv.Itoa(bucket.count))
	}

	b.WriteString("\n\nBefore sending:")
	b.WriteString("\n1. Remove personal, confidential and system details.")
	b.WriteString("\n2. Replace specific names and values with general descriptions.")
	b.WriteString("\n3. Use placeholder or example data instead of real data.")
	return b.String()
}

type categoryCount struct {
	category Category
	count    int
}

// histogram counts violations per category, most frequent first. Ties keep
// the order in which categories were first seen.
func histogram(violations []Violation) []categoryCount {
	var buckets []categoryCount
	index := make(map[Category]int)
	for _, v := range violations {
		i, ok := index[v.Category]
		if !ok {
			i = len(buckets)
			index[v.Category] = i
			buckets = append(buckets, categoryCount{category: v.Category})
		}
		buckets[i].count++
	}
	slices.SortStableFunc(buckets, func(a, b categoryCount) int {
		return b.count - a.count
	})
	return buckets
}
