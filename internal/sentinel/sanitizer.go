package sentinel

import "slices"

// Mask replaces every detected span in sanitized output.
const Mask = "***"

// Sanitize returns text with every violation span replaced by Mask.
// Overlapping spans are merged first so each masked region is replaced
// exactly once. Touching spans stay separate.
func Sanitize(text string, violations []Violation) string {
	if len(violations) == 0 {
		return text
	}

	runes := []rune(text)
	mask := []rune(Mask)
	// right to left, so earlier offsets stay valid
	for _, iv := range mergeSpans(violations, len(runes)) {
		tail := slices.Clone(runes[iv.End:])
		runes = append(append(runes[:iv.Start], mask...), tail...)
	}
	return string(runes)
}

// mergeSpans orders spans by start descending, ties in reverse detection
// order, and folds overlapping ones together. Spans are clamped to [0, n].
func mergeSpans(violations []Violation, n int) []Span {
	spans := make([]Span, 0, len(violations))
	for i := len(violations) - 1; i >= 0; i-- {
		s := violations[i].Span
		s.Start = max(0, min(s.Start, n))
		s.End = max(s.Start, min(s.End, n))
		spans = append(spans, s)
	}
	slices.SortStableFunc(spans, func(a, b Span) int {
		return b.Start - a.Start
	})

	merged := make([]Span, 0, len(spans))
	for _, s := range spans {
		merged = append(merged, s)
		// the previous interval starts at or after s; fold while they overlap
		for len(merged) > 1 {
			prev, cur := merged[len(merged)-2], merged[len(merged)-1]
			if cur.End <= prev.Start && cur.Start != prev.Start {
				break
			}
			merged = merged[:len(merged)-1]
			merged[len(merged)-1] = Span{Start: min(cur.Start, prev.Start), End: max(cur.End, prev.End)}
		}
	}
	return merged
}
