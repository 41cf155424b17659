package sentinel

import (
	"unicode"
	"unicode/utf8"
)

// Detect scans text against every rule in reg. Pattern violations come
// first in rule order then position, followed by keyword violations in
// group, keyword, position order. Overlapping hits are all reported.
func Detect(text string, reg *Registry) []Violation {
	if text == "" || reg == nil {
		return nil
	}

	var violations []Violation
	offsets := runeOffsets(text)

	for _, p := range reg.patterns {
		for _, loc := range p.Regexp.FindAllStringIndex(text, -1) {
			violations = append(violations, Violation{
				Category:    p.Category,
				Description: p.Name + " detected",
				MatchedText: text[loc[0]:loc[1]],
				Span:        Span{Start: offsets[loc[0]], End: offsets[loc[1]]},
				Severity:    p.Severity,
			})
		}
	}

	if len(reg.groups) == 0 {
		return violations
	}

	runes := []rune(text)
	folded := lowerRunes(runes)
	for _, g := range reg.groups {
		for _, kw := range g.Keywords {
			needle := lowerRunes([]rune(kw))
			for from := 0; ; {
				idx := indexRunes(folded, needle, from)
				if idx < 0 {
					break
				}
				violations = append(violations, Violation{
					Category:    g.Category,
					Description: g.Name + ": '" + kw + "' found",
					MatchedText: string(runes[idx : idx+len(needle)]),
					Span:        Span{Start: idx, End: idx + len(needle)},
					Severity:    g.Severity,
				})
				// advance one rune so repeated and overlapping occurrences are all found
				from = idx + 1
			}
		}
	}

	return violations
}

// runeOffsets maps every byte offset of text (plus len(text)) to the rune
// offset of the rune containing it.
func runeOffsets(text string) []int {
	offsets := make([]int, len(text)+1)
	n := 0
	for i := 0; i < len(text); {
		_, size := utf8.DecodeRuneInString(text[i:])
		for j := 0; j < size; j++ {
			offsets[i+j] = n
		}
		i += size
		n++
	}
	offsets[len(text)] = n
	return offsets
}

// lowerRunes lowers each rune independently so rune positions are preserved.
func lowerRunes(runes []rune) []rune {
	out := make([]rune, len(runes))
	for i, r := range runes {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func indexRunes(haystack, needle []rune, from int) int {
	if len(needle) == 0 {
		return -1
	}
	last := len(haystack) - len(needle)
outer:
	for i := from; i <= last; i++ {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
