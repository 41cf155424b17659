package sentinel

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func spans(pairs ...[2]int) []Violation {
	out := make([]Violation, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Violation{Span: Span{Start: p[0], End: p[1]}})
	}
	return out
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		violations []Violation
		want       string
	}{
		{"no violations", "abcdefghij", nil, "abcdefghij"},
		{"disjoint", "abcdefghij", spans([2]int{1, 3}, [2]int{5, 6}), "a***de***ghij"},
		{"adjacent stay separate", "abcdefghij", spans([2]int{1, 3}, [2]int{3, 5}), "a******fghij"},
		{"overlapping", "abcdefghij", spans([2]int{1, 4}, [2]int{2, 6}), "a***ghij"},
		{"nested", "abcdefghij", spans([2]int{1, 8}, [2]int{2, 3}), "a***ij"},
		{"same start", "abcdefghij", spans([2]int{2, 4}, [2]int{2, 3}), "ab***efghij"},
		{"cascading merge", "abcdefghij", spans([2]int{0, 2}, [2]int{4, 6}, [2]int{1, 5}), "***ghij"},
		{"multibyte", "홍길동 부장님", spans([2]int{0, 3}), "*** 부장님"},
		{"clamped to text", "abcdefghij", spans([2]int{8, 20}), "abcdefgh***"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sanitize(tc.text, tc.violations))
		})
	}
}

func TestSanitize_SCADAPrompt(t *testing.T) {
	text := "SCADA 시스템 IP주소 192.168.1.100, 관리자 비밀번호는 admin1234입니다."
	got := Sanitize(text, Detect(text, DefaultRegistry()))
	assert.Equal(t, "*** 시스템 IP주소 ***, 관리자 ***", got)
}

// For disjoint spans every span becomes the mask and everything else is
// kept in order.
func TestSanitize_DisjointRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	alphabet := []rune("ab가나 1-")

	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.IntN(40)
		runes := make([]rune, n)
		for i := range runes {
			runes[i] = alphabet[rng.IntN(len(alphabet))]
		}
		text := string(runes)

		var violations []Violation
		for pos := 0; pos < n; {
			start := pos + rng.IntN(4)
			if start >= n {
				break
			}
			end := start + 1 + rng.IntN(3)
			if end > n {
				end = n
			}
			violations = append(violations, Violation{Span: Span{Start: start, End: end}})
			pos = end
		}
		rng.Shuffle(len(violations), func(i, j int) {
			violations[i], violations[j] = violations[j], violations[i]
		})

		got := Sanitize(text, violations)

		wantLen := n
		for _, v := range violations {
			wantLen += len([]rune(Mask)) - v.Span.Len()
		}
		assert.Equal(t, wantLen, len([]rune(got)), "text %q", text)
		assert.Equal(t, len(violations), strings.Count(got, Mask), "text %q", text)

		// rebuild the expected output left to right
		covered := make([]bool, n)
		starts := make(map[int]bool)
		for _, v := range violations {
			starts[v.Span.Start] = true
			for i := v.Span.Start; i < v.Span.End; i++ {
				covered[i] = true
			}
		}
		var want strings.Builder
		for i, r := range runes {
			if starts[i] {
				want.WriteString(Mask)
			}
			if !covered[i] {
				want.WriteRune(r)
			}
		}
		assert.Equal(t, want.String(), got, "text %q", text)
	}
}
