package correction

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

const (
	// confidence assigned when the model answered in prose instead of JSON
	proseConfidence = 0.5
	// confidence assigned when a JSON block was found but did not decode
	brokenJSONConfidence = 0.3
)

// jsonBlockPatterns are tried in order; the first capture wins.
var jsonBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```"),
	regexp.MustCompile("(?s)```\\s*(.*?)\\s*```"),
	regexp.MustCompile(`(?s)(\{.*\})`),
}

type modelOutput struct {
	CorrectedText   string         `json:"corrected_text"`
	Corrections     []Change       `json:"corrections"`
	Confidence      flexFloat      `json:"confidence"`
	ExtractedFields map[string]any `json:"extracted_fields"`
}

// parseResponse extracts the correction JSON from free-form model output.
func parseResponse(raw string) Result {
	res := Result{Corrections: []Change{}, ExtractedFields: map[string]any{}}
	if raw == "" {
		return res
	}

	var block string
	for _, re := range jsonBlockPatterns {
		if m := re.FindStringSubmatch(raw); m != nil {
			block = strings.TrimSpace(m[1])
			break
		}
	}

	if block == "" {
		res.CorrectedText = strings.TrimSpace(raw)
		res.Confidence = proseConfidence
		return res
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		res.CorrectedText = strings.TrimSpace(raw)
		res.Confidence = brokenJSONConfidence
		return res
	}

	res.CorrectedText = out.CorrectedText
	res.Confidence = float64(out.Confidence)
	if out.Corrections != nil {
		res.Corrections = out.Corrections
	}
	if out.ExtractedFields != nil {
		res.ExtractedFields = out.ExtractedFields
	}
	return res
}

// flexFloat accepts both 0.9 and "0.9".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}
