package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"github.com/sells-group/company-extractor/internal/model"
)

// responseSchema only requires a JSON object; field values are coerced
// afterwards so one odd value does not discard the rest.
var responseSchema = gojsonschema.NewStringLoader(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object"
}`)

// ParseAnalysis extracts the analysis object from a model response. Code
// fences and surrounding prose are ignored; unknown keys are dropped and
// missing, null or blank values become "unknown".
func ParseAnalysis(raw string) (model.Analysis, error) {
	doc := cleanJSON(raw)
	if doc == "" {
		return model.UnknownAnalysis(), eris.New("extract: empty response")
	}

	result, err := gojsonschema.Validate(responseSchema, gojsonschema.NewStringLoader(doc))
	if err != nil {
		return model.UnknownAnalysis(), eris.Wrap(err, "extract: parse response")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.Field()+": "+desc.Description())
		}
		return model.UnknownAnalysis(), eris.Errorf("extract: response is not an object: %s", strings.Join(msgs, "; "))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &fields); err != nil {
		return model.UnknownAnalysis(), eris.Wrap(err, "extract: decode response")
	}

	var a model.Analysis
	for _, key := range model.AnalysisKeys {
		if v, ok := fields[key]; ok {
			a.Set(key, scalarText(v))
		}
	}
	return a.Normalize(), nil
}

// cleanJSON strips markdown fences and any prose around the outermost
// JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// scalarText renders a JSON value as display text: strings as-is, numbers
// and booleans in their JSON form, arrays joined with ", ", objects compacted.
func scalarText(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strings.TrimSpace(string(raw))
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			b, err := json.Marshal(item)
			if err != nil {
				continue
			}
			if s := scalarText(b); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return ""
		}
		return buf.String()
	}
}
