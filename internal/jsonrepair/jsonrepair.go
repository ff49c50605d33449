// Package jsonrepair recovers structured test cases from imperfect model
// output. Recovery runs as an ordered chain of increasingly aggressive
// extraction stages; the first stage that yields at least one object wins.
package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// StopToken marks the end of model output and is stripped before parsing.
const StopToken = "</END_JSON>"

// maxSecondaryObjects caps how many objects the last-resort scan collects.
const maxSecondaryObjects = 10

var (
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	adjacentObjPattern   = regexp.MustCompile(`}\s*{`)
	arrayPattern         = regexp.MustCompile(`\[[\s\S]*\]`)
	objectPattern        = regexp.MustCompile(`\{[\s\S]*\}`)
	lazyObjectPattern    = regexp.MustCompile(`\{[\s\S]*?\}`)
)

// Repair fixes the JSON defects local models commonly produce: trailing
// commas, adjacent objects missing a separator, unbalanced closers, and a
// bare object where an array was requested.
func Repair(text string) string {
	text = trailingCommaPattern.ReplaceAllString(text, "$1")
	text = adjacentObjPattern.ReplaceAllString(text, "},{")

	if deficit := strings.Count(text, "{") - strings.Count(text, "}"); deficit > 0 {
		text += strings.Repeat("}", deficit)
	}
	if deficit := strings.Count(text, "[") - strings.Count(text, "]"); deficit > 0 {
		text += strings.Repeat("]", deficit)
	}

	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "{") && strings.HasSuffix(cleaned, "}") {
		cleaned = "[" + cleaned + "]"
	}
	return cleaned
}

// Extract pulls the JSON payload out of surrounding prose: the stop token is
// removed, then the widest array is preferred over the widest object. Falls
// back to the input unchanged.
func Extract(text string) string {
	text = strings.ReplaceAll(text, StopToken, "")
	if match := arrayPattern.FindString(text); match != "" {
		return match
	}
	if match := objectPattern.FindString(text); match != "" {
		return match
	}
	return text
}

// AggressiveExtract slices from the first opening bracket to the last closing
// bracket, repairing the result. Returns "[]" when no bracketed region exists.
func AggressiveExtract(raw string) string {
	if start, end := strings.Index(raw, "["), strings.LastIndex(raw, "]"); start != -1 && end > start {
		return Repair(raw[start : end+1])
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start != -1 && end > start {
		return Repair(raw[start : end+1])
	}
	return "[]"
}

// Stage is one attempt at recovering objects from raw model output.
type Stage struct {
	Name    string
	Recover func(raw string) []map[string]any
}

// Recoverer runs the extraction stages in order.
type Recoverer struct {
	stages []Stage
	logger *zap.Logger
}

// NewRecoverer builds the default chain: plain extraction with repair, then
// aggressive bracket slicing, then a per-object scan of the raw text.
func NewRecoverer(logger *zap.Logger) *Recoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recoverer{
		logger: logger,
		stages: []Stage{
			{Name: "extract", Recover: recoverExtract},
			{Name: "aggressive", Recover: recoverAggressive},
			{Name: "secondary", Recover: recoverSecondary},
		},
	}
}

// Recover returns the objects found in raw model output and the name of the
// stage that produced them. An empty slice with stage "" means every stage
// came up dry; the caller decides whether to synthesize a fallback.
func (r *Recoverer) Recover(raw string) ([]map[string]any, string) {
	for _, stage := range r.stages {
		cases := stage.Recover(raw)
		if len(cases) > 0 {
			if stage.Name != r.stages[0].Name {
				r.logger.Warn("json recovery escalated",
					zap.String("stage", stage.Name),
					zap.Int("cases", len(cases)))
			}
			return cases, stage.Name
		}
	}
	r.logger.Warn("json recovery exhausted all stages",
		zap.Int("raw_len", len(raw)))
	return nil, ""
}

func recoverExtract(raw string) []map[string]any {
	return decodeCases(Repair(Extract(raw)))
}

func recoverAggressive(raw string) []map[string]any {
	return decodeCases(AggressiveExtract(raw))
}

// recoverSecondary scans for individual objects with a non-greedy match,
// keeping whichever ones parse after repair.
func recoverSecondary(raw string) []map[string]any {
	var out []map[string]any
	for _, candidate := range lazyObjectPattern.FindAllString(raw, -1) {
		parsed := decodeCases(Repair(candidate))
		out = append(out, parsed...)
		if len(out) >= maxSecondaryObjects {
			return out[:maxSecondaryObjects]
		}
	}
	return out
}

// decodeCases parses text and normalizes the result to a flat slice of
// objects. Models wrap payloads in assorted shapes: a plain array, an object
// with a "test_cases" key, a single object, a JSON string containing more
// JSON, or array items that are themselves stringified objects.
func decodeCases(text string) []map[string]any {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil
	}
	return normalizeValue(value, 0)
}

func normalizeValue(value any, depth int) []map[string]any {
	if depth > 3 {
		return nil
	}

	switch v := value.(type) {
	case []any:
		var out []map[string]any
		for _, item := range v {
			out = append(out, normalizeValue(item, depth+1)...)
		}
		return out
	case map[string]any:
		if nested, ok := v["test_cases"]; ok {
			if cases := normalizeValue(nested, depth+1); len(cases) > 0 {
				return cases
			}
		}
		if len(v) == 0 {
			return nil
		}
		return []map[string]any{v}
	case string:
		stripped := strings.TrimSpace(v)
		looksArray := strings.HasPrefix(stripped, "[") && strings.HasSuffix(stripped, "]")
		looksObject := strings.HasPrefix(stripped, "{") && strings.HasSuffix(stripped, "}")
		if !looksArray && !looksObject {
			return nil
		}
		var nested any
		if err := json.Unmarshal([]byte(Repair(stripped)), &nested); err != nil {
			return nil
		}
		return normalizeValue(nested, depth+1)
	default:
		return nil
	}
}
