package validation

import (
	"strings"

	"github.com/testweave/testweave/internal/domain"
)

// maxCoercedSteps caps steps recovered from a single delimited string.
const maxCoercedSteps = 6

// FromRaw converts recovered JSON objects into typed test cases. Models
// sometimes emit test_steps as one delimited string instead of an array;
// those are split on newlines, semicolons, pipes, and angle brackets.
func FromRaw(raw []map[string]any) []domain.TestCase {
	cases := make([]domain.TestCase, 0, len(raw))
	for _, obj := range raw {
		tc := domain.TestCase{
			TestID:         asString(obj["test_id"]),
			Feature:        asString(obj["feature"]),
			TestScenario:   asString(obj["test_scenario"]),
			TestSteps:      asSteps(obj["test_steps"]),
			ExpectedResult: asString(obj["expected_result"]),
			TestType:       domain.TestType(asString(obj["test_type"])),
			Priority:       domain.Priority(asString(obj["priority"])),
			GroundedIn:     asString(obj["grounded_in"]),
		}
		if review, ok := obj["needs_review"].(bool); ok && review {
			tc.NeedsReview = true
			tc.ReviewReason = asString(obj["_review_reason"])
		}
		if synth, ok := obj["_fallback_synthesized"].(bool); ok {
			tc.Synthesized = synth
		}
		cases = append(cases, tc)
	}
	return cases
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asSteps(v any) []string {
	switch steps := v.(type) {
	case []any:
		out := make([]string, 0, len(steps))
		for _, s := range steps {
			if str, ok := s.(string); ok && strings.TrimSpace(str) != "" {
				out = append(out, strings.TrimSpace(str))
			}
		}
		return out
	case string:
		return CoerceSteps(steps)
	default:
		return nil
	}
}

// CoerceSteps splits a delimited step string into individual steps.
func CoerceSteps(raw string) []string {
	var out []string
	for _, part := range stepSplitter.Split(raw, -1) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
		if len(out) >= maxCoercedSteps {
			break
		}
	}
	if len(out) == 0 {
		return []string{"Step 1", "Step 2"}
	}
	return out
}
