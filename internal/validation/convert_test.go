package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testweave/testweave/internal/domain"
)

func TestFromRaw(t *testing.T) {
	raw := []map[string]any{
		{
			"test_id":         "TC-001",
			"feature":         "Checkout",
			"test_scenario":   "Submit a valid order",
			"test_steps":      []any{"Fill the email field", "Click submit"},
			"expected_result": "Confirmation message appears",
			"test_type":       "positive",
			"priority":        "high",
			"grounded_in":     "checkout.md",
		},
		{
			"test_id":               "TC-002",
			"test_steps":            "Open the page; Fill the form; Submit",
			"needs_review":          true,
			"_review_reason":        "synthesized from raw output",
			"_fallback_synthesized": true,
		},
	}

	cases := FromRaw(raw)
	require.Len(t, cases, 2)

	first := cases[0]
	assert.Equal(t, "TC-001", first.TestID)
	assert.Equal(t, "Checkout", first.Feature)
	assert.Equal(t, []string{"Fill the email field", "Click submit"}, first.TestSteps)
	assert.Equal(t, domain.TestTypePositive, first.TestType)
	assert.Equal(t, domain.PriorityHigh, first.Priority)
	assert.Equal(t, "checkout.md", first.GroundedIn)
	assert.False(t, first.NeedsReview)
	assert.False(t, first.Synthesized)

	second := cases[1]
	assert.Equal(t, []string{"Open the page", "Fill the form", "Submit"}, second.TestSteps)
	assert.True(t, second.NeedsReview)
	assert.Equal(t, "synthesized from raw output", second.ReviewReason)
	assert.True(t, second.Synthesized)
}

func TestFromRaw_SkipsBlankArraySteps(t *testing.T) {
	raw := []map[string]any{
		{"test_steps": []any{"  Click submit  ", "", "   ", 42, "Verify outcome"}},
	}
	cases := FromRaw(raw)
	require.Len(t, cases, 1)
	assert.Equal(t, []string{"Click submit", "Verify outcome"}, cases[0].TestSteps)
}

func TestCoerceSteps(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "newline delimited",
			raw:  "Open the page\nFill the form\nSubmit",
			want: []string{"Open the page", "Fill the form", "Submit"},
		},
		{
			name: "mixed delimiters",
			raw:  "Open the page > Fill the form | Submit; Check banner",
			want: []string{"Open the page", "Fill the form", "Submit", "Check banner"},
		},
		{
			name: "capped at six",
			raw:  "a1; a2; a3; a4; a5; a6; a7; a8",
			want: []string{"a1", "a2", "a3", "a4", "a5", "a6"},
		},
		{
			name: "empty input falls back",
			raw:  "   \n  ;  ",
			want: []string{"Step 1", "Step 2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceSteps(tt.raw))
		})
	}
}
