package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/config"
	"github.com/testweave/testweave/internal/domain"
)

func testPipeline() *Pipeline {
	cfg := config.GenerationConfig{
		MaxTestCases:    10,
		MinQualityScore: 0.5,
		ReviewThreshold: 0.65,
	}
	return NewPipeline(cfg, nil, zap.NewNop())
}

func docChunks() []domain.Chunk {
	return []domain.Chunk{
		{Source: "pricing.md", Text: "Standard shipping costs $5.00. The discount code SAVE15 grants 15% off orders above $25."},
		{Source: "returns.md", Text: "Returns are accepted within 30 days of delivery."},
	}
}

func solidCase() domain.TestCase {
	return domain.TestCase{
		TestID:       "TC-001",
		Feature:      "Discount Codes",
		TestScenario: "Apply the SAVE15 discount code to an order above the threshold",
		TestSteps: []string{
			"Enter a quantity that brings the order total above $25",
			"Enter SAVE15 in the promo code field and click apply",
			"Proceed to the order summary page",
		},
		ExpectedResult: "Order total is reduced by 15% and the discount line shows SAVE15",
		TestType:       domain.TestTypePositive,
		Priority:       domain.PriorityHigh,
		GroundedIn:     "pricing.md",
	}
}

func TestEnforceSchema_FillsPlaceholders(t *testing.T) {
	p := testPipeline()
	tc := domain.TestCase{}

	issues := p.EnforceSchema(&tc, docChunks())

	assert.Equal(t, "[MISSING: test_id]", tc.TestID)
	assert.Equal(t, "[MISSING: feature]", tc.Feature)
	assert.Equal(t, []string{"[MISSING: test_steps]"}, tc.TestSteps)
	assert.Equal(t, domain.TestTypePositive, tc.TestType)
	assert.Equal(t, domain.PriorityMedium, tc.Priority)
	assert.Equal(t, "pricing.md", tc.GroundedIn, "grounding backfilled from first chunk")
	assert.Contains(t, issues, "missing:test_id")
	assert.Contains(t, issues, "missing:test_steps")
}

func TestEnforceSchema_CoercesInvalidEnums(t *testing.T) {
	p := testPipeline()
	tc := solidCase()
	tc.TestType = "destructive"
	tc.Priority = "urgent"

	p.EnforceSchema(&tc, nil)
	assert.Equal(t, domain.TestTypePositive, tc.TestType)
	assert.Equal(t, domain.PriorityMedium, tc.Priority)
}

func TestEnforceSchema_NoChunksDefaultGrounding(t *testing.T) {
	p := testPipeline()
	tc := solidCase()
	tc.GroundedIn = ""

	p.EnforceSchema(&tc, nil)
	assert.Equal(t, "document.txt", tc.GroundedIn)
}

func TestDetectHallucinations_FabricatedPrice(t *testing.T) {
	p := testPipeline()
	tc := solidCase()
	tc.ExpectedResult = "Order total becomes $18.00 after the discount"

	p.DetectHallucinations(context.Background(), &tc, lowerContext())
	assert.True(t, tc.Drop)
	assert.Contains(t, tc.DropReason, "$18.00")
}

func TestDetectHallucinations_GroundedValuesPass(t *testing.T) {
	p := testPipeline()
	tc := solidCase()

	p.DetectHallucinations(context.Background(), &tc, lowerContext())
	assert.False(t, tc.Drop)
}

func TestDetectHallucinations_BlacklistedCodesIgnored(t *testing.T) {
	p := testPipeline()
	tc := solidCase()
	tc.TestSteps = append(tc.TestSteps, "Send an HTTP POST request and expect JSON")

	p.DetectHallucinations(context.Background(), &tc, lowerContext())
	assert.False(t, tc.Drop)
}

func TestDetectHallucinations_CodesSkippedForNegative(t *testing.T) {
	p := testPipeline()
	tc := solidCase()
	tc.TestType = domain.TestTypeNegative
	tc.TestScenario = "Apply the invalid code BOGUS99 and expect rejection"
	tc.TestSteps = []string{"Enter BOGUS99 in the promo code field"}
	tc.ExpectedResult = "An error message appears and no discount is applied"

	p.DetectHallucinations(context.Background(), &tc, lowerContext())
	assert.False(t, tc.Drop, "invented codes are the point of negative cases")
}

func TestDetectHallucinations_PriceDotZeroZeroNormalized(t *testing.T) {
	p := testPipeline()
	tc := solidCase()
	// Context has "$25" without decimals; "$25.00" should still match.
	tc.ExpectedResult = "Discount applies for totals above $25.00"

	p.DetectHallucinations(context.Background(), &tc, lowerContext())
	assert.False(t, tc.Drop)
}

func TestDetectHallucinations_ZeroPriceWithoutMatcherDrops(t *testing.T) {
	p := testPipeline()
	tc := solidCase()
	tc.ExpectedResult = "Shipping is charged at $0"

	p.DetectHallucinations(context.Background(), &tc, lowerContext())
	assert.True(t, tc.Drop, "no matcher means no zero-cost exemption")
}

func TestHasVerbatimEvidence(t *testing.T) {
	p := testPipeline()

	tc := solidCase()
	assert.True(t, p.HasVerbatimEvidence(context.Background(), &tc, lowerContext()))

	tc.TestScenario = "Apply the PHANTOM code"
	tc.TestSteps = []string{"Enter PHANTOM in the field"}
	tc.ExpectedResult = "Discount applied"
	assert.False(t, p.HasVerbatimEvidence(context.Background(), &tc, lowerContext()))

	plain := domain.TestCase{
		TestScenario:   "Submit the form with valid data",
		TestSteps:      []string{"Fill the email field", "Click submit"},
		ExpectedResult: "A confirmation message appears",
	}
	assert.True(t, p.HasVerbatimEvidence(context.Background(), &plain, lowerContext()),
		"cases with no evidence tokens pass by default")
}

func TestQualityScore(t *testing.T) {
	t.Run("solid case scores high", func(t *testing.T) {
		tc := solidCase()
		score := QualityScore(&tc)
		assert.Greater(t, score, 0.65)
	})

	t.Run("generic short case scores low", func(t *testing.T) {
		tc := domain.TestCase{
			TestID:         "TC-001",
			TestScenario:   "Test form",
			TestSteps:      []string{"Step 1", "Step 2"},
			ExpectedResult: "Works as expected",
			GroundedIn:     "inference",
		}
		// length 0.5, specificity 0.5, generic 0.85, steps 0.5, grounding 0.3
		assert.InDelta(t, 0.53, QualityScore(&tc), 1e-9)
	})

	t.Run("exact components", func(t *testing.T) {
		tc := domain.TestCase{
			TestScenario:   "Apply the SAVE15 discount code with PROMO pricing enabled",
			ExpectedResult: "Total is reduced by 15% leaving $21.25 due",
			TestSteps:      []string{"Enter SAVE15 in the promo code input field"},
			GroundedIn:     "pricing.md",
		}
		// length 1.0, specificity 1.0 (price+percent+code), generic 1.0,
		// steps 1.0, grounding 1.0
		assert.InDelta(t, 1.0, QualityScore(&tc), 1e-9)
	})

	t.Run("generic phrases penalize expected result", func(t *testing.T) {
		base := solidCase()
		penalized := solidCase()
		penalized.ExpectedResult = base.ExpectedResult + " as expected, verify check result"
		assert.Less(t, QualityScore(&penalized), QualityScore(&base))
	})
}

func TestRemoveDuplicates(t *testing.T) {
	a := solidCase()
	b := solidCase()
	b.TestID = "TC-002"
	c := solidCase()
	c.TestID = "TC-003"
	c.TestScenario = "Attempt checkout without accepting the terms checkbox"
	c.TestSteps = []string{"Leave the terms checkbox unchecked", "Click the submit button"}

	out := RemoveDuplicates([]domain.TestCase{a, b, c})
	require.Len(t, out, 2)
	assert.Equal(t, "TC-001", out[0].TestID)
	assert.Equal(t, "TC-003", out[1].TestID)
}

func TestRenumberIDs(t *testing.T) {
	cases := []domain.TestCase{
		{TestID: "TC-007"},
		{TestID: "weird"},
		{TestID: ""},
	}
	RenumberIDs(cases)
	assert.Equal(t, "TC-001", cases[0].TestID)
	assert.Equal(t, "TC-002", cases[1].TestID)
	assert.Equal(t, "TC-003", cases[2].TestID)
}

func TestRun_EndToEnd(t *testing.T) {
	p := testPipeline()

	good := solidCase()
	hallucinated := solidCase()
	hallucinated.TestID = "TC-002"
	hallucinated.TestScenario = "Apply the FREESHIP99 code for a $99.99 credit"
	hallucinated.TestSteps = []string{"Enter FREESHIP99 in the promo code field"}
	hallucinated.ExpectedResult = "A $99.99 credit is applied to the order"

	result := p.Run(context.Background(), []domain.TestCase{good, hallucinated}, docChunks())

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "TC-001", result.Accepted[0].TestID)
	require.Len(t, result.Dropped, 1)
	assert.Equal(t, "TC-002", result.Dropped[0].TestID)
	assert.Contains(t, result.Dropped[0].Reason, "fabricated")
}

func TestRun_CapsBatchSize(t *testing.T) {
	cfg := config.GenerationConfig{MaxTestCases: 2, MinQualityScore: 0.01, ReviewThreshold: 0.01}
	p := NewPipeline(cfg, nil, zap.NewNop())

	variants := []string{"alpha", "bravo", "charlie", "delta", "echoes"}
	var cases []domain.TestCase
	for _, v := range variants {
		tc := solidCase()
		tc.TestScenario = tc.TestScenario + " covering the " + v + " pathway"
		cases = append(cases, tc)
	}

	result := p.Run(context.Background(), cases, docChunks())
	assert.Len(t, result.Accepted, 2)
}

func TestRun_Idempotent(t *testing.T) {
	p := testPipeline()
	chunks := docChunks()

	first := p.Run(context.Background(), []domain.TestCase{solidCase()}, chunks)
	require.Len(t, first.Accepted, 1)

	second := p.Run(context.Background(), first.Accepted, chunks)
	require.Len(t, second.Accepted, 1)
	assert.Empty(t, second.Dropped)
	assert.Equal(t, first.Accepted[0].TestID, second.Accepted[0].TestID)
}

func TestRun_BackfillsPlaceholderGrounding(t *testing.T) {
	p := testPipeline()
	tc := solidCase()
	tc.GroundedIn = "inference"
	tc.Feature = "general"

	result := p.Run(context.Background(), []domain.TestCase{tc}, docChunks())
	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "pricing.md", result.Accepted[0].GroundedIn)
	assert.Equal(t, "Pricing Validation", result.Accepted[0].Feature)
}

func lowerContext() string {
	return "standard shipping costs $5.00. the discount code save15 grants 15% off orders above $25. returns are accepted within 30 days of delivery."
}
