package domain

import (
	"fmt"
	"strings"
)

// TestType categorizes a generated test case
type TestType string

const (
	TestTypePositive TestType = "positive"
	TestTypeNegative TestType = "negative"
	TestTypeEdgeCase TestType = "edge_case"
	TestTypeBoundary TestType = "boundary"
)

// Priority indicates test importance
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ValidTestType reports whether t is an accepted test type value.
func ValidTestType(t TestType) bool {
	switch t {
	case TestTypePositive, TestTypeNegative, TestTypeEdgeCase, TestTypeBoundary:
		return true
	}
	return false
}

// ValidPriority reports whether p is an accepted priority value.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// TestCase is a generated, documentation-grounded QA test case. Instances are
// created from model output, mutated in place by each validation stage, and
// removed from the batch when Drop is set.
type TestCase struct {
	TestID         string   `json:"test_id"`
	Feature        string   `json:"feature"`
	TestScenario   string   `json:"test_scenario"`
	TestSteps      []string `json:"test_steps"`
	ExpectedResult string   `json:"expected_result"`
	TestType       TestType `json:"test_type"`
	Priority       Priority `json:"priority"`
	GroundedIn     string   `json:"grounded_in"`

	NeedsReview  bool    `json:"needs_review,omitempty"`
	ReviewReason string  `json:"_review_reason,omitempty"`
	QualityScore float64 `json:"_quality_score,omitempty"`
	Synthesized  bool    `json:"_fallback_synthesized,omitempty"`

	// Drop marks the case for removal by the validation pipeline. Not
	// serialized: dropped cases never reach the caller.
	Drop       bool   `json:"-"`
	DropReason string `json:"-"`
}

// MarkDropped flags the case for removal with a reason.
func (tc *TestCase) MarkDropped(reason string) {
	tc.Drop = true
	tc.DropReason = reason
}

// MarkNeedsReview flags the case for human review without dropping it.
func (tc *TestCase) MarkNeedsReview(reason string) {
	tc.NeedsReview = true
	tc.ReviewReason = reason
}

// ContentText concatenates the free-text fields checked for evidence.
func (tc *TestCase) ContentText() string {
	return fmt.Sprintf("%s %s %s", tc.TestScenario, tc.ExpectedResult, strings.Join(tc.TestSteps, " "))
}

// FormatTestID renders the canonical 1-based zero-padded test id.
func FormatTestID(n int) string {
	return fmt.Sprintf("TC-%03d", n)
}

// DroppedCase records why a test case was removed from a batch.
type DroppedCase struct {
	TestID string `json:"test_id"`
	Reason string `json:"reason"`
}
