package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidTestType(t *testing.T) {
	tests := []struct {
		name string
		in   TestType
		want bool
	}{
		{"positive", TestTypePositive, true},
		{"negative", TestTypeNegative, true},
		{"edge case", TestTypeEdgeCase, true},
		{"boundary", TestTypeBoundary, true},
		{"unknown", TestType("fuzz"), false},
		{"empty", TestType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidTestType(tt.in); got != tt.want {
				t.Errorf("ValidTestType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidPriority(t *testing.T) {
	tests := []struct {
		name string
		in   Priority
		want bool
	}{
		{"high", PriorityHigh, true},
		{"medium", PriorityMedium, true},
		{"low", PriorityLow, true},
		{"unknown", Priority("urgent"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidPriority(tt.in); got != tt.want {
				t.Errorf("ValidPriority(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTestCase_MarkDropped(t *testing.T) {
	tc := TestCase{TestID: "TC-001"}
	tc.MarkDropped("hallucinated code")

	if !tc.Drop {
		t.Error("Drop should be true after MarkDropped")
	}
	if tc.DropReason != "hallucinated code" {
		t.Errorf("DropReason = %q, want 'hallucinated code'", tc.DropReason)
	}
}

func TestTestCase_MarkNeedsReview(t *testing.T) {
	tc := TestCase{TestID: "TC-001"}
	tc.MarkNeedsReview("low quality score")

	if !tc.NeedsReview {
		t.Error("NeedsReview should be true after MarkNeedsReview")
	}
	if tc.ReviewReason != "low quality score" {
		t.Errorf("ReviewReason = %q, want 'low quality score'", tc.ReviewReason)
	}
	if tc.Drop {
		t.Error("MarkNeedsReview must not drop the case")
	}
}

func TestTestCase_ContentText(t *testing.T) {
	tc := TestCase{
		TestScenario:   "Apply discount code",
		TestSteps:      []string{"Enter SAVE10", "Click apply"},
		ExpectedResult: "Total reduced by 10%",
	}
	got := tc.ContentText()

	for _, want := range []string{"Apply discount code", "Enter SAVE10", "Click apply", "Total reduced by 10%"} {
		if !strings.Contains(got, want) {
			t.Errorf("ContentText() missing %q in %q", want, got)
		}
	}
}

func TestFormatTestID(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "TC-001"},
		{42, "TC-042"},
		{999, "TC-999"},
		{1000, "TC-1000"},
	}

	for _, tt := range tests {
		if got := FormatTestID(tt.n); got != tt.want {
			t.Errorf("FormatTestID(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestTestCase_DropFieldsNotSerialized(t *testing.T) {
	tc := TestCase{TestID: "TC-001", Feature: "Checkout"}
	tc.MarkDropped("duplicate")

	data, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "duplicate") {
		t.Error("DropReason must not appear in serialized output")
	}
	if strings.Contains(string(data), "\"Drop\"") {
		t.Error("Drop must not appear in serialized output")
	}
}
