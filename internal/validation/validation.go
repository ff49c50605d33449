// Package validation decides which generated test cases are trustworthy
// enough to return. Cases flow through schema enforcement, hallucination
// detection against retrieved evidence, a verification re-pass, quality
// scoring, duplicate removal, and final id renumbering.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/config"
	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/semantic"
)

var (
	pricePattern    = regexp.MustCompile(`\$\d+(?:\.\d{2})?`)
	percentPattern  = regexp.MustCompile(`\d+%`)
	codePattern     = regexp.MustCompile(`\b[A-Z][A-Z0-9]{3,}\b`)
	evidencePattern = regexp.MustCompile(`\$\d+(?:\.\d{2})?|\d+%|\b[A-Z][A-Z0-9]{4,}\b`)
	stepSplitter    = regexp.MustCompile(`[\n;>|]+`)
	wordPattern     = regexp.MustCompile(`\w+`)
	upperRunPattern = regexp.MustCompile(`\b[A-Z]{4,}\b`)
)

// codeBlacklist holds uppercase tokens that look like promo codes but are
// ordinary technical vocabulary.
var codeBlacklist = map[string]struct{}{
	"STEP": {}, "TEST": {}, "HTTP": {}, "JSON": {}, "NOTE": {}, "TODO": {},
	"FAIL": {}, "PASS": {}, "MISSING": {}, "POST": {}, "GET": {}, "PUT": {},
	"DELETE": {}, "TRUE": {}, "FALSE": {}, "NULL": {},
}

// groundingPlaceholders are grounded_in values that carry no real source.
var groundingPlaceholders = map[string]struct{}{
	"inference": {}, "general": {}, "document.txt": {}, "n/a": {}, "": {},
}

var featurePlaceholders = map[string]struct{}{
	"general": {}, "n/a": {}, "feature": {}, "test": {}, "": {},
}

var genericPhrases = []string{"as expected", "check result", "verify", "execute", "step 1"}

// Result is the outcome of validating one batch.
type Result struct {
	Accepted    []domain.TestCase
	Dropped     []domain.DroppedCase
	Issues      []string
	NeedsReview int
}

// Pipeline validates batches of generated test cases. The matcher may be nil,
// in which case the zero-cost exemption for "$0" values is never granted.
type Pipeline struct {
	cfg     config.GenerationConfig
	matcher *semantic.Matcher
	logger  *zap.Logger
}

// NewPipeline creates a validation pipeline.
func NewPipeline(cfg config.GenerationConfig, matcher *semantic.Matcher, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		matcher: matcher,
		logger:  logger.Named("validation"),
	}
}

// Run applies every validation stage in order and returns the accepted cases
// renumbered TC-001, TC-002, and so on.
func (p *Pipeline) Run(ctx context.Context, cases []domain.TestCase, chunks []domain.Chunk) Result {
	var result Result

	maxCases := p.cfg.MaxTestCases
	if maxCases <= 0 {
		maxCases = 10
	}
	if len(cases) > maxCases {
		p.logger.Warn("truncating test cases", zap.Int("from", len(cases)), zap.Int("to", maxCases))
		cases = cases[:maxCases]
	}

	contextText := strings.ToLower(joinChunkText(chunks))

	var survivors []domain.TestCase
	for i := range cases {
		tc := cases[i]

		issues := p.EnforceSchema(&tc, chunks)
		result.Issues = append(result.Issues, issues...)

		p.DetectHallucinations(ctx, &tc, contextText)
		if tc.Drop {
			result.Dropped = append(result.Dropped, domain.DroppedCase{TestID: tc.TestID, Reason: tc.DropReason})
			p.logger.Warn("dropping test case", zap.String("test_id", tc.TestID), zap.String("reason", tc.DropReason))
			continue
		}

		if !p.HasVerbatimEvidence(ctx, &tc, contextText) {
			tc.MarkNeedsReview("No verbatim evidence found in documentation")
		}

		survivors = append(survivors, tc)
	}

	// Second verification pass: the first pass may have rewritten fields, so
	// drop semantics are re-applied to the cleaned cases.
	var verified []domain.TestCase
	for i := range survivors {
		tc := survivors[i]
		p.DetectHallucinations(ctx, &tc, contextText)
		if tc.Drop {
			result.Dropped = append(result.Dropped, domain.DroppedCase{TestID: tc.TestID, Reason: tc.DropReason})
			continue
		}
		verified = append(verified, tc)
	}

	minQuality := p.cfg.MinQualityScore
	if minQuality <= 0 {
		minQuality = 0.5
	}
	reviewThreshold := p.cfg.ReviewThreshold
	if reviewThreshold <= 0 {
		reviewThreshold = 0.65
	}

	var accepted []domain.TestCase
	for i := range verified {
		tc := verified[i]
		score := QualityScore(&tc)
		tc.QualityScore = score

		if score < minQuality {
			result.Dropped = append(result.Dropped, domain.DroppedCase{
				TestID: tc.TestID,
				Reason: "Low quality score: " + formatScore(score),
			})
			p.logger.Warn("dropping low-quality test case",
				zap.String("test_id", tc.TestID),
				zap.Float64("score", score))
			continue
		}
		if score < reviewThreshold {
			tc.MarkNeedsReview("Borderline quality score: " + formatScore(score))
		}

		backfillGrounding(&tc, chunks)
		accepted = append(accepted, tc)
	}

	accepted = RemoveDuplicates(accepted)
	RenumberIDs(accepted)

	for i := range accepted {
		if accepted[i].NeedsReview {
			result.NeedsReview++
		}
	}
	result.Accepted = accepted
	return result
}

// EnforceSchema fills missing required fields with explicit placeholders,
// coerces enums to valid values, and backfills grounding from the retrieved
// chunks. Returns the list of recorded issues.
func (p *Pipeline) EnforceSchema(tc *domain.TestCase, chunks []domain.Chunk) []string {
	var issues []string

	stringFields := []struct {
		name  string
		value *string
	}{
		{"test_id", &tc.TestID},
		{"feature", &tc.Feature},
		{"test_scenario", &tc.TestScenario},
		{"expected_result", &tc.ExpectedResult},
	}
	for _, f := range stringFields {
		if *f.value == "" {
			*f.value = "[MISSING: " + f.name + "]"
			issues = append(issues, "missing:"+f.name)
		}
	}

	if len(tc.TestSteps) == 0 {
		tc.TestSteps = []string{"[MISSING: test_steps]"}
		issues = append(issues, "missing:test_steps")
	}

	if !domain.ValidTestType(tc.TestType) {
		if tc.TestType == "" {
			issues = append(issues, "missing:test_type")
		}
		tc.TestType = domain.TestTypePositive
	}
	if !domain.ValidPriority(tc.Priority) {
		if tc.Priority == "" {
			issues = append(issues, "missing:priority")
		}
		tc.Priority = domain.PriorityMedium
	}

	if tc.GroundedIn == "" {
		if len(chunks) > 0 {
			tc.GroundedIn = chunks[0].Source
		} else {
			tc.GroundedIn = "document.txt"
		}
	}
	return issues
}

// DetectHallucinations extracts prices, percentages, and uppercase codes from
// the case text and drops the case when any value does not appear in the
// retrieved context. Codes are skipped for negative cases, blacklisted tokens
// are ignored, and "$0" survives when the context semantically reads as free.
func (p *Pipeline) DetectHallucinations(ctx context.Context, tc *domain.TestCase, contextText string) {
	content := tc.ContentText()

	var fabricated []string
	check := func(values []string, isCode, isPrice bool) {
		for _, val := range values {
			if isCode {
				if _, ok := codeBlacklist[val]; ok {
					continue
				}
				if tc.TestType == domain.TestTypeNegative {
					continue
				}
			}
			checkVal := strings.ToLower(val)
			if isPrice {
				checkVal = strings.TrimSuffix(checkVal, ".00")
				if checkVal == "$0" && p.isZeroCost(ctx, contextText) {
					continue
				}
			}
			if !strings.Contains(contextText, checkVal) {
				fabricated = append(fabricated, val)
			}
		}
	}

	check(pricePattern.FindAllString(content, -1), false, true)
	check(percentPattern.FindAllString(content, -1), false, false)
	check(codePattern.FindAllString(content, -1), true, false)

	if len(fabricated) > 0 {
		if len(fabricated) > 5 {
			fabricated = fabricated[:5]
		}
		tc.MarkDropped("fabricated: " + strings.Join(fabricated, ", "))
	}
}

// HasVerbatimEvidence reports whether at least one evidence token from the
// serialized case appears in the context. Cases with no evidence tokens pass
// by default.
func (p *Pipeline) HasVerbatimEvidence(ctx context.Context, tc *domain.TestCase, contextText string) bool {
	serialized, err := json.Marshal(tc)
	if err != nil {
		return true
	}

	tokens := evidencePattern.FindAllString(string(serialized), -1)
	if len(tokens) == 0 {
		return true
	}

	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		lower := strings.ToLower(token)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}

		if strings.Contains(contextText, lower) {
			return true
		}
		if (lower == "$0" || lower == "$0.00") && p.isZeroCost(ctx, contextText) {
			return true
		}
	}
	return false
}

func (p *Pipeline) isZeroCost(ctx context.Context, contextText string) bool {
	if p.matcher == nil {
		return false
	}
	zeroCost, _ := p.matcher.IsZeroCostContext(ctx, contextText)
	return zeroCost
}

// QualityScore computes the deterministic five-component ensemble score in
// [0,1]: length, specificity, anti-genericness, step detail, and grounding.
func QualityScore(tc *domain.TestCase) float64 {
	lengthScore := 1.0
	if len(tc.TestScenario) < 30 {
		lengthScore -= 0.3
	}
	if len(tc.ExpectedResult) < 20 {
		lengthScore -= 0.2
	}
	if lengthScore < 0 {
		lengthScore = 0
	}

	specificity := 0.5
	combined := tc.TestScenario + tc.ExpectedResult
	if pricePattern.MatchString(combined) {
		specificity += 0.2
	}
	if percentPattern.MatchString(combined) {
		specificity += 0.1
	}
	if upperRunPattern.MatchString(combined) {
		specificity += 0.2
	}
	if specificity > 1.0 {
		specificity = 1.0
	}

	genericScore := 1.0
	expectedLower := strings.ToLower(tc.ExpectedResult)
	for _, phrase := range genericPhrases {
		if strings.Contains(expectedLower, phrase) {
			genericScore -= 0.15
		}
	}
	if genericScore < 0 {
		genericScore = 0
	}

	stepScore := 0.5
	if len(tc.TestSteps) > 0 {
		total := 0
		for _, s := range tc.TestSteps {
			total += len(s)
		}
		avg := float64(total) / float64(len(tc.TestSteps))
		if avg > 30 {
			stepScore = 1.0
		} else if avg > 15 {
			stepScore = 0.75
		}
	}

	groundingScore := 1.0
	if _, placeholder := groundingPlaceholders[strings.ToLower(tc.GroundedIn)]; placeholder {
		groundingScore = 0.3
	}

	score := lengthScore*0.2 + specificity*0.25 + genericScore*0.2 + stepScore*0.15 + groundingScore*0.2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// RemoveDuplicates drops cases whose word signature collides with an earlier
// case. The signature is the sorted set of distinct words longer than four
// characters across scenario and steps, capped at 25 words.
func RemoveDuplicates(cases []domain.TestCase) []domain.TestCase {
	seen := make(map[string]struct{}, len(cases))
	out := cases[:0]
	for i := range cases {
		sig := caseSignature(&cases[i])
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, cases[i])
	}
	return out
}

func caseSignature(tc *domain.TestCase) string {
	text := strings.ToLower(tc.TestScenario + " " + strings.Join(tc.TestSteps, " "))
	distinct := make(map[string]struct{})
	for _, word := range wordPattern.FindAllString(text, -1) {
		if len(word) > 4 {
			distinct[word] = struct{}{}
		}
	}
	words := make([]string, 0, len(distinct))
	for w := range distinct {
		words = append(words, w)
	}
	sort.Strings(words)
	if len(words) > 25 {
		words = words[:25]
	}
	return strings.Join(words, "|")
}

// RenumberIDs assigns the canonical TC-NNN sequence in place.
func RenumberIDs(cases []domain.TestCase) {
	for i := range cases {
		cases[i].TestID = domain.FormatTestID(i + 1)
	}
}

// backfillGrounding replaces placeholder grounding and feature values with
// ones derived from the retrieved chunks.
func backfillGrounding(tc *domain.TestCase, chunks []domain.Chunk) {
	grounded := strings.ToLower(strings.TrimSpace(tc.GroundedIn))
	if _, placeholder := groundingPlaceholders[grounded]; placeholder && len(chunks) > 0 {
		tc.GroundedIn = chunks[0].Source
	}

	feature := strings.ToLower(strings.TrimSpace(tc.Feature))
	if _, placeholder := featurePlaceholders[feature]; placeholder {
		docName := docBaseName(tc.GroundedIn)
		if docName != "" && !strings.EqualFold(docName, "inference") {
			tc.Feature = titleCase(strings.ReplaceAll(docName, "_", " ")) + " Validation"
		} else {
			tc.Feature = "General Validation"
		}
	}
}

func docBaseName(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		path = path[idx+1:]
	}
	for _, ext := range []string{".md", ".txt", ".html", ".json"} {
		path = strings.ReplaceAll(path, ext, "")
	}
	return path
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func joinChunkText(chunks []domain.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, " ")
}

func formatScore(score float64) string {
	return fmt.Sprintf("%.2f", score)
}
