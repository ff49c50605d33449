// Package ranking scores retrieved chunks and gates generation on
// documentation quality.
package ranking

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/corpus"
	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/semantic"
)

// Weights blends the component scores into the hybrid score.
type Weights struct {
	Embedding float64
	BM25      float64
	Metadata  float64
	Phrase    float64
}

// DefaultWeights favor the embedding signal with BM25 as the main lexical check.
func DefaultWeights() Weights {
	return Weights{
		Embedding: 0.50,
		BM25:      0.30,
		Metadata:  0.15,
		Phrase:    0.05,
	}
}

// Document type multipliers applied after blending.
var docTypeWeights = map[string]float64{
	domain.DocTypeSpecification:    1.5,
	domain.DocTypeValidationRules:  1.4,
	domain.DocTypeAPIDocumentation: 1.3,
	domain.DocTypeUIGuidelines:     1.1,
	domain.DocTypeGeneral:          1.0,
}

// Ranker computes hybrid relevance scores for retrieved chunks.
type Ranker struct {
	stats   *corpus.StatsStore
	matcher *semantic.Matcher
	weights Weights
	logger  *zap.Logger
}

// NewRanker creates a ranker. The matcher may be nil to force the keyword
// fallback for document classification.
func NewRanker(stats *corpus.StatsStore, matcher *semantic.Matcher, logger *zap.Logger) *Ranker {
	return &Ranker{
		stats:   stats,
		matcher: matcher,
		weights: DefaultWeights(),
		logger:  logger,
	}
}

// Rank scores chunks against the query and returns them ordered best first.
// Ties keep their retrieval order.
func (r *Ranker) Rank(ctx context.Context, chunks []domain.Chunk, query string) []domain.Chunk {
	stats := r.stats.Snapshot()

	ranked := make([]domain.Chunk, len(chunks))
	copy(ranked, chunks)

	queryWords := strings.Fields(strings.ToLower(query))

	for i := range ranked {
		chunk := &ranked[i]

		embeddingScore := 1.0 - chunk.Distance
		if embeddingScore < 0 {
			embeddingScore = 0
		}

		bm25 := stats.BM25Score(query, chunk.Text)
		bm25Normalized := bm25 / 10.0
		if bm25Normalized > 1.0 {
			bm25Normalized = 1.0
		}

		metadataScore := 0.5
		if len(chunk.Text) > 100 {
			metadataScore += 0.2
		}
		if len(chunk.Text) > 500 {
			metadataScore += 0.1
		}

		if chunk.DocType == "" {
			chunk.DocType = r.classifyDocument(ctx, chunk.Source)
		}

		phraseScore := 0.0
		textLower := strings.ToLower(chunk.Text)
		for j := 0; j+1 < len(queryWords); j++ {
			if strings.Contains(textLower, queryWords[j]+" "+queryWords[j+1]) {
				phraseScore += 0.25
			}
		}
		if phraseScore > 1.0 {
			phraseScore = 1.0
		}

		hybrid := embeddingScore*r.weights.Embedding +
			bm25Normalized*r.weights.BM25 +
			metadataScore*r.weights.Metadata +
			phraseScore*r.weights.Phrase

		typeWeight, ok := docTypeWeights[chunk.DocType]
		if !ok {
			typeWeight = 1.0
		}
		hybrid *= typeWeight

		chunk.BM25Score = bm25
		chunk.HybridScore = hybrid
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].HybridScore > ranked[j].HybridScore
	})

	if len(ranked) > 0 {
		r.logger.Debug("ranked chunks",
			zap.Int("count", len(ranked)),
			zap.Float64("top_score", ranked[0].HybridScore),
		)
	}
	return ranked
}

func (r *Ranker) classifyDocument(ctx context.Context, source string) string {
	if r.matcher != nil {
		docType, _ := r.matcher.ClassifyDocumentType(ctx, source, "")
		return docType
	}
	return ClassifyDocumentBySource(source)
}

// ClassifyDocumentBySource labels a document by filename keywords.
func ClassifyDocumentBySource(source string) string {
	lower := strings.ToLower(source)
	switch {
	case strings.Contains(lower, "spec") || strings.Contains(lower, "requirement"):
		return domain.DocTypeSpecification
	case strings.Contains(lower, "validation") || strings.Contains(lower, "rule"):
		return domain.DocTypeValidationRules
	case strings.Contains(lower, "api"):
		return domain.DocTypeAPIDocumentation
	case strings.Contains(lower, "ui") || strings.Contains(lower, "ux"):
		return domain.DocTypeUIGuidelines
	default:
		return domain.DocTypeGeneral
	}
}

var (
	domainTermPattern = regexp.MustCompile(`\b[a-z0-9]{3,}\b`)
	specificsPattern  = regexp.MustCompile(`\$\d+|\d+%|[A-Z]{2,}\d+|P\d{3}`)
)

// Generic request vocabulary excluded from domain overlap.
var stopTerms = map[string]struct{}{
	"test": {}, "case": {}, "cases": {}, "generate": {}, "create": {}, "make": {},
	"for": {}, "the": {}, "and": {}, "that": {}, "this": {}, "with": {}, "from": {},
	"will": {}, "should": {}, "would": {}, "could": {}, "have": {}, "been": {},
	"which": {}, "their": {}, "what": {}, "about": {}, "when": {}, "where": {},
	"there": {}, "some": {}, "into": {}, "than": {}, "them": {}, "these": {},
	"those": {}, "your": {}, "write": {}, "using": {}, "verify": {}, "check": {},
	"validate": {}, "ensure": {}, "positive": {}, "negative": {}, "scenario": {},
	"step": {}, "steps": {}, "result": {}, "expected": {}, "outcome": {},
	"feature": {}, "function": {}, "system": {}, "application": {},
}

var ruleKeywords = []string{
	"must be", "should be", "required field", "limit", "constraint",
	"validation", "error message", "minimum", "maximum",
}

var exampleKeywords = []string{"example", "e.g.", "for instance", "such as"}

// SelectStrategy decides how aggressively to generate based on how well the
// ranked chunks cover the prompt's domain vocabulary.
func (r *Ranker) SelectStrategy(chunks []domain.Chunk, prompt string) domain.GenerationStrategy {
	if len(chunks) == 0 {
		return domain.GenerationStrategy{
			Strategy:       domain.StrategyAbort,
			Confidence:     0,
			Recommendation: "No relevant documentation found.",
			ShouldProceed:  false,
		}
	}

	var sb strings.Builder
	for _, chunk := range chunks {
		sb.WriteString(chunk.Text)
		sb.WriteString(" ")
	}
	allText := strings.ToLower(sb.String())

	promptTerms := make(map[string]struct{})
	for _, term := range domainTermPattern.FindAllString(strings.ToLower(prompt), -1) {
		if _, stop := stopTerms[term]; !stop {
			promptTerms[term] = struct{}{}
		}
	}

	matched := 0
	for term := range promptTerms {
		if strings.Contains(allText, term) {
			matched++
		}
	}

	var overlapRatio float64
	if len(promptTerms) > 0 {
		overlapRatio = float64(matched) / float64(len(promptTerms))
	}

	r.logger.Info("domain relevance check",
		zap.Int("matched", matched),
		zap.Int("domain_terms", len(promptTerms)),
		zap.Float64("overlap_ratio", overlapRatio),
	)

	if overlapRatio < 0.3 {
		return domain.GenerationStrategy{
			Strategy:   domain.StrategyAbort,
			Confidence: 0,
			Recommendation: fmt.Sprintf(
				"Out-of-domain request. Only %.0f%% of prompt terms found in documentation. Cannot generate reliable test cases.",
				overlapRatio*100),
			ShouldProceed:   false,
			DomainRelevance: overlapRatio,
		}
	}

	var totalScore float64
	for _, chunk := range chunks {
		totalScore += chunk.HybridScore
	}
	avgScore := totalScore / float64(len(chunks))

	hasSpecifics := specificsPattern.MatchString(sb.String())
	hasRules := containsAny(allText, ruleKeywords)
	hasExamples := containsAny(allText, exampleKeywords)

	confidence := overlapRatio*0.5 + avgScore*0.25
	if hasSpecifics {
		confidence += 0.15
	}
	if hasRules {
		confidence += 0.08
	}
	if hasExamples {
		confidence += 0.02
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	strategy := domain.GenerationStrategy{
		Confidence:         confidence,
		ShouldProceed:      true,
		DomainRelevance:    overlapRatio,
		HasSpecificValues:  hasSpecifics,
		HasValidationRules: hasRules,
		HasExamples:        hasExamples,
	}

	switch {
	case confidence < 0.4:
		strategy.Strategy = domain.StrategyAbort
		strategy.ShouldProceed = false
		strategy.Recommendation = fmt.Sprintf(
			"Documentation quality too low (confidence: %.2f). Domain relevance: %.0f%%",
			confidence, overlapRatio*100)
	case confidence < 0.6:
		strategy.Strategy = domain.StrategyMinimal
		strategy.Recommendation = "Low confidence. Generate basic test cases with warnings."
	case confidence < 0.8:
		strategy.Strategy = domain.StrategyStandard
		strategy.Recommendation = "Moderate confidence. Standard test case generation."
	default:
		strategy.Strategy = domain.StrategyComprehensive
		strategy.Recommendation = "High confidence. Comprehensive test coverage possible."
	}

	return strategy
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
