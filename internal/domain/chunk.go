package domain

// Chunk is a bounded slice of source-document text stored with its
// provenance. Chunks are immutable once indexed; the retrieval-time fields
// (Distance, DocType, HybridScore, BM25Score) are assigned per query.
type Chunk struct {
	ChunkID string `json:"chunk_id"`
	Text    string `json:"text"`
	Source  string `json:"source"`

	Embedding []float32 `json:"-"`

	// Query-time fields, populated by the vector store and the ranker.
	Distance    float64 `json:"distance,omitempty"`
	DocType     string  `json:"doc_type,omitempty"`
	HybridScore float64 `json:"hybrid_score,omitempty"`
	BM25Score   float64 `json:"bm25_score,omitempty"`
}

// Document-type labels assigned by classification during ranking.
const (
	DocTypeSpecification    = "specification"
	DocTypeValidationRules  = "validation_rules"
	DocTypeAPIDocumentation = "api_documentation"
	DocTypeUIGuidelines     = "ui_guidelines"
	DocTypeGeneral          = "general"
)

// GenerationStrategy is the per-request go/no-go decision computed from the
// ranked chunks and the prompt. Not persisted.
type GenerationStrategy struct {
	Strategy        string  `json:"strategy"`
	Confidence      float64 `json:"confidence"`
	ShouldProceed   bool    `json:"should_proceed"`
	Recommendation  string  `json:"recommendation"`
	DomainRelevance float64 `json:"domain_relevance"`

	HasSpecificValues  bool `json:"has_specific_values,omitempty"`
	HasValidationRules bool `json:"has_validation_rules,omitempty"`
	HasExamples        bool `json:"has_examples,omitempty"`
}

// Strategy tiers, in increasing confidence order.
const (
	StrategyAbort         = "abort"
	StrategyMinimal       = "minimal"
	StrategyStandard      = "standard"
	StrategyComprehensive = "comprehensive"
)
