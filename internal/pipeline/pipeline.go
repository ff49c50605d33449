// Package pipeline orchestrates one generation request end to end:
// retrieval, hybrid ranking, strategy gating, prompt assembly, backend
// generation, JSON recovery, validation, and optional persistence. A request
// resolves to exactly one of three outcomes: a strategy-gated empty result
// with a recommendation, a validated test-case batch, or a terminal error.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/config"
	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/embeddings"
	"github.com/testweave/testweave/internal/genlog"
	"github.com/testweave/testweave/internal/jsonrepair"
	"github.com/testweave/testweave/internal/llm"
	"github.com/testweave/testweave/internal/observability"
	"github.com/testweave/testweave/internal/pagemodel"
	"github.com/testweave/testweave/internal/promptbuild"
	"github.com/testweave/testweave/internal/ranking"
	"github.com/testweave/testweave/internal/repository/postgres"
	"github.com/testweave/testweave/internal/repository/redis"
	"github.com/testweave/testweave/internal/semantic"
	"github.com/testweave/testweave/internal/validation"
	"github.com/testweave/testweave/internal/vectorstore"
)

// Response budget scales with the requested case count. Backends clamp the
// value to their own bounds.
const responseTokensPerCase = 250

// Deps are the collaborators the pipeline is built from. Cache, Audit,
// Metrics, and Repos may be nil; the corresponding concern is then skipped.
type Deps struct {
	Embedder  embeddings.Embedder
	Store     vectorstore.Store
	Ranker    *ranking.Ranker
	Backend   llm.Backend
	Recoverer *jsonrepair.Recoverer
	Validator *validation.Pipeline
	Matcher   *semantic.Matcher

	Cache   *redis.Cache
	Audit   *genlog.Logger
	Metrics *observability.Metrics
	Repos   *postgres.Repositories
}

// Pipeline runs generation requests.
type Pipeline struct {
	cfg    config.Config
	deps   Deps
	logger *zap.Logger
}

// New creates a pipeline from explicitly injected collaborators.
func New(cfg config.Config, deps Deps, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: logger.Named("pipeline"),
	}
}

// Request is one generation call. ID is assigned when zero. HTML is the
// optional page under test; when present the prompt gains structure and
// dependency sections and the result carries the parsed page.
type Request struct {
	ID     uuid.UUID
	Prompt string
	HTML   string
}

// Result is the outcome of one generation request.
type Result struct {
	RequestID uuid.UUID
	Outcome   domain.RunStatus
	Strategy  domain.GenerationStrategy

	Cases       []domain.TestCase
	Dropped     []domain.DroppedCase
	Issues      []string
	NeedsReview int

	RecoveryStage string
	ChunksUsed    int
	Truncated     bool
	Duration      time.Duration

	// Populated when the request carried HTML, for script rendering.
	Page          *pagemodel.Page
	Preconditions *pagemodel.SubmissionPreconditions
}

// Generate runs the full pipeline for one request.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	start := time.Now()
	logger := p.logger.With(zap.String("request_id", req.ID.String()))

	model, hosted := p.modelInfo()

	var page *pagemodel.Page
	var pre *pagemodel.SubmissionPreconditions
	if req.HTML != "" {
		parsed, err := pagemodel.Parse(req.HTML)
		if err != nil {
			return nil, domain.WrapError(err, domain.ErrCodeValidation, "parsing page HTML")
		}
		page = parsed
		graph := pagemodel.AnalyzeDependencies(ctx, page, p.deps.Matcher)
		pc := graph.Preconditions()
		pre = &pc
	}

	chunks, err := p.retrieve(ctx, req.Prompt)
	if err != nil {
		p.recordOutcome(logger, req, model, domain.RunStatusFailed, nil, nil, "", err.Error(), 0, time.Since(start))
		return nil, err
	}

	chunks = p.deps.Ranker.Rank(ctx, chunks, req.Prompt)
	chunks, removed := promptbuild.DeduplicateChunks(chunks)
	if removed > 0 {
		logger.Debug("removed duplicate chunks", zap.Int("removed", removed))
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordRetrieval(len(chunks))
	}

	strategy := p.deps.Ranker.SelectStrategy(chunks, req.Prompt)
	if !strategy.ShouldProceed {
		logger.Info("generation aborted by strategy gate",
			zap.String("strategy", strategy.Strategy),
			zap.String("recommendation", strategy.Recommendation),
		)
		duration := time.Since(start)
		p.recordOutcome(logger, req, model, domain.RunStatusAborted, nil, nil, "", strategy.Recommendation, len(chunks), duration)
		return &Result{
			RequestID:     req.ID,
			Outcome:       domain.RunStatusAborted,
			Strategy:      strategy,
			ChunksUsed:    len(chunks),
			Duration:      duration,
			Page:          page,
			Preconditions: pre,
		}, nil
	}

	contextText, truncated, used := promptbuild.TruncateContextSmart(chunks, llm.ContextBudget(model, hosted))
	count := promptbuild.RequestedCount(req.Prompt)
	prompt := promptbuild.BuildDynamicPrompt(req.Prompt, contextText, count, page, pre)

	if p.deps.Audit != nil {
		p.deps.Audit.LogRequest(req.ID.String(), p.deps.Backend.Name(), model, req.Prompt, prompt, len(used))
	}

	genStart := time.Now()
	raw, err := p.deps.Backend.Generate(ctx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   responseTokensPerCase*count + 100,
		Temperature: llm.DefaultTemperature,
	})
	if p.deps.Metrics != nil {
		status := "ok"
		if err != nil {
			status = domain.GetErrorCode(err)
		}
		p.deps.Metrics.RecordBackendRequest(p.deps.Backend.Name(), status, time.Since(genStart))
	}
	if err != nil {
		// Exhausted retries degrade to an empty response so the recovery
		// cascade and the synthesis fallback still run.
		logger.Warn("generation backend failed", zap.Error(err))
		raw = ""
	}

	recovered, stage := p.deps.Recoverer.Recover(raw)
	if p.deps.Metrics != nil && stage != "" {
		p.deps.Metrics.RecordRecoveryStage(stage)
	}

	outcome := domain.RunStatusCompleted
	var cases []domain.TestCase
	if len(recovered) == 0 {
		synth, synthErr := p.synthesizeFallback(ctx, raw, req.Prompt, used)
		if synthErr != nil {
			p.recordOutcome(logger, req, model, domain.RunStatusFailed, nil, nil, stage, synthErr.Error(), len(used), time.Since(start))
			return nil, synthErr
		}
		logger.Warn("model output unparseable, synthesized fallback case")
		cases = []domain.TestCase{synth}
		outcome = domain.RunStatusFallback
		if p.deps.Metrics != nil {
			p.deps.Metrics.FallbackSynthTotal.Inc()
		}
	} else {
		cases = validation.FromRaw(recovered)
	}

	// Hard cap before validation bounds downstream cost
	if limit := p.cfg.Generation.MaxTestCases; limit > 0 && len(cases) > limit {
		logger.Warn("truncating generated cases", zap.Int("generated", len(cases)), zap.Int("cap", limit))
		cases = cases[:limit]
	}

	verdict := p.deps.Validator.Run(ctx, cases, used)

	duration := time.Since(start)
	p.recordOutcome(logger, req, model, outcome, verdict.Accepted, &verdict, stage, "", len(used), duration)

	logger.Info("generation finished",
		zap.String("outcome", string(outcome)),
		zap.Int("accepted", len(verdict.Accepted)),
		zap.Int("dropped", len(verdict.Dropped)),
		zap.Int("chunks_used", len(used)),
		zap.Bool("truncated", truncated),
		zap.Duration("duration", duration),
	)

	return &Result{
		RequestID:     req.ID,
		Outcome:       outcome,
		Strategy:      strategy,
		Cases:         verdict.Accepted,
		Dropped:       verdict.Dropped,
		Issues:        verdict.Issues,
		NeedsReview:   verdict.NeedsReview,
		RecoveryStage: stage,
		ChunksUsed:    len(used),
		Truncated:     truncated,
		Duration:      duration,
		Page:          page,
		Preconditions: pre,
	}, nil
}

// retrieve embeds the prompt and queries the chunk store, consulting the
// retrieval cache when one is wired.
func (p *Pipeline) retrieve(ctx context.Context, prompt string) ([]domain.Chunk, error) {
	key := redis.RetrievalKey(p.cfg.Qdrant.Collection, prompt, p.cfg.Qdrant.TopK)
	if p.deps.Cache != nil {
		cached, err := p.deps.Cache.GetRetrieval(ctx, key)
		if err != nil {
			p.logger.Warn("retrieval cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	vector, err := p.deps.Embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, domain.WrapError(err, domain.ErrCodeStoreUnavailable, "embedding query")
	}

	chunks, err := p.deps.Store.Query(ctx, vector, p.cfg.Qdrant.TopK)
	if err != nil {
		return nil, err
	}

	if p.deps.Cache != nil {
		if err := p.deps.Cache.SetRetrieval(ctx, key, chunks); err != nil {
			p.logger.Warn("retrieval cache write failed", zap.Error(err))
		}
	}

	return chunks, nil
}

// modelInfo resolves the active model name and whether it is hosted.
func (p *Pipeline) modelInfo() (model string, hosted bool) {
	if p.deps.Backend.Name() == "groq" {
		return p.cfg.Groq.Model, true
	}
	return p.cfg.Ollama.Model, false
}

// recordOutcome fans the terminal state out to metrics, the audit log, and
// the run repository. Persistence failures are logged, never propagated.
func (p *Pipeline) recordOutcome(logger *zap.Logger, req Request, model string, status domain.RunStatus, accepted []domain.TestCase, verdict *validation.Result, stage, reason string, numChunks int, duration time.Duration) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordGeneration(p.deps.Backend.Name(), metricOutcome(status), duration)
		if verdict != nil {
			p.deps.Metrics.RecordValidation(len(verdict.Accepted), len(verdict.Dropped), verdict.NeedsReview)
			for _, tc := range verdict.Accepted {
				p.deps.Metrics.ObserveQuality(tc.QualityScore)
			}
		}
	}

	if p.deps.Audit != nil && verdict != nil {
		ids := make([]string, len(accepted))
		for i, tc := range accepted {
			ids[i] = tc.TestID
		}
		p.deps.Audit.LogResponse(req.ID.String(), p.deps.Backend.Name(), model, ids, len(verdict.Dropped))
	}

	if p.deps.Repos == nil {
		return
	}

	run := &domain.GenerationRun{
		ID:            req.ID,
		Query:         req.Prompt,
		Backend:       p.deps.Backend.Name(),
		Model:         model,
		Status:        status,
		NumChunks:     numChunks,
		RecoveryStage: stage,
		AbortReason:   reason,
		Duration:      duration,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.deps.Repos.Runs.Create(ctx, run); err != nil {
		logger.Error("persisting generation run failed", zap.Error(err))
		return
	}
	if len(accepted) > 0 {
		persisted := make([]*domain.TestCase, len(accepted))
		for i := range accepted {
			persisted[i] = &accepted[i]
		}
		if err := p.deps.Repos.TestCases.CreateBatch(ctx, run.ID, persisted); err != nil {
			logger.Error("persisting test cases failed", zap.Error(err))
		}
	}
}

func metricOutcome(status domain.RunStatus) string {
	if status == domain.RunStatusCompleted {
		return "success"
	}
	return string(status)
}

// Line-similarity gate for the synthesis fallback.
const synthLineThreshold = 0.25

// maxSynthSteps bounds how many raw lines one synthesized case absorbs.
const maxSynthSteps = 8

// synthesizeFallback builds one flagged test case from whatever action-like
// lines survive a semantic scan of the raw model output. Requires the
// matcher; without it unparseable output is a terminal error.
func (p *Pipeline) synthesizeFallback(ctx context.Context, raw, prompt string, chunks []domain.Chunk) (domain.TestCase, error) {
	if p.deps.Matcher == nil {
		return domain.TestCase{}, domain.NewError(domain.ErrCodeUnparseableOutput,
			"model output unparseable and no semantic matcher available for fallback synthesis")
	}

	var steps []string
	for _, line := range strings.Split(raw, "\n") {
		if len(steps) >= maxSynthSteps {
			break
		}
		line = strings.TrimSpace(line)
		if len(line) < 10 {
			continue
		}

		keep := false
		if ok, _ := p.deps.Matcher.IsVerificationStep(ctx, line); ok {
			keep = true
		} else if ok, sim := p.deps.Matcher.MatchButtonAction(ctx, line); ok && sim > synthLineThreshold {
			keep = true
		} else if ok, sim := p.deps.Matcher.MatchSelectAction(ctx, line); ok && sim > synthLineThreshold {
			keep = true
		}
		if !keep {
			continue
		}

		line = strings.TrimSuffix(line, "...")
		line = strings.TrimPrefix(line, "User ")
		steps = append(steps, line)
	}

	if len(steps) == 0 {
		steps = []string{
			"Navigate to the application page",
			"Complete the required form fields",
		}
	}

	scenario := prompt
	if len(scenario) > 160 {
		scenario = scenario[:160]
	}

	tc := domain.TestCase{
		TestID:         domain.FormatTestID(1),
		Feature:        synthFeature(chunks),
		TestScenario:   scenario,
		TestSteps:      steps,
		ExpectedResult: "Form submission completes successfully with expected behavior",
		TestType:       domain.TestTypePositive,
		Priority:       domain.PriorityMedium,
		GroundedIn:     synthGrounding(chunks),
		Synthesized:    true,
	}
	tc.MarkNeedsReview("Synthesized using AI/ML semantic extraction due to unparseable LLM output")
	return tc, nil
}

func synthFeature(chunks []domain.Chunk) string {
	if len(chunks) == 0 {
		return "General Validation"
	}
	switch chunks[0].DocType {
	case domain.DocTypeAPIDocumentation:
		return "API Integration Testing"
	case domain.DocTypeUIGuidelines:
		return "UI Validation"
	case domain.DocTypeSpecification, domain.DocTypeValidationRules:
		return "Product Feature Validation"
	}
	return fmt.Sprintf("%s Validation", docName(chunks[0].Source))
}

func synthGrounding(chunks []domain.Chunk) string {
	if len(chunks) == 0 {
		return "inference"
	}
	return chunks[0].Source
}

// docName turns "docs/product_specs.md" into "Product Specs".
func docName(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	words := strings.Fields(base)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return "Documentation"
	}
	return strings.Join(words, " ")
}
