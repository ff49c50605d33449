package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/config"
	"github.com/testweave/testweave/internal/corpus"
	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/genlog"
	"github.com/testweave/testweave/internal/jsonrepair"
	"github.com/testweave/testweave/internal/llm"
	"github.com/testweave/testweave/internal/observability"
	"github.com/testweave/testweave/internal/ranking"
	"github.com/testweave/testweave/internal/semantic"
	"github.com/testweave/testweave/internal/validation"
)

// stubEmbedder returns zero vectors, so every semantic gate stays closed and
// only literal-substring matching fires.
type stubEmbedder struct{}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0, 0, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = s.Embed(ctx, texts[i])
	}
	return out, nil
}

type stubStore struct {
	chunks []domain.Chunk
	err    error
}

func (s *stubStore) Query(ctx context.Context, embedding []float32, limit int) ([]domain.Chunk, error) {
	return s.chunks, s.err
}

type stubBackend struct {
	response string
	err      error
	lastReq  llm.Request
}

func (s *stubBackend) Generate(ctx context.Context, req llm.Request) (string, error) {
	s.lastReq = req
	return s.response, s.err
}

func (s *stubBackend) Name() string { return "ollama" }

func promoChunks() []domain.Chunk {
	return []domain.Chunk{{
		ChunkID:  "promo-1",
		Text:     "Discount code SAVE10 gives 10% off any order at checkout.",
		Source:   "promo.md",
		Distance: 0.2,
	}}
}

func newTestPipeline(t *testing.T, backend llm.Backend, store *stubStore, withMatcher bool) *Pipeline {
	t.Helper()

	logger := zap.NewNop()
	var matcher *semantic.Matcher
	if withMatcher {
		matcher = semantic.NewMatcher(&stubEmbedder{}, logger)
	}

	cfg := config.Config{}
	cfg.Qdrant.TopK = 5
	cfg.Generation.MaxTestCases = 10
	cfg.Ollama.Model = "mistral"

	stats := corpus.NewStatsStore(filepath.Join(t.TempDir(), "stats.json"), logger)

	return New(cfg, Deps{
		Embedder:  &stubEmbedder{},
		Store:     store,
		Ranker:    ranking.NewRanker(stats, matcher, logger),
		Backend:   backend,
		Recoverer: jsonrepair.NewRecoverer(logger),
		Validator: validation.NewPipeline(cfg.Generation, matcher, logger),
		Matcher:   matcher,
	}, logger)
}

func TestGenerate_HappyPath(t *testing.T) {
	response := `[{
		"test_id": "TC-001",
		"feature": "Discount Codes",
		"test_scenario": "Apply discount code SAVE10 during checkout and confirm the order total is reduced",
		"test_steps": [
			"Navigate to the checkout page with one item in the cart",
			"Enter the discount code SAVE10 in the promo code field",
			"Click the apply button and review the order summary"
		],
		"expected_result": "The order total is reduced by 10% and the summary lists SAVE10",
		"test_type": "positive",
		"priority": "high",
		"grounded_in": "promo.md"
	}]`

	backend := &stubBackend{response: response}
	store := &stubStore{chunks: promoChunks()}
	p := newTestPipeline(t, backend, store, true)

	result, err := p.Generate(context.Background(), Request{
		Prompt: "Generate 1 test case for discount code checkout",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusCompleted, result.Outcome)
	assert.NotEqual(t, uuid.Nil, result.RequestID)
	assert.True(t, result.Strategy.ShouldProceed)
	require.Len(t, result.Cases, 1)
	assert.Equal(t, "TC-001", result.Cases[0].TestID)
	assert.Equal(t, "Discount Codes", result.Cases[0].Feature)
	assert.Empty(t, result.Dropped)
	assert.Equal(t, 1, result.ChunksUsed)

	// Prompt carries the retrieved context and the requested count budget
	assert.Contains(t, backend.lastReq.Prompt, "SAVE10")
	assert.Equal(t, responseTokensPerCase*1+100, backend.lastReq.MaxTokens)
}

func TestGenerate_HallucinatedCodeDropped(t *testing.T) {
	response := `[{
		"test_id": "TC-001",
		"feature": "Discount Codes",
		"test_scenario": "Apply discount code SAVE20 during checkout and confirm the order total is reduced",
		"test_steps": ["Enter the discount code SAVE20 in the promo code field"],
		"expected_result": "The order total is reduced and the summary lists SAVE20",
		"test_type": "positive",
		"priority": "high",
		"grounded_in": "promo.md"
	}]`

	backend := &stubBackend{response: response}
	store := &stubStore{chunks: promoChunks()}
	p := newTestPipeline(t, backend, store, true)

	result, err := p.Generate(context.Background(), Request{
		Prompt: "Generate 1 test case for discount code checkout",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusCompleted, result.Outcome)
	assert.Empty(t, result.Cases)
	require.NotEmpty(t, result.Dropped)
	assert.Equal(t, "TC-001", result.Dropped[0].TestID)
}

func TestGenerate_StrategyAbort(t *testing.T) {
	backend := &stubBackend{response: "[]"}
	store := &stubStore{chunks: []domain.Chunk{{
		ChunkID: "recipes-1",
		Text:    "Blend two bananas with oat milk until smooth.",
		Source:  "recipes.md",
	}}}
	p := newTestPipeline(t, backend, store, true)

	result, err := p.Generate(context.Background(), Request{
		Prompt: "Generate test cases for spaceship telemetry ingestion",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusAborted, result.Outcome)
	assert.False(t, result.Strategy.ShouldProceed)
	assert.NotEmpty(t, result.Strategy.Recommendation)
	assert.Empty(t, result.Cases)

	// The backend is never called on an abort
	assert.Empty(t, backend.lastReq.Prompt)
}

func TestGenerate_FallbackSynthesis(t *testing.T) {
	backend := &stubBackend{response: "I could not produce JSON.\nCheck if the discount total is applied correctly after entering the code.\nThanks!"}
	store := &stubStore{chunks: promoChunks()}
	p := newTestPipeline(t, backend, store, true)

	result, err := p.Generate(context.Background(), Request{
		Prompt: "Generate 1 test case for discount code checkout",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusFallback, result.Outcome)
	require.Len(t, result.Cases, 1)

	tc := result.Cases[0]
	assert.True(t, tc.Synthesized)
	assert.True(t, tc.NeedsReview)
	assert.Equal(t, "TC-001", tc.TestID)
	assert.Equal(t, "promo.md", tc.GroundedIn)
	require.NotEmpty(t, tc.TestSteps)
	assert.Contains(t, tc.TestSteps[0], "Check if the discount total")
}

func TestGenerate_BackendFailureFallsBack(t *testing.T) {
	backend := &stubBackend{err: domain.BackendUnavailableError("ollama", nil)}
	store := &stubStore{chunks: promoChunks()}
	p := newTestPipeline(t, backend, store, true)

	result, err := p.Generate(context.Background(), Request{
		Prompt: "Generate 1 test case for discount code checkout",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusFallback, result.Outcome)
	require.Len(t, result.Cases, 1)
	assert.True(t, result.Cases[0].Synthesized)
	// Nothing action-like to salvage from an empty response
	assert.Equal(t, "Navigate to the application page", result.Cases[0].TestSteps[0])
}

func TestGenerate_UnparseableWithoutMatcherFails(t *testing.T) {
	backend := &stubBackend{response: "no structure here at all, sorry"}
	store := &stubStore{chunks: promoChunks()}
	p := newTestPipeline(t, backend, store, false)

	_, err := p.Generate(context.Background(), Request{
		Prompt: "Generate 1 test case for discount code checkout",
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeUnparseableOutput, domain.GetErrorCode(err))
}

func TestGenerate_StoreErrorIsFatal(t *testing.T) {
	backend := &stubBackend{response: "[]"}
	store := &stubStore{err: domain.NewError(domain.ErrCodeStoreUnavailable, "qdrant down")}
	p := newTestPipeline(t, backend, store, true)

	_, err := p.Generate(context.Background(), Request{
		Prompt: "Generate 1 test case for discount code checkout",
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeStoreUnavailable, domain.GetErrorCode(err))
}

func TestGenerate_CapsCaseCount(t *testing.T) {
	var objects []string
	for i := 0; i < 5; i++ {
		objects = append(objects, `{
			"test_id": "TC-00`+string(rune('1'+i))+`",
			"feature": "Discount Codes",
			"test_scenario": "Apply discount code SAVE10 during checkout scenario variant `+string(rune('1'+i))+`",
			"test_steps": ["Enter the discount code SAVE10 in the promo code field variant `+string(rune('1'+i))+`"],
			"expected_result": "The order total is reduced by 10% and the summary lists SAVE10 for flow `+string(rune('1'+i))+`",
			"test_type": "positive",
			"priority": "medium",
			"grounded_in": "promo.md"
		}`)
	}
	backend := &stubBackend{response: "[" + strings.Join(objects, ",") + "]"}
	store := &stubStore{chunks: promoChunks()}
	p := newTestPipeline(t, backend, store, true)
	p.cfg.Generation.MaxTestCases = 2

	result, err := p.Generate(context.Background(), Request{
		Prompt: "Generate 5 test cases for discount code checkout",
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Cases), 2)
}

func TestGenerate_WritesAuditLog(t *testing.T) {
	response := `[{
		"test_id": "TC-001",
		"feature": "Discount Codes",
		"test_scenario": "Apply discount code SAVE10 during checkout and confirm the order total is reduced",
		"test_steps": ["Enter the discount code SAVE10 in the promo code field and submit"],
		"expected_result": "The order total is reduced by 10% and the summary lists SAVE10",
		"test_type": "positive",
		"priority": "high",
		"grounded_in": "promo.md"
	}]`

	logPath := filepath.Join(t.TempDir(), "generation.jsonl")
	audit, err := genlog.NewLogger(genlog.LoggerConfig{Path: logPath}, zap.NewNop())
	require.NoError(t, err)

	backend := &stubBackend{response: response}
	store := &stubStore{chunks: promoChunks()}
	p := newTestPipeline(t, backend, store, true)
	p.deps.Audit = audit

	result, err := p.Generate(context.Background(), Request{
		Prompt: "Generate 1 test case for discount code checkout",
	})
	require.NoError(t, err)
	require.NoError(t, audit.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var reqEntry, respEntry genlog.Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &reqEntry))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &respEntry))

	assert.Equal(t, genlog.EventGenerationRequest, reqEntry.Event)
	assert.Equal(t, result.RequestID.String(), reqEntry.RequestID)
	assert.Equal(t, "ollama", reqEntry.Backend)
	assert.Equal(t, "mistral", reqEntry.Model)
	assert.Equal(t, 1, reqEntry.NumChunksUsed)

	assert.Equal(t, genlog.EventGenerationResponse, respEntry.Event)
	assert.Equal(t, 1, respEntry.NumTestCases)
	assert.Equal(t, []string{"TC-001"}, respEntry.TestIDs)
}

func TestGenerate_RecordsBackendMetrics(t *testing.T) {
	response := `[{
		"test_id": "TC-001",
		"feature": "Discount Codes",
		"test_scenario": "Apply discount code SAVE10 during checkout and confirm the order total is reduced",
		"test_steps": ["Enter the discount code SAVE10 in the promo code field and submit"],
		"expected_result": "The order total is reduced by 10% and the summary lists SAVE10",
		"test_type": "positive",
		"priority": "high",
		"grounded_in": "promo.md"
	}]`

	metrics := observability.NewMetrics("test")
	backend := &stubBackend{response: response}
	store := &stubStore{chunks: promoChunks()}
	p := newTestPipeline(t, backend, store, true)
	p.deps.Metrics = metrics

	_, err := p.Generate(context.Background(), Request{
		Prompt: "Generate 1 test case for discount code checkout",
	})
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.BackendRequestsTotal.WithLabelValues("ollama", "ok")), 1e-9)

	// A failing backend is labeled with its error code.
	failing := &stubBackend{err: domain.BackendUnavailableError("ollama", nil)}
	p = newTestPipeline(t, failing, store, true)
	p.deps.Metrics = metrics

	_, err = p.Generate(context.Background(), Request{
		Prompt: "Generate 1 test case for discount code checkout",
	})
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.BackendRequestsTotal.WithLabelValues("ollama", domain.ErrCodeBackendUnavailable)), 1e-9)
}

func TestDocName(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"docs/product_specs.md", "Product Specs"},
		{"promo.md", "Promo"},
		{"validation-rules.txt", "Validation Rules"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, docName(tt.source))
	}
}
