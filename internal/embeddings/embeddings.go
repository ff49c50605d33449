package embeddings

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/config"
	"github.com/testweave/testweave/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Service generates embeddings via an Ollama-compatible HTTP endpoint and
// memoizes results. Memoized vectors never expire in-process; a text always
// maps to the same vector for the lifetime of the service.
type Service struct {
	cfg        config.EmbeddingsConfig
	httpClient *http.Client
	redis      *redis.Client
	logger     *zap.Logger

	cache      map[string][]float32
	cacheMu    sync.RWMutex
	onCacheHit func(hit bool)
}

// NewService creates an embedding service. redisClient may be nil to disable
// the second-level cache.
func NewService(cfg config.EmbeddingsConfig, redisClient *redis.Client, logger *zap.Logger) *Service {
	return &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		redis:      redisClient,
		logger:     logger,
		cache:      make(map[string][]float32),
	}
}

// OnCacheLookup registers a callback invoked with the outcome of every cache
// lookup, memo and Redis level alike. Used to feed cache hit ratio metrics.
func (s *Service) OnCacheLookup(fn func(hit bool)) {
	s.onCacheHit = fn
}

func (s *Service) recordLookup(hit bool) {
	if s.onCacheHit != nil {
		s.onCacheHit(hit)
	}
}

// Embed generates an embedding for text, using the memo cache when possible.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	cacheKey := s.cacheKey(text)

	s.cacheMu.RLock()
	cached, ok := s.cache[cacheKey]
	s.cacheMu.RUnlock()
	if ok {
		s.recordLookup(true)
		return cached, nil
	}

	if s.redis != nil && s.cfg.RedisCache {
		data, err := s.redis.Get(ctx, "emb:"+cacheKey).Bytes()
		if err == nil {
			var embedding []float32
			if err := json.Unmarshal(data, &embedding); err == nil {
				s.setMemoryCache(cacheKey, embedding)
				s.recordLookup(true)
				return embedding, nil
			}
		}
	}

	s.recordLookup(false)
	embedding, err := s.generate(ctx, text)
	if err != nil {
		return nil, err
	}

	s.setMemoryCache(cacheKey, embedding)

	if s.redis != nil && s.cfg.RedisCache {
		data, _ := json.Marshal(embedding)
		s.redis.Set(ctx, "emb:"+cacheKey, data, s.cfg.RedisTTL)
	}

	return embedding, nil
}

// EmbedBatch generates embeddings for multiple texts, reusing cached vectors.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := s.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d of %d: %w", i+1, len(texts), err)
		}
		results[i] = embedding
	}
	return results, nil
}

// CacheStats returns memo cache statistics.
func (s *Service) CacheStats() map[string]any {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	return map[string]any{
		"memory_cache_size": len(s.cache),
		"redis_cache":       s.redis != nil && s.cfg.RedisCache,
	}
}

func (s *Service) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text + s.cfg.Model))
	return hex.EncodeToString(hash[:16])
}

func (s *Service) setMemoryCache(key string, embedding []float32) {
	s.cacheMu.Lock()
	s.cache[key] = embedding
	s.cacheMu.Unlock()
}

func (s *Service) generate(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]any{
		"model":  s.cfg.Model,
		"prompt": text,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.BaseURL+"/api/embeddings", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, domain.BackendUnavailableError("embeddings", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, domain.BackendHTTPError("embeddings", resp.StatusCode, string(body))
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response contained no vector")
	}

	s.logger.Debug("generated embedding",
		zap.Int("text_len", len(text)),
		zap.Int("dimension", len(result.Embedding)),
	)

	return result.Embedding, nil
}

// CosineSimilarity calculates cosine similarity between two embeddings.
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
