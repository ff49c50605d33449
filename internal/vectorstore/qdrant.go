// Package vectorstore provides access to the Qdrant document index.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/config"
	"github.com/testweave/testweave/internal/domain"
)

// Store retrieves document chunks by vector similarity.
type Store interface {
	Query(ctx context.Context, embedding []float32, limit int) ([]domain.Chunk, error)
}

// Client talks to Qdrant over its HTTP API.
type Client struct {
	cfg        config.QdrantConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Qdrant client.
func NewClient(cfg config.QdrantConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// EnsureCollection creates the chunk collection if it doesn't exist.
func (c *Client) EnsureCollection(ctx context.Context) error {
	exists, err := c.collectionExists(ctx)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if exists {
		c.logger.Debug("collection already exists", zap.String("collection", c.cfg.Collection))
		return nil
	}

	payload := map[string]any{
		"vectors": map[string]any{
			"size":     c.cfg.VectorSize,
			"distance": "Cosine",
		},
	}
	if _, err := c.request(ctx, "PUT", "/collections/"+c.cfg.Collection, payload); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	indexPayload := map[string]any{
		"field_name":   "doc_type",
		"field_schema": "keyword",
	}
	if _, err := c.request(ctx, "PUT", "/collections/"+c.cfg.Collection+"/index", indexPayload); err != nil {
		c.logger.Warn("failed to create doc_type index", zap.Error(err))
	}

	c.logger.Info("created Qdrant collection", zap.String("collection", c.cfg.Collection))
	return nil
}

// UpsertChunks stores chunks with their embeddings. Point IDs derive from the
// chunk ID, so re-ingesting the same corpus overwrites in place.
func (c *Client) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]map[string]any, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", chunk.ChunkID)
		}
		points = append(points, map[string]any{
			"id":     uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunk.ChunkID)).String(),
			"vector": chunk.Embedding,
			"payload": map[string]any{
				"chunk_id": chunk.ChunkID,
				"text":     chunk.Text,
				"source":   chunk.Source,
				"doc_type": chunk.DocType,
			},
		})
	}

	payload := map[string]any{"points": points}
	if _, err := c.request(ctx, "PUT", "/collections/"+c.cfg.Collection+"/points?wait=true", payload); err != nil {
		return fmt.Errorf("upserting chunks: %w", err)
	}

	c.logger.Debug("upserted chunks", zap.Int("count", len(chunks)))
	return nil
}

// Query returns the most similar chunks for an embedding. Distance is
// reported as 1 - cosine score, clamped to [0, 1].
func (c *Client) Query(ctx context.Context, embedding []float32, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		limit = c.cfg.TopK
	}

	payload := map[string]any{
		"vector":       embedding,
		"limit":        limit,
		"with_payload": true,
	}

	resp, err := c.request(ctx, "POST", "/collections/"+c.cfg.Collection+"/points/search", payload)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	var result struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(result.Result))
	for _, r := range result.Result {
		distance := 1 - r.Score
		if distance < 0 {
			distance = 0
		}
		if distance > 1 {
			distance = 1
		}
		chunks = append(chunks, domain.Chunk{
			ChunkID:  getString(r.Payload, "chunk_id"),
			Text:     getString(r.Payload, "text"),
			Source:   getString(r.Payload, "source"),
			DocType:  getString(r.Payload, "doc_type"),
			Distance: distance,
		})
	}

	return chunks, nil
}

// Count returns the number of points in the collection.
func (c *Client) Count(ctx context.Context) (int, error) {
	resp, err := c.request(ctx, "POST", "/collections/"+c.cfg.Collection+"/points/count", map[string]any{"exact": true})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}

	var result struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return 0, fmt.Errorf("parsing count: %w", err)
	}
	return result.Result.Count, nil
}

// Health checks the Qdrant server health.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.request(ctx, "GET", "/healthz", nil)
	return err
}

func (c *Client) collectionExists(ctx context.Context) (bool, error) {
	resp, err := c.request(ctx, "GET", "/collections", nil)
	if err != nil {
		return false, err
	}

	var result struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return false, err
	}

	for _, col := range result.Result.Collections {
		if col.Name == c.cfg.Collection {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) request(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(err, domain.ErrCodeStoreUnavailable, "qdrant unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("qdrant error %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
