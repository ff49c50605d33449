package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/config"
	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/resilience"
)

// num_predict bounds. Too low truncates mid-object, too high invites the
// model to ramble past the requested cases.
const (
	minNumPredict = 200
	maxNumPredict = 2000

	// On a first-attempt timeout the response budget shrinks to this so the
	// retry has a chance to finish.
	timeoutNumPredict = 600

	// A response shorter than this cannot contain even one test case.
	minUsefulResponse = 10
)

var ollamaStopSequences = []string{StopToken, "---END---", "</test_cases>", "```", "\n\n\n"}

// OllamaClient talks to a local Ollama server over its generate API.
type OllamaClient struct {
	cfg        config.OllamaConfig
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     *zap.Logger
}

// NewOllamaClient creates a client for the configured Ollama server.
func NewOllamaClient(cfg config.OllamaConfig, logger *zap.Logger) *OllamaClient {
	logger = logger.Named("ollama")
	return &OllamaClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: resilience.NewCircuitBreaker(breakerConfig("ollama", logger)),
		logger:  logger,
	}
}

// Name implements Backend.
func (c *OllamaClient) Name() string { return "ollama" }

type ollamaOptions struct {
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	TopK        int      `json:"top_k"`
	NumPredict  int      `json:"num_predict"`
	Stop        []string `json:"stop"`
	NumCtx      int      `json:"num_ctx"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
	Format  string        `json:"format"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	EvalCount       int    `json:"eval_count"`
	EvalDuration    int64  `json:"eval_duration"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	TotalDuration   int64  `json:"total_duration"`
}

// Generate implements Backend. Transient failures retry up to the configured
// limit; a timeout on the first attempt shrinks the response budget before
// retrying.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	if req.Prompt == "" {
		return "", domain.NewError(domain.ErrCodeValidation, "empty prompt")
	}

	numPredict := req.MaxTokens
	if numPredict < minNumPredict {
		numPredict = minNumPredict
	} else if numPredict > maxNumPredict {
		c.logger.Warn("num_predict capped", zap.Int("requested", req.MaxTokens), zap.Int("cap", maxNumPredict))
		numPredict = maxNumPredict
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	attempts := c.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		payload := ollamaRequest{
			Model:  c.cfg.Model,
			Prompt: req.Prompt,
			Stream: false,
			Options: ollamaOptions{
				Temperature: temperature,
				TopP:        DefaultTopP,
				TopK:        DefaultTopK,
				NumPredict:  numPredict,
				Stop:        ollamaStopSequences,
				NumCtx:      c.cfg.ContextWindow,
			},
			Format: "json",
		}

		start := time.Now()
		text, err := c.generateOnce(ctx, payload)
		if err == nil {
			if len(text) < minUsefulResponse {
				lastErr = domain.NewError(domain.ErrCodeUnparseableOutput, "model returned empty response")
				c.logger.Warn("short response, retrying",
					zap.Int("attempt", attempt),
					zap.Int("length", len(text)))
				continue
			}
			c.logger.Info("generation complete",
				zap.Int("attempt", attempt),
				zap.Int("response_chars", len(text)),
				zap.Duration("elapsed", time.Since(start)))
			return text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", lastErr
		}

		if domain.GetErrorCode(err) == domain.ErrCodeBackendTimeout && numPredict > timeoutNumPredict {
			c.logger.Warn("timeout, shrinking response budget for retry",
				zap.Int("from", numPredict),
				zap.Int("to", timeoutNumPredict))
			numPredict = timeoutNumPredict
		}
		c.logger.Error("generation attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err))
	}

	return "", lastErr
}

func (c *OllamaClient) generateOnce(ctx context.Context, payload ollamaRequest) (string, error) {
	text, err := c.breaker.Do(ctx, func(ctx context.Context) (string, error) {
		return c.post(ctx, payload)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return "", domain.BackendUnavailableError("ollama", err)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *OllamaClient) post(ctx context.Context, payload ollamaRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransportError("ollama", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.BackendHTTPError("ollama", resp.StatusCode, string(respBody))
	}

	var result ollamaResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", domain.WrapError(err, domain.ErrCodeUnparseableOutput, "decoding ollama response")
	}

	if result.EvalCount > 0 {
		c.logger.Debug("model stats",
			zap.Int("eval_count", result.EvalCount),
			zap.Int("prompt_eval_count", result.PromptEvalCount),
			zap.Duration("eval_duration", time.Duration(result.EvalDuration)),
			zap.Duration("total_duration", time.Duration(result.TotalDuration)))
	}

	return result.Response, nil
}

// classifyTransportError maps connection and timeout failures to the domain
// error codes the pipeline branches on.
func classifyTransportError(backend string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.BackendTimeoutError(backend, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.BackendTimeoutError(backend, err)
	}
	return domain.BackendUnavailableError(backend, err)
}
