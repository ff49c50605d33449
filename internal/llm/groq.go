package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/testweave/testweave/internal/config"
	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/resilience"
)

const groqSystemPrompt = "You are an expert QA engineer who generates comprehensive, accurate test cases from documentation. Generate complete, detailed test cases in valid JSON format. Follow the exact schema provided."

// GroqClient talks to the Groq OpenAI-compatible chat completions API.
type GroqClient struct {
	cfg        config.GroqConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	logger     *zap.Logger
}

// NewGroqClient creates a hosted backend client. The API key must be set.
func NewGroqClient(cfg config.GroqConfig, logger *zap.Logger) (*GroqClient, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewError(domain.ErrCodeValidation, "groq api key not configured")
	}

	rpm := cfg.RateLimitRPM
	if rpm <= 0 {
		rpm = 30
	}

	logger = logger.Named("groq")
	return &GroqClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		breaker: resilience.NewCircuitBreaker(breakerConfig("groq", logger)),
		logger:  logger,
	}, nil
}

// Name implements Backend.
func (c *GroqClient) Name() string { return "groq" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
	Stream      bool          `json:"stream"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage chatUsage `json:"usage"`
}

// Generate implements Backend.
func (c *GroqClient) Generate(ctx context.Context, req Request) (string, error) {
	if req.Prompt == "" {
		return "", domain.NewError(domain.ErrCodeValidation, "empty prompt")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
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
		if err := c.limiter.Wait(ctx); err != nil {
			return "", domain.WrapError(err, domain.ErrCodeBackendUnavailable, "rate limit wait interrupted")
		}

		text, err := c.completeOnce(ctx, maxTokens, temperature, req.Prompt)
		if err == nil {
			if text == "" {
				lastErr = domain.NewError(domain.ErrCodeUnparseableOutput, "groq returned empty response")
				c.logger.Warn("empty response, retrying", zap.Int("attempt", attempt))
				continue
			}
			return text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", lastErr
		}
		c.logger.Error("groq attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err))
	}

	return "", lastErr
}

func (c *GroqClient) completeOnce(ctx context.Context, maxTokens int, temperature float64, prompt string) (string, error) {
	text, err := c.breaker.Do(ctx, func(ctx context.Context) (string, error) {
		return c.post(ctx, maxTokens, temperature, prompt)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return "", domain.BackendUnavailableError("groq", err)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *GroqClient) post(ctx context.Context, maxTokens int, temperature float64, prompt string) (string, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: groqSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        DefaultTopP,
		Stream:      false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransportError("groq", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.BackendHTTPError("groq", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", domain.WrapError(err, domain.ErrCodeUnparseableOutput, "decoding groq response")
	}
	if len(result.Choices) == 0 {
		return "", domain.NewError(domain.ErrCodeUnparseableOutput, "no choices in groq response")
	}

	c.logger.Info("groq completion",
		zap.Int("prompt_tokens", result.Usage.PromptTokens),
		zap.Int("completion_tokens", result.Usage.CompletionTokens),
		zap.Int("total_tokens", result.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))

	return result.Choices[0].Message.Content, nil
}

// Validate performs a minimal round trip to confirm the API key and model
// work before the pipeline commits to the hosted backend.
func (c *GroqClient) Validate(ctx context.Context) error {
	_, err := c.post(ctx, 10, DefaultTemperature, "Test")
	return err
}
