// Package llm provides the text generation backends: a local Ollama client
// and a hosted Groq client behind a shared interface. Both map transport
// failures to domain errors and sit behind a circuit breaker.
package llm

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/resilience"
)

// Sampling defaults shared by both backends. Low temperature keeps the JSON
// output stable across runs.
const (
	DefaultTemperature = 0.2
	DefaultTopP        = 0.9
	DefaultTopK        = 40
)

// StopToken ends generation once the model closes its JSON payload.
const StopToken = "</END_JSON>"

// Request is one generation call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Backend generates raw text from a prompt.
type Backend interface {
	// Generate returns the raw model output. Implementations retry
	// transient failures internally and return a domain error when all
	// attempts fail.
	Generate(ctx context.Context, req Request) (string, error)

	// Name identifies the backend for logging and audit records.
	Name() string
}

// modelTokenLimits maps model families to their context window sizes.
var modelTokenLimits = map[string]int{
	"llama3.2":                4096,
	"llama3.1":                8192,
	"llama2":                  4096,
	"mistral":                 8192,
	"qwen2.5":                 8192,
	"codellama":               4096,
	"llama-3.1-8b-instant":    131072,
	"llama-3.1-70b-versatile": 131072,
	"llama-3.3-70b-versatile": 131072,
	"openai/gpt-oss-120b":     131072,
	"openai/gpt-oss-20b":      131072,
}

// Token headroom kept free for the model's response. Hosted models get more
// because their windows are much larger.
const (
	reservedResponseTokensHosted = 4000
	reservedResponseTokensLocal  = 1200
)

// ModelWindow returns the context window for a model. Local model tags like
// "mistral:7b" resolve by family. Unknown hosted models assume the large
// window, unknown local models the small one.
func ModelWindow(model string, hosted bool) int {
	if window, ok := modelTokenLimits[model]; ok {
		return window
	}
	family, _, _ := strings.Cut(model, ":")
	if window, ok := modelTokenLimits[family]; ok {
		return window
	}
	if hosted {
		return 131072
	}
	return 8192
}

// breakerConfig builds the circuit breaker settings for a backend, logging
// every state transition so a tripped backend shows up in the run output.
func breakerConfig(name string, logger *zap.Logger) resilience.Config {
	cfg := resilience.DefaultConfig(name)
	cfg.OnStateChange = func(name string, from, to resilience.State) {
		logger.Warn("circuit breaker state changed",
			zap.String("backend", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}
	return cfg
}

// ContextBudget returns the token budget left for prompt context after
// reserving room for the response.
func ContextBudget(model string, hosted bool) int {
	reserved := reservedResponseTokensLocal
	if hosted {
		reserved = reservedResponseTokensHosted
	}
	return ModelWindow(model, hosted) - reserved
}
