package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/config"
	"github.com/testweave/testweave/internal/domain"
)

func groqTestConfig(url string) config.GroqConfig {
	return config.GroqConfig{
		APIKey:       "gsk_test",
		BaseURL:      url,
		Model:        "llama-3.3-70b-versatile",
		Timeout:      5 * time.Second,
		MaxTokens:    4096,
		MaxRetries:   2,
		RateLimitRPM: 6000, // effectively unlimited for tests
	}
}

func groqChoices(content string) chatResponse {
	var resp chatResponse
	resp.Choices = []struct {
		Message chatMessage `json:"message"`
	}{
		{Message: chatMessage{Role: "assistant", Content: content}},
	}
	resp.Usage = chatUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}
	return resp
}

func TestGroqClient_Generate(t *testing.T) {
	var captured chatRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(groqChoices(`[{"test_id": "TC-001"}]`))
	}))
	defer server.Close()

	c, err := NewGroqClient(groqTestConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	text, err := c.Generate(context.Background(), Request{Prompt: "generate", MaxTokens: 2000})
	require.NoError(t, err)
	assert.Equal(t, `[{"test_id": "TC-001"}]`, text)

	assert.Equal(t, "Bearer gsk_test", auth)
	assert.Equal(t, "llama-3.3-70b-versatile", captured.Model)
	assert.Equal(t, 2000, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "generate", captured.Messages[1].Content)
}

func TestGroqClient_DefaultMaxTokens(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(groqChoices("ok response"))
	}))
	defer server.Close()

	c, err := NewGroqClient(groqTestConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, 4096, captured.MaxTokens)
}

func TestGroqClient_RequiresAPIKey(t *testing.T) {
	cfg := groqTestConfig("http://localhost")
	cfg.APIKey = ""

	_, err := NewGroqClient(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeValidation, domain.GetErrorCode(err))
}

func TestGroqClient_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer server.Close()

	cfg := groqTestConfig(server.URL)
	cfg.MaxRetries = 1
	c, err := NewGroqClient(cfg, zap.NewNop())
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeUnparseableOutput, domain.GetErrorCode(err))
}

func TestGroqClient_HTTPErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit exceeded"}}`))
	}))
	defer server.Close()

	cfg := groqTestConfig(server.URL)
	cfg.MaxRetries = 1
	c, err := NewGroqClient(cfg, zap.NewNop())
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeBackendHTTP, domain.GetErrorCode(err))

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Contains(t, domainErr.Details["body"], "rate limit exceeded")
}

func TestGroqClient_RetriesEmptyContent(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			json.NewEncoder(w).Encode(groqChoices(""))
			return
		}
		json.NewEncoder(w).Encode(groqChoices("recovered response"))
	}))
	defer server.Close()

	c, err := NewGroqClient(groqTestConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	text, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "recovered response", text)
}
