package genlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "generation.jsonl")
	l, err := NewLogger(LoggerConfig{Path: path}, zap.NewNop())
	require.NoError(t, err)
	return l, path
}

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestLogRequestAndResponse(t *testing.T) {
	l, path := newTestLogger(t)

	l.LogRequest("req-1", "ollama", "llama3.2", "checkout form tests", "Generate test cases for the checkout form", 4)
	l.LogResponse("req-1", "ollama", "llama3.2", []string{"TC-001", "TC-002"}, 1)
	require.NoError(t, l.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 2)

	req := entries[0]
	assert.Equal(t, EventGenerationRequest, req.Event)
	assert.Equal(t, "req-1", req.RequestID)
	assert.Equal(t, "ollama", req.Backend)
	assert.Equal(t, "llama3.2", req.Model)
	assert.Equal(t, 4, req.NumChunksUsed)
	assert.Equal(t, "checkout form tests", req.Query)
	assert.Equal(t, "Generate test cases for the checkout form", req.PromptPreview)
	assert.False(t, req.Timestamp.IsZero())

	resp := entries[1]
	assert.Equal(t, EventGenerationResponse, resp.Event)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, 2, resp.NumTestCases)
	assert.Equal(t, 1, resp.NumDropped)
	assert.Equal(t, []string{"TC-001", "TC-002"}, resp.TestIDs)
}

func TestLogRequest_TruncatesPreviews(t *testing.T) {
	l, path := newTestLogger(t)

	query := strings.Repeat("q", 500)
	prompt := strings.Repeat("p", 5000)
	l.LogRequest("req-2", "groq", "llama-3.1-8b-instant", query, prompt, 2)
	require.NoError(t, l.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)

	assert.Len(t, entries[0].Query, maxQueryPreview)
	assert.Equal(t, maxPromptPreview+len("..."), len(entries[0].PromptPreview))
	assert.True(t, strings.HasSuffix(entries[0].PromptPreview, "..."))
}

func TestLogger_AppendsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generation.jsonl")

	first, err := NewLogger(LoggerConfig{Path: path}, zap.NewNop())
	require.NoError(t, err)
	first.LogResponse("req-a", "ollama", "llama3.2", []string{"TC-001"}, 0)
	require.NoError(t, first.Close())

	second, err := NewLogger(LoggerConfig{Path: path}, zap.NewNop())
	require.NoError(t, err)
	second.LogResponse("req-b", "ollama", "llama3.2", nil, 3)
	require.NoError(t, second.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 2)
	assert.Equal(t, "req-a", entries[0].RequestID)
	assert.Equal(t, "req-b", entries[1].RequestID)
	assert.Equal(t, 0, entries[1].NumTestCases)
	assert.Equal(t, 3, entries[1].NumDropped)
}

func TestLogger_FlushWritesQueuedEntries(t *testing.T) {
	l, path := newTestLogger(t)
	defer l.Close()

	l.LogRequest("req-c", "ollama", "mistral", "signup flow", "prompt body", 1)
	l.Flush()

	entries := readEntries(t, path)
	require.NotEmpty(t, entries)
	assert.Equal(t, "req-c", entries[0].RequestID)
}

func TestLogger_CreatesLogDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "gen.jsonl")
	l, err := NewLogger(LoggerConfig{Path: path}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
