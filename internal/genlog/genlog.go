// Package genlog provides an append-only JSONL log of generation requests
// and responses with async buffered writes.
package genlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event constants
const (
	EventGenerationRequest  = "generation_request"
	EventGenerationResponse = "generation_response"
)

const (
	maxQueryPreview  = 200
	maxPromptPreview = 2000
)

// Entry is a single JSONL record. Request and response events share the
// envelope fields and populate their own subset of the rest.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	RequestID string    `json:"request_id"`
	Backend   string    `json:"backend"`
	Model     string    `json:"model"`

	// Request fields
	NumChunksUsed int    `json:"num_chunks_used,omitempty"`
	Query         string `json:"query,omitempty"`
	PromptPreview string `json:"prompt_preview,omitempty"`

	// Response fields
	NumTestCases int      `json:"num_test_cases,omitempty"`
	NumDropped   int      `json:"num_dropped,omitempty"`
	TestIDs      []string `json:"test_ids,omitempty"`
}

// LoggerConfig holds configuration for the generation logger
type LoggerConfig struct {
	Path          string        // JSONL file path, parent dirs are created
	BufferSize    int           // Max entries to buffer before flush
	FlushInterval time.Duration // Time interval for flushing buffer
}

// DefaultLoggerConfig returns sensible defaults
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Path:          "logs/generation.jsonl",
		BufferSize:    64,
		FlushInterval: 1 * time.Second,
	}
}

// Logger appends generation entries to a JSONL file. Writes are buffered
// and flushed on a timer; a write failure is logged and never surfaced to
// the generation path.
type Logger struct {
	config LoggerConfig
	logger *zap.Logger

	buffer  chan *Entry
	flushes chan chan struct{}
	wg      sync.WaitGroup
	done    chan struct{}

	mu   sync.Mutex
	file *os.File
}

// NewLogger creates a generation logger writing to config.Path.
func NewLogger(config LoggerConfig, logger *zap.Logger) (*Logger, error) {
	if config.Path == "" {
		config.Path = DefaultLoggerConfig().Path
	}
	if config.BufferSize == 0 {
		config.BufferSize = DefaultLoggerConfig().BufferSize
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = DefaultLoggerConfig().FlushInterval
	}

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(config.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	l := &Logger{
		config: config,
		logger: logger,
		buffer:  make(chan *Entry, config.BufferSize*2),
		flushes: make(chan chan struct{}),
		done:    make(chan struct{}),
		file:    file,
	}

	l.wg.Add(1)
	go l.backgroundWriter()

	return l, nil
}

// LogRequest records a generation request before the backend call.
func (l *Logger) LogRequest(requestID, backend, model, query, prompt string, numChunks int) {
	l.log(&Entry{
		Event:         EventGenerationRequest,
		RequestID:     requestID,
		Backend:       backend,
		Model:         model,
		NumChunksUsed: numChunks,
		Query:         truncate(query, maxQueryPreview, ""),
		PromptPreview: truncate(prompt, maxPromptPreview, "..."),
	})
}

// LogResponse records the outcome of a generation after validation.
func (l *Logger) LogResponse(requestID, backend, model string, testIDs []string, numDropped int) {
	l.log(&Entry{
		Event:        EventGenerationResponse,
		RequestID:    requestID,
		Backend:      backend,
		Model:        model,
		NumTestCases: len(testIDs),
		NumDropped:   numDropped,
		TestIDs:      testIDs,
	})
}

func (l *Logger) log(entry *Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	// Non-blocking send to buffer
	select {
	case l.buffer <- entry:
	default:
		l.logger.Warn("generation log buffer full, writing directly",
			zap.String("event", entry.Event),
			zap.String("request_id", entry.RequestID),
		)
		l.writeBatch([]*Entry{entry})
	}
}

// backgroundWriter continuously flushes the buffer
func (l *Logger) backgroundWriter() {
	defer l.wg.Done()

	batch := make([]*Entry, 0, l.config.BufferSize)
	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-l.buffer:
			batch = append(batch, entry)
			if len(batch) >= l.config.BufferSize {
				l.writeBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				l.writeBatch(batch)
				batch = batch[:0]
			}

		case ack := <-l.flushes:
			for {
				select {
				case entry := <-l.buffer:
					batch = append(batch, entry)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				l.writeBatch(batch)
				batch = batch[:0]
			}
			close(ack)

		case <-l.done:
			// Drain remaining entries
			close(l.buffer)
			for entry := range l.buffer {
				batch = append(batch, entry)
			}
			if len(batch) > 0 {
				l.writeBatch(batch)
			}
			return
		}
	}
}

func (l *Logger) writeBatch(batch []*Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entry := range batch {
		line, err := json.Marshal(entry)
		if err != nil {
			l.logger.Error("failed to marshal generation log entry",
				zap.String("event", entry.Event),
				zap.Error(err),
			)
			continue
		}
		line = append(line, '\n')
		if _, err := l.file.Write(line); err != nil {
			l.logger.Error("failed to write generation log entry",
				zap.String("event", entry.Event),
				zap.Error(err),
			)
		}
	}
}

// Flush blocks until entries queued so far are written.
func (l *Logger) Flush() {
	ack := make(chan struct{})
	select {
	case l.flushes <- ack:
		<-ack
	case <-l.done:
	}
}

// Close drains the buffer and closes the underlying file.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func truncate(s string, limit int, suffix string) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + suffix
}
