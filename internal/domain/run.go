package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the terminal outcome of a generation run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFallback  RunStatus = "fallback"
	RunStatusAborted   RunStatus = "aborted"
	RunStatusFailed    RunStatus = "failed"
)

// GenerationRun records one pass through the generation pipeline: the query,
// the backend that served it, how retrieval went, and the terminal outcome.
type GenerationRun struct {
	ID            uuid.UUID     `json:"id"`
	Query         string        `json:"query"`
	Backend       string        `json:"backend"`
	Model         string        `json:"model"`
	Status        RunStatus     `json:"status"`
	Strategy      string        `json:"strategy"`
	NumChunks     int           `json:"num_chunks"`
	RecoveryStage string        `json:"recovery_stage,omitempty"`
	AbortReason   string        `json:"abort_reason,omitempty"`
	Duration      time.Duration `json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
}
