package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/testweave/testweave/internal/domain"
)

// RunRepository persists generation runs with PostgreSQL
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// runRow represents the database row structure
type runRow struct {
	ID            uuid.UUID `db:"id"`
	Query         string    `db:"query"`
	Backend       string    `db:"backend"`
	Model         string    `db:"model"`
	Status        string    `db:"status"`
	Strategy      string    `db:"strategy"`
	NumChunks     int       `db:"num_chunks"`
	RecoveryStage string    `db:"recovery_stage"`
	AbortReason   string    `db:"abort_reason"`
	DurationMs    int64     `db:"duration_ms"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r *runRow) toDomain() *domain.GenerationRun {
	return &domain.GenerationRun{
		ID:            r.ID,
		Query:         r.Query,
		Backend:       r.Backend,
		Model:         r.Model,
		Status:        domain.RunStatus(r.Status),
		Strategy:      r.Strategy,
		NumChunks:     r.NumChunks,
		RecoveryStage: r.RecoveryStage,
		AbortReason:   r.AbortReason,
		Duration:      time.Duration(r.DurationMs) * time.Millisecond,
		CreatedAt:     r.CreatedAt,
	}
}

// Create inserts a new generation run
func (r *RunRepository) Create(ctx context.Context, run *domain.GenerationRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO generation_runs (
			id, query, backend, model, status, strategy, num_chunks,
			recovery_stage, abort_reason, duration_ms, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Query,
		run.Backend,
		run.Model,
		string(run.Status),
		run.Strategy,
		run.NumChunks,
		run.RecoveryStage,
		run.AbortReason,
		run.Duration.Milliseconds(),
		run.CreatedAt,
	)
	return err
}

// GetByID retrieves a generation run by ID
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationRun, error) {
	query := `
		SELECT id, query, backend, model, status, strategy, num_chunks,
		       recovery_stage, abort_reason, duration_ms, created_at
		FROM generation_runs
		WHERE id = $1
	`

	var row runRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("generation_run", id)
		}
		return nil, err
	}

	return row.toDomain(), nil
}

// ListRecent retrieves the most recent runs, newest first
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*domain.GenerationRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, query, backend, model, status, strategy, num_chunks,
		       recovery_stage, abort_reason, duration_ms, created_at
		FROM generation_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, err
	}

	runs := make([]*domain.GenerationRun, len(rows))
	for i, row := range rows {
		runs[i] = row.toDomain()
	}

	return runs, nil
}

// UpdateOutcome records the terminal status of a run
func (r *RunRepository) UpdateOutcome(ctx context.Context, id uuid.UUID, status domain.RunStatus, recoveryStage, abortReason string, duration time.Duration) error {
	query := `
		UPDATE generation_runs
		SET status = $2, recovery_stage = $3, abort_reason = $4, duration_ms = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, string(status), recoveryStage, abortReason, duration.Milliseconds())
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.NotFoundError("generation_run", id)
	}

	return nil
}
