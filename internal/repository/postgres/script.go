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

// ScriptRepository persists rendered Selenium scripts with PostgreSQL
type ScriptRepository struct {
	db *sqlx.DB
}

// NewScriptRepository creates a new script repository
func NewScriptRepository(db *sqlx.DB) *ScriptRepository {
	return &ScriptRepository{db: db}
}

// RenderedScript is a stored script artifact tied to a generation run.
type RenderedScript struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RunID     uuid.UUID `db:"run_id" json:"run_id"`
	Framework string    `db:"framework" json:"framework"`
	Browser   string    `db:"browser" json:"browser"`
	PageTitle string    `db:"page_title" json:"page_title"`
	Script    string    `db:"script" json:"script"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Create inserts a rendered script
func (r *ScriptRepository) Create(ctx context.Context, script *RenderedScript) error {
	if script.ID == uuid.Nil {
		script.ID = uuid.New()
	}
	if script.CreatedAt.IsZero() {
		script.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO rendered_scripts (id, run_id, framework, browser, page_title, script, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		script.ID,
		script.RunID,
		script.Framework,
		script.Browser,
		script.PageTitle,
		script.Script,
		script.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.NotFoundError("generation_run", script.RunID)
		}
		return err
	}

	return nil
}

// GetByRunID retrieves the scripts rendered for a run, newest first
func (r *ScriptRepository) GetByRunID(ctx context.Context, runID uuid.UUID) ([]*RenderedScript, error) {
	query := `
		SELECT id, run_id, framework, browser, page_title, script, created_at
		FROM rendered_scripts
		WHERE run_id = $1
		ORDER BY created_at DESC
	`

	var scripts []*RenderedScript
	if err := r.db.SelectContext(ctx, &scripts, query, runID); err != nil {
		return nil, err
	}

	return scripts, nil
}

// GetLatest retrieves the most recently rendered script for a run
func (r *ScriptRepository) GetLatest(ctx context.Context, runID uuid.UUID) (*RenderedScript, error) {
	query := `
		SELECT id, run_id, framework, browser, page_title, script, created_at
		FROM rendered_scripts
		WHERE run_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var script RenderedScript
	if err := r.db.GetContext(ctx, &script, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("rendered_script", runID)
		}
		return nil, err
	}

	return &script, nil
}
