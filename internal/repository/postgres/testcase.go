package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/testweave/testweave/internal/domain"
)

// TestCaseRepository persists accepted test cases with PostgreSQL
type TestCaseRepository struct {
	db *sqlx.DB
}

// NewTestCaseRepository creates a new test case repository
func NewTestCaseRepository(db *sqlx.DB) *TestCaseRepository {
	return &TestCaseRepository{db: db}
}

// testCaseRow represents the database row structure
type testCaseRow struct {
	ID             uuid.UUID `db:"id"`
	RunID          uuid.UUID `db:"run_id"`
	TestID         string    `db:"test_id"`
	Feature        string    `db:"feature"`
	TestScenario   string    `db:"test_scenario"`
	TestSteps      []byte    `db:"test_steps"`
	ExpectedResult string    `db:"expected_result"`
	TestType       string    `db:"test_type"`
	Priority       string    `db:"priority"`
	GroundedIn     string    `db:"grounded_in"`
	QualityScore   float64   `db:"quality_score"`
	NeedsReview    bool      `db:"needs_review"`
	ReviewReason   string    `db:"review_reason"`
	Synthesized    bool      `db:"synthesized"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r *testCaseRow) toDomain() (*domain.TestCase, error) {
	tc := &domain.TestCase{
		TestID:         r.TestID,
		Feature:        r.Feature,
		TestScenario:   r.TestScenario,
		ExpectedResult: r.ExpectedResult,
		TestType:       domain.TestType(r.TestType),
		Priority:       domain.Priority(r.Priority),
		GroundedIn:     r.GroundedIn,
		QualityScore:   r.QualityScore,
		NeedsReview:    r.NeedsReview,
		ReviewReason:   r.ReviewReason,
		Synthesized:    r.Synthesized,
	}

	if r.TestSteps != nil {
		if err := json.Unmarshal(r.TestSteps, &tc.TestSteps); err != nil {
			return nil, err
		}
	}

	return tc, nil
}

// CreateBatch inserts the test cases of one run in a single transaction
func (r *TestCaseRepository) CreateBatch(ctx context.Context, runID uuid.UUID, cases []*domain.TestCase) error {
	if len(cases) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO generated_test_cases (
			id, run_id, test_id, feature, test_scenario, test_steps,
			expected_result, test_type, priority, grounded_in,
			quality_score, needs_review, review_reason, synthesized, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, tc := range cases {
		// Nil step slices become empty JSONB arrays
		steps := tc.TestSteps
		if steps == nil {
			steps = []string{}
		}
		stepsJSON, err := json.Marshal(steps)
		if err != nil {
			return err
		}

		_, err = stmt.ExecContext(ctx,
			uuid.New(),
			runID,
			tc.TestID,
			tc.Feature,
			tc.TestScenario,
			stepsJSON,
			tc.ExpectedResult,
			string(tc.TestType),
			string(tc.Priority),
			tc.GroundedIn,
			tc.QualityScore,
			tc.NeedsReview,
			tc.ReviewReason,
			tc.Synthesized,
			now,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return domain.NotFoundError("generation_run", runID)
			}
			if isUniqueViolation(err) {
				return domain.NewError(domain.ErrCodeValidation, "duplicate test id in run").
					WithDetail("test_id", tc.TestID)
			}
			return err
		}
	}

	return tx.Commit()
}

// GetByRunID retrieves all test cases persisted for a run
func (r *TestCaseRepository) GetByRunID(ctx context.Context, runID uuid.UUID) ([]*domain.TestCase, error) {
	query := `
		SELECT id, run_id, test_id, feature, test_scenario, test_steps,
		       expected_result, test_type, priority, grounded_in,
		       quality_score, needs_review, review_reason, synthesized, created_at
		FROM generated_test_cases
		WHERE run_id = $1
		ORDER BY test_id
	`

	var rows []testCaseRow
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, err
	}

	cases := make([]*domain.TestCase, len(rows))
	for i, row := range rows {
		tc, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		cases[i] = tc
	}

	return cases, nil
}

// CountNeedsReview returns how many cases of a run are flagged for review
func (r *TestCaseRepository) CountNeedsReview(ctx context.Context, runID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM generated_test_cases
		WHERE run_id = $1 AND needs_review
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, runID); err != nil {
		return 0, err
	}

	return count, nil
}
