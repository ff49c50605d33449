package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testweave/testweave/internal/domain"
)

func TestRunRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	db := sqlx.NewDb(testDB.DB, "postgres")
	repo := NewRunRepository(db)
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		testDB.TruncateTables(t)

		run := &domain.GenerationRun{
			Query:     "checkout form validation",
			Backend:   "ollama",
			Model:     "llama3.2",
			Status:    domain.RunStatusCompleted,
			Strategy:  domain.StrategyStandard,
			NumChunks: 5,
			Duration:  1200 * time.Millisecond,
		}

		err := repo.Create(ctx, run)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, run.ID)

		fetched, err := repo.GetByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, "checkout form validation", fetched.Query)
		assert.Equal(t, "ollama", fetched.Backend)
		assert.Equal(t, domain.RunStatusCompleted, fetched.Status)
		assert.Equal(t, domain.StrategyStandard, fetched.Strategy)
		assert.Equal(t, 5, fetched.NumChunks)
		assert.Equal(t, 1200*time.Millisecond, fetched.Duration)
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		testDB.TruncateTables(t)

		_, err := repo.GetByID(ctx, uuid.New())
		require.Error(t, err)
		assert.Equal(t, domain.ErrCodeNotFound, domain.GetErrorCode(err))
	})

	t.Run("ListRecent", func(t *testing.T) {
		testDB.TruncateTables(t)

		base := time.Now().UTC().Truncate(time.Second)
		for i := 0; i < 3; i++ {
			run := &domain.GenerationRun{
				Query:     "query",
				Backend:   "ollama",
				Model:     "llama3.2",
				Status:    domain.RunStatusCompleted,
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}
			require.NoError(t, repo.Create(ctx, run))
		}

		runs, err := repo.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.True(t, runs[0].CreatedAt.After(runs[1].CreatedAt))
	})

	t.Run("UpdateOutcome", func(t *testing.T) {
		testDB.TruncateTables(t)

		run := &domain.GenerationRun{
			Query:   "signup flow",
			Backend: "groq",
			Model:   "llama-3.1-8b-instant",
			Status:  domain.RunStatusCompleted,
		}
		require.NoError(t, repo.Create(ctx, run))

		err := repo.UpdateOutcome(ctx, run.ID, domain.RunStatusFallback, "sanitize", "", 800*time.Millisecond)
		require.NoError(t, err)

		fetched, err := repo.GetByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatusFallback, fetched.Status)
		assert.Equal(t, "sanitize", fetched.RecoveryStage)
		assert.Equal(t, 800*time.Millisecond, fetched.Duration)
	})

	t.Run("UpdateOutcome_NotFound", func(t *testing.T) {
		testDB.TruncateTables(t)

		err := repo.UpdateOutcome(ctx, uuid.New(), domain.RunStatusFailed, "", "backend unreachable", 0)
		require.Error(t, err)
		assert.Equal(t, domain.ErrCodeNotFound, domain.GetErrorCode(err))
	})
}
