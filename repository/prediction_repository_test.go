package repository

import (
	"context"
	"testing"
	"time"

	"predictor/models"
	"predictor/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictionRepository_CreateAndGet(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewPredictionRepository(testDB.DB)
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		p, err := repo.GetByID(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("round trips options and window", func(t *testing.T) {
		opens := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		deadline := opens.Add(48 * time.Hour)
		created := testutil.CreateTestPredictionWithWindow("Will it rain?", opens, deadline)

		require.NoError(t, repo.Create(ctx, created))
		assert.NotZero(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)

		assert.Equal(t, "Will it rain?", got.Title)
		assert.Equal(t, models.PredictionStatusOpen, got.Status)
		assert.Equal(t, created.Options, got.Options)
		require.NotNil(t, got.OpensAt)
		require.NotNil(t, got.Deadline)
		assert.True(t, opens.Equal(*got.OpensAt))
		assert.True(t, deadline.Equal(*got.Deadline))
		assert.Nil(t, got.RevealAt)
	})
}

func TestPredictionRepository_List(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewPredictionRepository(testDB.DB)
	ctx := context.Background()

	sports := testutil.CreateTestPrediction("Final score")
	sports.Category = "sports"
	require.NoError(t, repo.Create(ctx, sports))

	weather := testutil.CreateTestPrediction("Snow by Friday")
	weather.Category = "weather"
	require.NoError(t, repo.Create(ctx, weather))
	require.NoError(t, repo.SetStatus(ctx, weather.ID, models.PredictionStatusClosed))

	t.Run("all newest first", func(t *testing.T) {
		all, err := repo.List(ctx, models.PredictionFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, weather.ID, all[0].ID)
	})

	t.Run("by status", func(t *testing.T) {
		status := models.PredictionStatusOpen
		open, err := repo.List(ctx, models.PredictionFilter{Status: &status})
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, sports.ID, open[0].ID)
	})

	t.Run("by category", func(t *testing.T) {
		got, err := repo.List(ctx, models.PredictionFilter{Category: "weather"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, models.PredictionStatusClosed, got[0].Status)
	})
}

func TestPredictionRepository_UpdateAndDelete(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewPredictionRepository(testDB.DB)
	bets := NewBetRepository(testDB.DB)
	ctx := context.Background()

	p := testutil.CreateTestPrediction("Original")
	require.NoError(t, repo.Create(ctx, p))

	p.Title = "Edited"
	p.Options = append(p.Options, models.PredictionOption{ID: "maybe", Text: "Maybe"})
	require.NoError(t, repo.Update(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Edited", got.Title)
	assert.Len(t, got.Options, 3)

	_, err = bets.Upsert(ctx, testutil.CreateTestBet(p.ID, "user-1", "yes", 10))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, p.ID))

	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	bet, err := bets.Get(ctx, p.ID, "user-1")
	require.NoError(t, err)
	assert.Nil(t, bet, "bets cascade with their prediction")
}

func TestPredictionRepository_GetExpiredOpen(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewPredictionRepository(testDB.DB)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	expired := testutil.CreateTestPredictionWithWindow("expired", now.Add(-48*time.Hour), now.Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, expired))
	running := testutil.CreateTestPredictionWithWindow("running", now.Add(-48*time.Hour), now.Add(time.Hour))
	require.NoError(t, repo.Create(ctx, running))
	unbounded := testutil.CreateTestPrediction("unbounded")
	require.NoError(t, repo.Create(ctx, unbounded))

	got, err := repo.GetExpiredOpen(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, expired.ID, got[0].ID)
}
