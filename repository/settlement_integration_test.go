package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"predictor/events"
	"predictor/models"
	"predictor/repository/testutil"
	"predictor/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settlementFixture struct {
	predictions service.PredictionService
	bets        service.BetService
	settlement  service.SettlementService
	leaderboard service.LeaderboardService
	stats       *UserStatisticsRepository
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	testDB := testutil.SetupTestDatabase(t)
	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())

	return &settlementFixture{
		predictions: service.NewPredictionService(factory, service.SystemClock),
		bets:        service.NewBetService(factory, service.SystemClock),
		settlement:  service.NewSettlementService(factory, service.SystemClock),
		leaderboard: service.NewLeaderboardService(factory),
		stats:       NewUserStatisticsRepository(testDB.DB),
	}
}

func (f *settlementFixture) createPrediction(t *testing.T, ctx context.Context, title string) *models.Prediction {
	p, err := f.predictions.Create(ctx, service.Actor{UserID: "admin-1", IsAdmin: true}, service.CreatePredictionInput{
		Title: title,
		Options: []models.PredictionOption{
			{ID: "a", Text: "A"},
			{ID: "b", Text: "B"},
		},
	})
	require.NoError(t, err)
	return p
}

func TestSettlement_EndToEnd(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	admin := service.Actor{UserID: "admin-1", IsAdmin: true}
	u := service.Actor{UserID: "user-u"}

	p := f.createPrediction(t, ctx, "P")
	q := f.createPrediction(t, ctx, "Q")

	_, err := f.bets.PlaceOrUpdateBet(ctx, u, p.ID, "a", 100)
	require.NoError(t, err)

	outcome, err := f.settlement.Reveal(ctx, admin, p.ID, "a")
	require.NoError(t, err)
	assert.False(t, outcome.Correction)

	stats, err := f.settlement.GetUserStatistics(ctx, "user-u")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), stats.TotalPoints)
	assert.Equal(t, 1, stats.CurrentStreak)

	_, err = f.bets.PlaceOrUpdateBet(ctx, u, q.ID, "b", 200)
	require.NoError(t, err)

	_, err = f.settlement.Reveal(ctx, admin, q.ID, "a")
	require.NoError(t, err)

	stats, err = f.settlement.GetUserStatistics(ctx, "user-u")
	require.NoError(t, err)
	assert.Equal(t, int64(900), stats.TotalPoints)
	assert.Equal(t, int64(100), stats.PointsWon)
	assert.Equal(t, int64(200), stats.PointsLost)
	assert.Equal(t, 1, stats.CorrectCount)
	assert.Equal(t, 2, stats.TotalCount)
	assert.Equal(t, 0, stats.CurrentStreak)
	assert.Equal(t, 1, stats.LongestStreak)

	t.Run("re-reveal with the same option changes nothing", func(t *testing.T) {
		outcome, err := f.settlement.Reveal(ctx, admin, p.ID, "a")
		require.NoError(t, err)
		assert.True(t, outcome.Correction)

		again, err := f.settlement.GetUserStatistics(ctx, "user-u")
		require.NoError(t, err)
		assert.True(t, stats.SameTotals(again))
	})

	t.Run("correction is replayed in original order", func(t *testing.T) {
		outcome, err := f.settlement.Reveal(ctx, admin, p.ID, "b")
		require.NoError(t, err)
		assert.True(t, outcome.Correction)
		assert.Equal(t, "a", outcome.PreviousOptionID)

		corrected, err := f.settlement.GetUserStatistics(ctx, "user-u")
		require.NoError(t, err)
		assert.Equal(t, int64(700), corrected.TotalPoints)
		assert.Equal(t, 0, corrected.CorrectCount)
		assert.Equal(t, 0, corrected.LongestStreak)
	})

	t.Run("bets are rejected once revealed", func(t *testing.T) {
		_, err := f.bets.PlaceOrUpdateBet(ctx, u, p.ID, "a", 10)
		assert.ErrorIs(t, err, service.ErrBettingClosed)
	})

	t.Run("full recompute matches incremental settlement", func(t *testing.T) {
		before, err := f.leaderboard.List(ctx, 0)
		require.NoError(t, err)

		_, err = f.settlement.RecomputeAll(ctx, admin)
		require.NoError(t, err)

		after, err := f.leaderboard.List(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

// assertReplayMatches checks the stored statistics against a replay of the
// user's settled history
func (f *settlementFixture) assertReplayMatches(t *testing.T, ctx context.Context, userID string) *models.UserStatistics {
	t.Helper()
	stored, err := f.settlement.GetUserStatistics(ctx, userID)
	require.NoError(t, err)
	history, err := f.stats.GetSettledHistory(ctx, userID)
	require.NoError(t, err)
	replayed := service.ReplayUserHistory(userID, history, time.Now()).Statistics
	assert.True(t, replayed.SameTotals(stored), "stored %+v, replayed %+v", stored, replayed)
	return stored
}

func TestSettlement_ReopenedRevealedPrediction(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	admin := service.Actor{UserID: "admin-1", IsAdmin: true}
	u := service.Actor{UserID: "user-u"}
	v := service.Actor{UserID: "user-v"}

	p := f.createPrediction(t, ctx, "P")

	_, err := f.bets.PlaceOrUpdateBet(ctx, u, p.ID, "a", 100)
	require.NoError(t, err)
	_, err = f.settlement.Reveal(ctx, admin, p.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), f.assertReplayMatches(t, ctx, "user-u").TotalPoints)

	_, err = f.predictions.SetStatus(ctx, admin, p.ID, string(models.PredictionStatusOpen))
	require.NoError(t, err)

	t.Run("replacing a bet resettles immediately", func(t *testing.T) {
		_, err := f.bets.PlaceOrUpdateBet(ctx, u, p.ID, "b", 300)
		require.NoError(t, err)

		stats := f.assertReplayMatches(t, ctx, "user-u")
		assert.Equal(t, int64(700), stats.TotalPoints)
		assert.Equal(t, 1, stats.TotalCount)
	})

	t.Run("a new bettor is settled against the kept result", func(t *testing.T) {
		_, err := f.bets.PlaceOrUpdateBet(ctx, v, p.ID, "a", 50)
		require.NoError(t, err)

		stats := f.assertReplayMatches(t, ctx, "user-v")
		assert.Equal(t, int64(1050), stats.TotalPoints)
	})

	t.Run("withdrawing resets the bettor", func(t *testing.T) {
		require.NoError(t, f.bets.WithdrawBet(ctx, u, p.ID))

		stats := f.assertReplayMatches(t, ctx, "user-u")
		assert.Equal(t, models.DefaultBalance, stats.TotalPoints)
		assert.Equal(t, 0, stats.TotalCount)
	})

	t.Run("re-reveal leaves the withdrawn bettor alone", func(t *testing.T) {
		_, err := f.settlement.Reveal(ctx, admin, p.ID, "a")
		require.NoError(t, err)

		assert.Equal(t, models.DefaultBalance, f.assertReplayMatches(t, ctx, "user-u").TotalPoints)
		assert.Equal(t, int64(1050), f.assertReplayMatches(t, ctx, "user-v").TotalPoints)

		changed, err := f.settlement.RecomputeAll(ctx, admin)
		require.NoError(t, err)
		assert.Zero(t, changed)
	})
}

func TestSettlement_ConcurrentBetsAndReveal(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	admin := service.Actor{UserID: "admin-1", IsAdmin: true}

	p := f.createPrediction(t, ctx, "race")

	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	var wg sync.WaitGroup
	for _, userID := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			// Losing the race to the reveal is the only acceptable failure
			_, err := f.bets.PlaceOrUpdateBet(ctx, service.Actor{UserID: userID}, p.ID, "a", 50)
			if err != nil {
				assert.ErrorIs(t, err, service.ErrBettingClosed)
			}
		}(userID)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.settlement.Reveal(ctx, admin, p.ID, "a")
		assert.NoError(t, err)
	}()
	wg.Wait()

	view, err := f.predictions.Get(ctx, p.ID, "")
	require.NoError(t, err)

	entries, err := f.leaderboard.List(ctx, 0)
	require.NoError(t, err)

	// Every bet that committed before the reveal is settled; none after it exist
	assert.Equal(t, view.TotalBets, len(entries))
	for _, e := range entries {
		assert.Equal(t, int64(1050), e.TotalPoints)
	}
}
