package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"predictor/models"

	log "github.com/sirupsen/logrus"
)

// ReplayResult is the outcome of replaying one user's settled history
type ReplayResult struct {
	Statistics *models.UserStatistics
	Orphaned   []*models.Bet
}

// ReplayUserHistory rebuilds a user's statistics from scratch by settling each
// bet in order of first reveal, then prediction ID. Bets whose option no longer
// exists on the prediction are skipped and returned as orphaned.
func ReplayUserHistory(userID string, history []*models.SettledBet, now time.Time) *ReplayResult {
	ordered := make([]*models.SettledBet, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].FirstRevealedAt.Equal(ordered[j].FirstRevealedAt) {
			return ordered[i].FirstRevealedAt.Before(ordered[j].FirstRevealedAt)
		}
		return ordered[i].PredictionID < ordered[j].PredictionID
	})

	stats := models.NewUserStatistics(userID)
	stats.UpdatedAt = now
	result := &ReplayResult{Statistics: stats}

	for _, settled := range ordered {
		if settled.IsOrphaned() {
			settled.Bet.Orphaned = true
			result.Orphaned = append(result.Orphaned, settled.Bet)
			continue
		}

		stats.TotalCount++
		points := settled.Bet.Points
		if settled.Won() {
			stats.TotalPoints += points
			stats.PointsWon += points
			stats.CorrectCount++
			stats.CurrentStreak++
			if stats.CurrentStreak > stats.LongestStreak {
				stats.LongestStreak = stats.CurrentStreak
			}
		} else {
			stats.TotalPoints -= points
			stats.PointsLost += points
			stats.CurrentStreak = 0
		}
	}

	return result
}

// recomputeResult collects what a batch recompute wrote
type recomputeResult struct {
	Statistics []*models.UserStatistics
	Orphaned   []*models.Bet
	Changed    []string
}

// recomputeUsers replays and stores the statistics of every given user inside
// the unit of work. Users are locked in ascending order so concurrent batches
// over overlapping users cannot deadlock, and each history is read only after
// its lock is held.
func recomputeUsers(ctx context.Context, uow UnitOfWork, userIDs []string, now time.Time) (*recomputeResult, error) {
	ids := uniqueSorted(userIDs)
	statsRepo := uow.UserStatisticsRepository()
	out := &recomputeResult{Statistics: make([]*models.UserStatistics, 0, len(ids))}

	for _, userID := range ids {
		if err := statsRepo.LockUser(ctx, userID); err != nil {
			return nil, fmt.Errorf("failed to lock statistics for user %s: %w", userID, err)
		}

		history, err := statsRepo.GetSettledHistory(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get settled history for user %s: %w", userID, err)
		}

		replayed := ReplayUserHistory(userID, history, now)
		out.Orphaned = append(out.Orphaned, replayed.Orphaned...)
		out.Statistics = append(out.Statistics, replayed.Statistics)

		existing, err := statsRepo.Get(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get statistics for user %s: %w", userID, err)
		}
		if existing != nil && existing.SameTotals(replayed.Statistics) {
			replayed.Statistics.UpdatedAt = existing.UpdatedAt
			continue
		}

		if err := statsRepo.Upsert(ctx, replayed.Statistics); err != nil {
			return nil, fmt.Errorf("failed to store statistics for user %s: %w", userID, err)
		}
		out.Changed = append(out.Changed, userID)

		log.WithFields(log.Fields{
			"userID":      userID,
			"totalPoints": replayed.Statistics.TotalPoints,
			"settled":     replayed.Statistics.TotalCount,
			"orphaned":    len(replayed.Orphaned),
		}).Debug("Recomputed user statistics")
	}

	return out, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func betUserIDs(bets []*models.Bet) []string {
	ids := make([]string, 0, len(bets))
	for _, bet := range bets {
		ids = append(ids, bet.UserID)
	}
	return ids
}
