package service

import (
	"context"
	"fmt"
	"sort"

	"predictor/models"
)

// leaderboardService implements the LeaderboardService interface
type leaderboardService struct {
	uowFactory UnitOfWorkFactory
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(uowFactory UnitOfWorkFactory) LeaderboardService {
	return &leaderboardService{
		uowFactory: uowFactory,
	}
}

// List returns ranked entries for users with settled bets
func (s *leaderboardService) List(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stats, err := uow.UserStatisticsRepository().ListSettled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list user statistics: %w", err)
	}

	return ProjectLeaderboard(stats, limit), nil
}

// ProjectLeaderboard ranks users by balance, then accuracy, then correct
// count, then user ID. Users without settled bets are left out.
func ProjectLeaderboard(stats []*models.UserStatistics, limit int) []*models.LeaderboardEntry {
	entries := make([]*models.LeaderboardEntry, 0, len(stats))
	for _, st := range stats {
		if st.TotalCount == 0 {
			continue
		}
		entries = append(entries, &models.LeaderboardEntry{
			UserID:        st.UserID,
			TotalPoints:   st.TotalPoints,
			PointsWon:     st.PointsWon,
			PointsLost:    st.PointsLost,
			CorrectCount:  st.CorrectCount,
			TotalCount:    st.TotalCount,
			Accuracy:      st.Accuracy(),
			CurrentStreak: st.CurrentStreak,
			LongestStreak: st.LongestStreak,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.Accuracy != b.Accuracy {
			return a.Accuracy > b.Accuracy
		}
		if a.CorrectCount != b.CorrectCount {
			return a.CorrectCount > b.CorrectCount
		}
		return a.UserID < b.UserID
	})

	// Add rank
	for i := range entries {
		entries[i].Rank = i + 1
	}

	// Apply limit
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries
}
