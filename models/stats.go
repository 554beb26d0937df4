package models

import (
	"math"
	"time"
)

// DefaultBalance is the points balance of a user with no settled history
const DefaultBalance int64 = 1000

// UserStatistics is the per-user aggregate derived by replaying settled bets
type UserStatistics struct {
	UserID        string    `db:"user_id" json:"userId"`
	TotalPoints   int64     `db:"total_points" json:"totalPoints"`
	PointsWon     int64     `db:"points_won" json:"pointsWon"`
	PointsLost    int64     `db:"points_lost" json:"pointsLost"`
	CorrectCount  int       `db:"correct_count" json:"correctCount"`
	TotalCount    int       `db:"total_count" json:"totalCount"`
	CurrentStreak int       `db:"current_streak" json:"currentStreak"`
	LongestStreak int       `db:"longest_streak" json:"longestStreak"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// NewUserStatistics returns the statistics of a user who has never been settled
func NewUserStatistics(userID string) *UserStatistics {
	return &UserStatistics{
		UserID:      userID,
		TotalPoints: DefaultBalance,
	}
}

// Accuracy returns the rounded percentage of correct settled predictions
func (s *UserStatistics) Accuracy() int {
	if s.TotalCount == 0 {
		return 0
	}
	return int(math.Round(float64(s.CorrectCount) / float64(s.TotalCount) * 100))
}

// SameTotals compares every aggregate field, ignoring the update timestamp
func (s *UserStatistics) SameTotals(other *UserStatistics) bool {
	return s.UserID == other.UserID &&
		s.TotalPoints == other.TotalPoints &&
		s.PointsWon == other.PointsWon &&
		s.PointsLost == other.PointsLost &&
		s.CorrectCount == other.CorrectCount &&
		s.TotalCount == other.TotalCount &&
		s.CurrentStreak == other.CurrentStreak &&
		s.LongestStreak == other.LongestStreak
}

// LeaderboardEntry represents a user's ranked standing
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"userId"`
	TotalPoints   int64  `json:"totalPoints"`
	PointsWon     int64  `json:"pointsWon"`
	PointsLost    int64  `json:"pointsLost"`
	CorrectCount  int    `json:"correctCount"`
	TotalCount    int    `json:"totalCount"`
	Accuracy      int    `json:"accuracy"` // Percentage as 0-100
	CurrentStreak int    `json:"currentStreak"`
	LongestStreak int    `json:"longestStreak"`
}
