package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"predictor/database"
	"predictor/models"
	"predictor/service"

	"github.com/jackc/pgx/v5"
)

const userStatisticsColumns = `
	user_id, total_points, points_won, points_lost, correct_count,
	total_count, current_streak, longest_streak, updated_at`

// UserStatisticsRepository implements access to the materialized user statistics
type UserStatisticsRepository struct {
	q queryable
}

// NewUserStatisticsRepository creates a new user statistics repository
func NewUserStatisticsRepository(db *database.DB) *UserStatisticsRepository {
	return &UserStatisticsRepository{q: db.Pool}
}

// newUserStatisticsRepositoryWithTx creates a new user statistics repository with a transaction
func newUserStatisticsRepositoryWithTx(tx queryable) service.UserStatisticsRepository {
	return &UserStatisticsRepository{q: tx}
}

// Get retrieves a user's statistics row
func (r *UserStatisticsRepository) Get(ctx context.Context, userID string) (*models.UserStatistics, error) {
	query := `SELECT ` + userStatisticsColumns + ` FROM user_statistics WHERE user_id = $1`

	stats, err := scanUserStatistics(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics for user %s: %w", userID, err)
	}

	return stats, nil
}

// Upsert writes a user's statistics row
func (r *UserStatisticsRepository) Upsert(ctx context.Context, stats *models.UserStatistics) error {
	query := `
		INSERT INTO user_statistics (` + userStatisticsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE
		SET total_points = EXCLUDED.total_points,
		    points_won = EXCLUDED.points_won,
		    points_lost = EXCLUDED.points_lost,
		    correct_count = EXCLUDED.correct_count,
		    total_count = EXCLUDED.total_count,
		    current_streak = EXCLUDED.current_streak,
		    longest_streak = EXCLUDED.longest_streak,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.Exec(ctx, query,
		stats.UserID,
		stats.TotalPoints,
		stats.PointsWon,
		stats.PointsLost,
		stats.CorrectCount,
		stats.TotalCount,
		stats.CurrentStreak,
		stats.LongestStreak,
		stats.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert statistics for user %s: %w", stats.UserID, err)
	}

	return nil
}

// ListSettled returns every row with at least one settled bet
func (r *UserStatisticsRepository) ListSettled(ctx context.Context) ([]*models.UserStatistics, error) {
	query := `SELECT ` + userStatisticsColumns + `
		FROM user_statistics
		WHERE total_count > 0
		ORDER BY total_points DESC, user_id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query user statistics: %w", err)
	}
	defer rows.Close()

	all := []*models.UserStatistics{}
	for rows.Next() {
		stats, err := scanUserStatistics(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user statistics: %w", err)
		}
		all = append(all, stats)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user statistics: %w", err)
	}

	return all, nil
}

// ListUserIDs returns every user with a statistics row
func (r *UserStatisticsRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, r.q, `SELECT user_id FROM user_statistics ORDER BY user_id`)
}

// LockUser takes a transaction-scoped advisory lock keyed on the user. It is
// released on commit or rollback.
func (r *UserStatisticsRepository) LockUser(ctx context.Context, userID string) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('user_statistics:' || $1::text))`, userID); err != nil {
		return fmt.Errorf("failed to lock statistics for user %s: %w", userID, err)
	}
	return nil
}

// GetSettledHistory returns the user's bets on predictions that have a result,
// ordered by first reveal time and then prediction ID
func (r *UserStatisticsRepository) GetSettledHistory(ctx context.Context, userID string) ([]*models.SettledBet, error) {
	query := `
		SELECT b.prediction_id, b.user_id, b.option_id, b.points, b.created_at, b.updated_at,
		       p.options, r.correct_option_id, r.created_at
		FROM bets b
		JOIN prediction_results r ON r.prediction_id = b.prediction_id
		JOIN predictions p ON p.id = b.prediction_id
		WHERE b.user_id = $1
		ORDER BY r.created_at, b.prediction_id
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query settled history: %w", err)
	}
	defer rows.Close()

	history := []*models.SettledBet{}
	for rows.Next() {
		var bet models.Bet
		var options []byte
		settled := &models.SettledBet{Bet: &bet}
		err := rows.Scan(
			&bet.PredictionID,
			&bet.UserID,
			&bet.OptionID,
			&bet.Points,
			&bet.CreatedAt,
			&bet.UpdatedAt,
			&options,
			&settled.CorrectOptionID,
			&settled.FirstRevealedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settled bet: %w", err)
		}
		if err := json.Unmarshal(options, &settled.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options of prediction %d: %w", bet.PredictionID, err)
		}
		settled.PredictionID = bet.PredictionID
		history = append(history, settled)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settled history: %w", err)
	}

	return history, nil
}

func scanUserStatistics(row pgx.Row) (*models.UserStatistics, error) {
	var stats models.UserStatistics
	err := row.Scan(
		&stats.UserID,
		&stats.TotalPoints,
		&stats.PointsWon,
		&stats.PointsLost,
		&stats.CorrectCount,
		&stats.TotalCount,
		&stats.CurrentStreak,
		&stats.LongestStreak,
		&stats.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
