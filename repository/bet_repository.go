package repository

import (
	"context"
	"errors"
	"fmt"

	"predictor/database"
	"predictor/models"
	"predictor/service"

	"github.com/jackc/pgx/v5"
)

// BetRepository implements bet data access
type BetRepository struct {
	q queryable
}

// NewBetRepository creates a new bet repository
func NewBetRepository(db *database.DB) *BetRepository {
	return &BetRepository{q: db.Pool}
}

// newBetRepositoryWithTx creates a new bet repository with a transaction
func newBetRepositoryWithTx(tx queryable) service.BetRepository {
	return &BetRepository{q: tx}
}

// Upsert stores the user's bet. The (prediction, user) primary key keeps a
// single row per user; a replaced bet keeps its original created_at.
func (r *BetRepository) Upsert(ctx context.Context, bet *models.Bet) (bool, error) {
	query := `
		INSERT INTO bets (prediction_id, user_id, option_id, points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (prediction_id, user_id) DO UPDATE
		SET option_id = EXCLUDED.option_id,
		    points = EXCLUDED.points,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at, (xmax <> 0) AS replaced
	`

	var replaced bool
	err := r.q.QueryRow(ctx, query,
		bet.PredictionID,
		bet.UserID,
		bet.OptionID,
		bet.Points,
		bet.UpdatedAt,
	).Scan(&bet.CreatedAt, &bet.UpdatedAt, &replaced)
	if err != nil {
		return false, fmt.Errorf("failed to upsert bet: %w", err)
	}

	return replaced, nil
}

// Get retrieves a user's bet on a prediction
func (r *BetRepository) Get(ctx context.Context, predictionID int64, userID string) (*models.Bet, error) {
	query := `
		SELECT prediction_id, user_id, option_id, points, created_at, updated_at
		FROM bets
		WHERE prediction_id = $1 AND user_id = $2
	`

	var bet models.Bet
	err := r.q.QueryRow(ctx, query, predictionID, userID).Scan(
		&bet.PredictionID,
		&bet.UserID,
		&bet.OptionID,
		&bet.Points,
		&bet.CreatedAt,
		&bet.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}

	return &bet, nil
}

// Delete removes a user's bet, reporting whether one existed
func (r *BetRepository) Delete(ctx context.Context, predictionID int64, userID string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM bets WHERE prediction_id = $1 AND user_id = $2`, predictionID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete bet: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByPrediction returns every bet on a prediction ordered by user ID
func (r *BetRepository) ListByPrediction(ctx context.Context, predictionID int64) ([]*models.Bet, error) {
	query := `
		SELECT prediction_id, user_id, option_id, points, created_at, updated_at
		FROM bets
		WHERE prediction_id = $1
		ORDER BY user_id
	`

	return r.queryBets(ctx, query, predictionID)
}

// GetForUser returns the user's bets on the given predictions keyed by prediction ID
func (r *BetRepository) GetForUser(ctx context.Context, userID string, predictionIDs []int64) (map[int64]*models.Bet, error) {
	query := `
		SELECT prediction_id, user_id, option_id, points, created_at, updated_at
		FROM bets
		WHERE user_id = $1 AND prediction_id = ANY($2)
	`

	bets, err := r.queryBets(ctx, query, userID, predictionIDs)
	if err != nil {
		return nil, err
	}

	byPrediction := make(map[int64]*models.Bet, len(bets))
	for _, bet := range bets {
		byPrediction[bet.PredictionID] = bet
	}
	return byPrediction, nil
}

// GetTallies returns per-option bet counts and point totals keyed by prediction ID
func (r *BetRepository) GetTallies(ctx context.Context, predictionIDs []int64) (map[int64][]*models.OptionTally, error) {
	query := `
		SELECT prediction_id, option_id, COUNT(*), COALESCE(SUM(points), 0)::BIGINT
		FROM bets
		WHERE prediction_id = ANY($1)
		GROUP BY prediction_id, option_id
		ORDER BY prediction_id, option_id
	`

	rows, err := r.q.Query(ctx, query, predictionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query bet tallies: %w", err)
	}
	defer rows.Close()

	tallies := make(map[int64][]*models.OptionTally)
	for rows.Next() {
		var predictionID int64
		var tally models.OptionTally
		if err := rows.Scan(&predictionID, &tally.OptionID, &tally.BetCount, &tally.TotalPoints); err != nil {
			return nil, fmt.Errorf("failed to scan bet tally: %w", err)
		}
		tallies[predictionID] = append(tallies[predictionID], &tally)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bet tallies: %w", err)
	}

	return tallies, nil
}

// ListUserIDs returns every user holding at least one bet
func (r *BetRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, r.q, `SELECT DISTINCT user_id FROM bets ORDER BY user_id`)
}

func (r *BetRepository) queryBets(ctx context.Context, query string, args ...interface{}) ([]*models.Bet, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bets: %w", err)
	}
	defer rows.Close()

	bets := []*models.Bet{}
	for rows.Next() {
		var bet models.Bet
		err := rows.Scan(
			&bet.PredictionID,
			&bet.UserID,
			&bet.OptionID,
			&bet.Points,
			&bet.CreatedAt,
			&bet.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, &bet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bets: %w", err)
	}

	return bets, nil
}

func queryStrings(ctx context.Context, q queryable, query string, args ...interface{}) ([]string, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return values, nil
}
