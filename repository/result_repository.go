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

// ResultRepository implements prediction result data access
type ResultRepository struct {
	q queryable
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *database.DB) *ResultRepository {
	return &ResultRepository{q: db.Pool}
}

// newResultRepositoryWithTx creates a new result repository with a transaction
func newResultRepositoryWithTx(tx queryable) service.ResultRepository {
	return &ResultRepository{q: tx}
}

// Get retrieves the result of a prediction
func (r *ResultRepository) Get(ctx context.Context, predictionID int64) (*models.Result, error) {
	query := `
		SELECT prediction_id, correct_option_id, revealed_by, revealed_at, created_at
		FROM prediction_results
		WHERE prediction_id = $1
	`

	var result models.Result
	err := r.q.QueryRow(ctx, query, predictionID).Scan(
		&result.PredictionID,
		&result.CorrectOptionID,
		&result.RevealedBy,
		&result.RevealedAt,
		&result.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result of prediction %d: %w", predictionID, err)
	}

	return &result, nil
}

// GetByPredictionIDs returns the results of the given predictions keyed by prediction ID
func (r *ResultRepository) GetByPredictionIDs(ctx context.Context, predictionIDs []int64) (map[int64]*models.Result, error) {
	query := `
		SELECT prediction_id, correct_option_id, revealed_by, revealed_at, created_at
		FROM prediction_results
		WHERE prediction_id = ANY($1)
	`

	rows, err := r.q.Query(ctx, query, predictionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := make(map[int64]*models.Result)
	for rows.Next() {
		var result models.Result
		err := rows.Scan(
			&result.PredictionID,
			&result.CorrectOptionID,
			&result.RevealedBy,
			&result.RevealedAt,
			&result.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results[result.PredictionID] = &result
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

// Upsert inserts or overwrites a result. created_at records the first reveal
// and is never overwritten; it orders settlement replays.
func (r *ResultRepository) Upsert(ctx context.Context, result *models.Result) error {
	query := `
		INSERT INTO prediction_results (prediction_id, correct_option_id, revealed_by, revealed_at, created_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (prediction_id) DO UPDATE
		SET correct_option_id = EXCLUDED.correct_option_id,
		    revealed_by = EXCLUDED.revealed_by,
		    revealed_at = EXCLUDED.revealed_at
		RETURNING revealed_at, created_at
	`

	err := r.q.QueryRow(ctx, query,
		result.PredictionID,
		result.CorrectOptionID,
		result.RevealedBy,
		result.RevealedAt,
	).Scan(&result.RevealedAt, &result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert result of prediction %d: %w", result.PredictionID, err)
	}

	return nil
}
