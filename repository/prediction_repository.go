package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"predictor/database"
	"predictor/models"
	"predictor/service"

	"github.com/jackc/pgx/v5"
)

const predictionColumns = `
	id, title, description, options, category, status,
	opens_at, deadline, reveal_at, points_pool, creator_id,
	created_at, updated_at`

// PredictionRepository implements prediction data access
type PredictionRepository struct {
	q queryable
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(db *database.DB) *PredictionRepository {
	return &PredictionRepository{q: db.Pool}
}

// newPredictionRepositoryWithTx creates a new prediction repository with a transaction
func newPredictionRepositoryWithTx(tx queryable) service.PredictionRepository {
	return &PredictionRepository{q: tx}
}

// Create inserts a prediction and fills in its ID and timestamps
func (r *PredictionRepository) Create(ctx context.Context, prediction *models.Prediction) error {
	options, err := json.Marshal(prediction.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	query := `
		INSERT INTO predictions (
			title, description, options, category, status,
			opens_at, deadline, reveal_at, points_pool, creator_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err = r.q.QueryRow(ctx, query,
		prediction.Title,
		prediction.Description,
		options,
		prediction.Category,
		prediction.Status,
		prediction.OpensAt,
		prediction.Deadline,
		prediction.RevealAt,
		prediction.PointsPool,
		prediction.CreatorID,
	).Scan(&prediction.ID, &prediction.CreatedAt, &prediction.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create prediction: %w", err)
	}

	return nil
}

// GetByID retrieves a prediction by its ID
func (r *PredictionRepository) GetByID(ctx context.Context, id int64) (*models.Prediction, error) {
	return r.getByID(ctx, id, "")
}

// GetByIDForShare retrieves a prediction holding a shared row lock
func (r *PredictionRepository) GetByIDForShare(ctx context.Context, id int64) (*models.Prediction, error) {
	return r.getByID(ctx, id, "FOR SHARE")
}

// GetByIDForUpdate retrieves a prediction holding an exclusive row lock
func (r *PredictionRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Prediction, error) {
	return r.getByID(ctx, id, "FOR UPDATE")
}

func (r *PredictionRepository) getByID(ctx context.Context, id int64, lock string) (*models.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE id = $1 ` + lock

	prediction, err := scanPrediction(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction %d: %w", id, err)
	}

	return prediction, nil
}

// List returns predictions matching the filter, newest first
func (r *PredictionRepository) List(ctx context.Context, filter models.PredictionFilter) ([]*models.Prediction, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}

	query := `SELECT ` + predictionColumns + ` FROM predictions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	return r.queryPredictions(ctx, query, args...)
}

// Update writes every mutable field of the prediction
func (r *PredictionRepository) Update(ctx context.Context, prediction *models.Prediction) error {
	options, err := json.Marshal(prediction.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	query := `
		UPDATE predictions
		SET title = $2, description = $3, options = $4, category = $5,
		    opens_at = $6, deadline = $7, reveal_at = $8, points_pool = $9,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.q.QueryRow(ctx, query,
		prediction.ID,
		prediction.Title,
		prediction.Description,
		options,
		prediction.Category,
		prediction.OpensAt,
		prediction.Deadline,
		prediction.RevealAt,
		prediction.PointsPool,
	).Scan(&prediction.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("prediction %d not found", prediction.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update prediction %d: %w", prediction.ID, err)
	}

	return nil
}

// SetStatus changes a prediction's lifecycle status
func (r *PredictionRepository) SetStatus(ctx context.Context, id int64, status models.PredictionStatus) error {
	query := `
		UPDATE predictions
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to set status of prediction %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("prediction %d not found", id)
	}

	return nil
}

// Delete removes a prediction; bets and result cascade
func (r *PredictionRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM predictions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete prediction %d: %w", id, err)
	}
	return nil
}

// GetExpiredOpen locks and returns open predictions whose deadline is before now.
// Rows locked by another transaction are skipped and picked up on the next sweep.
func (r *PredictionRepository) GetExpiredOpen(ctx context.Context, now time.Time) ([]*models.Prediction, error) {
	query := `SELECT ` + predictionColumns + `
		FROM predictions
		WHERE status = 'open' AND deadline IS NOT NULL AND deadline < $1
		ORDER BY id
		FOR UPDATE SKIP LOCKED`

	return r.queryPredictions(ctx, query, now)
}

func (r *PredictionRepository) queryPredictions(ctx context.Context, query string, args ...interface{}) ([]*models.Prediction, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	predictions := []*models.Prediction{}
	for rows.Next() {
		prediction, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, prediction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictions: %w", err)
	}

	return predictions, nil
}

func scanPrediction(row pgx.Row) (*models.Prediction, error) {
	var p models.Prediction
	var options []byte
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&options,
		&p.Category,
		&p.Status,
		&p.OpensAt,
		&p.Deadline,
		&p.RevealAt,
		&p.PointsPool,
		&p.CreatorID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(options, &p.Options); err != nil {
		return nil, fmt.Errorf("failed to decode options of prediction %d: %w", p.ID, err)
	}

	return &p, nil
}
