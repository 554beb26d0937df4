package service

import (
	"context"
	"time"

	"predictor/events"
	"predictor/models"
)

// PredictionRepository defines the interface for prediction data access
type PredictionRepository interface {
	// Create inserts a prediction and fills in its ID and timestamps
	Create(ctx context.Context, prediction *models.Prediction) error

	// GetByID retrieves a prediction by its ID
	GetByID(ctx context.Context, id int64) (*models.Prediction, error)

	// GetByIDForShare retrieves a prediction holding a shared row lock until the transaction ends
	GetByIDForShare(ctx context.Context, id int64) (*models.Prediction, error)

	// GetByIDForUpdate retrieves a prediction holding an exclusive row lock until the transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Prediction, error)

	// List returns predictions matching the filter, newest first
	List(ctx context.Context, filter models.PredictionFilter) ([]*models.Prediction, error)

	// Update writes every mutable field of the prediction
	Update(ctx context.Context, prediction *models.Prediction) error

	// SetStatus changes a prediction's lifecycle status
	SetStatus(ctx context.Context, id int64, status models.PredictionStatus) error

	// Delete removes a prediction along with its bets and result
	Delete(ctx context.Context, id int64) error

	// GetExpiredOpen locks and returns open predictions whose deadline is before now
	GetExpiredOpen(ctx context.Context, now time.Time) ([]*models.Prediction, error)
}

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Upsert stores the user's bet on a prediction, reporting whether an earlier bet was replaced
	Upsert(ctx context.Context, bet *models.Bet) (bool, error)

	// Get retrieves a user's bet on a prediction
	Get(ctx context.Context, predictionID int64, userID string) (*models.Bet, error)

	// Delete removes a user's bet, reporting whether one existed
	Delete(ctx context.Context, predictionID int64, userID string) (bool, error)

	// ListByPrediction returns every bet on a prediction ordered by user ID
	ListByPrediction(ctx context.Context, predictionID int64) ([]*models.Bet, error)

	// GetForUser returns the user's bets on the given predictions keyed by prediction ID
	GetForUser(ctx context.Context, userID string, predictionIDs []int64) (map[int64]*models.Bet, error)

	// GetTallies returns per-option bet counts and totals keyed by prediction ID
	GetTallies(ctx context.Context, predictionIDs []int64) (map[int64][]*models.OptionTally, error)

	// ListUserIDs returns every user holding at least one bet
	ListUserIDs(ctx context.Context) ([]string, error)
}

// ResultRepository defines the interface for prediction result data access
type ResultRepository interface {
	// Get retrieves the result of a prediction
	Get(ctx context.Context, predictionID int64) (*models.Result, error)

	// GetByPredictionIDs returns the results of the given predictions keyed by prediction ID
	GetByPredictionIDs(ctx context.Context, predictionIDs []int64) (map[int64]*models.Result, error)

	// Upsert inserts or overwrites a result; the first-reveal time is kept on overwrite
	Upsert(ctx context.Context, result *models.Result) error
}

// UserStatisticsRepository defines the interface for the materialized user statistics
type UserStatisticsRepository interface {
	// Get retrieves a user's statistics row
	Get(ctx context.Context, userID string) (*models.UserStatistics, error)

	// Upsert writes a user's statistics row
	Upsert(ctx context.Context, stats *models.UserStatistics) error

	// ListSettled returns every row with at least one settled bet
	ListSettled(ctx context.Context) ([]*models.UserStatistics, error)

	// ListUserIDs returns every user with a statistics row
	ListUserIDs(ctx context.Context) ([]string, error)

	// LockUser takes a transaction-scoped lock serializing recomputes of one user
	LockUser(ctx context.Context, userID string) error

	// GetSettledHistory returns the user's bets on revealed predictions in settlement order
	GetSettledHistory(ctx context.Context, userID string) ([]*models.SettledBet, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	PredictionRepository() PredictionRepository
	BetRepository() BetRepository
	ResultRepository() ResultRepository
	UserStatisticsRepository() UserStatisticsRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// Actor identifies the caller of a service operation
type Actor struct {
	UserID  string
	IsAdmin bool
}

// CreatePredictionInput carries the fields of a new prediction
type CreatePredictionInput struct {
	Title       string
	Description string
	Options     []models.PredictionOption
	Category    string
	OpensAt     *time.Time
	Deadline    *time.Time
	RevealAt    *time.Time
	PointsPool  int64
}

// PredictionService defines the interface for the prediction registry
type PredictionService interface {
	// Create registers a new open prediction
	Create(ctx context.Context, actor Actor, input CreatePredictionInput) (*models.Prediction, error)

	// Update applies a partial update to a prediction
	Update(ctx context.Context, actor Actor, id int64, patch models.PredictionPatch) (*models.Prediction, error)

	// SetStatus moves a prediction to any lifecycle status
	SetStatus(ctx context.Context, actor Actor, id int64, status string) (*models.Prediction, error)

	// Delete removes a prediction along with its bets and result
	Delete(ctx context.Context, actor Actor, id int64) error

	// Get returns a prediction enriched for the viewer
	Get(ctx context.Context, id int64, viewerID string) (*models.PredictionView, error)

	// List returns predictions matching the filter enriched for the viewer
	List(ctx context.Context, filter models.PredictionFilter, viewerID string) ([]*models.PredictionView, error)

	// CloseExpired closes every open prediction whose deadline has passed
	CloseExpired(ctx context.Context, now time.Time) (int, error)
}

// BetService defines the interface for the bet ledger
type BetService interface {
	// PlaceOrUpdateBet places the caller's bet or replaces their existing one
	PlaceOrUpdateBet(ctx context.Context, actor Actor, predictionID int64, optionID string, points int64) (*models.Bet, error)

	// WithdrawBet removes the caller's bet if present
	WithdrawBet(ctx context.Context, actor Actor, predictionID int64) error

	// GetBet returns a user's bet on a prediction
	GetBet(ctx context.Context, predictionID int64, userID string) (*models.Bet, error)
}

// SettlementService defines the interface for the settlement engine
type SettlementService interface {
	// Reveal records or corrects a prediction's outcome and re-settles every bettor
	Reveal(ctx context.Context, actor Actor, predictionID int64, correctOptionID string) (*models.RevealOutcome, error)

	// RecomputeUser rebuilds one user's statistics from their settled history
	RecomputeUser(ctx context.Context, actor Actor, userID string) (*models.UserStatistics, error)

	// RecomputeAll rebuilds statistics for every known user, returning how many rows changed
	RecomputeAll(ctx context.Context, actor Actor) (int, error)

	// GetUserStatistics returns a user's statistics, or the defaults if never settled
	GetUserStatistics(ctx context.Context, userID string) (*models.UserStatistics, error)
}

// LeaderboardService defines the interface for the leaderboard projection
type LeaderboardService interface {
	// List returns ranked entries for users with settled bets; limit <= 0 returns all
	List(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)
}
