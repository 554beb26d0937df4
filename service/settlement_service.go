package service

import (
	"context"
	"fmt"

	"predictor/events"
	"predictor/models"

	log "github.com/sirupsen/logrus"
)

// settlementService implements the SettlementService interface
type settlementService struct {
	uowFactory UnitOfWorkFactory
	clock      Clock
}

// NewSettlementService creates a new settlement service
func NewSettlementService(uowFactory UnitOfWorkFactory, clock Clock) SettlementService {
	return &settlementService{
		uowFactory: uowFactory,
		clock:      clock,
	}
}

// Reveal records the correct option of a prediction, or corrects an earlier
// reveal, and rebuilds the statistics of every user who bet on it. The result,
// the status change and every statistics row commit together.
func (s *settlementService) Reveal(ctx context.Context, actor Actor, predictionID int64, correctOptionID string) (*models.RevealOutcome, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Exclusive lock: one reveal per prediction at a time, and no bet writes while settling
	prediction, err := uow.PredictionRepository().GetByIDForUpdate(ctx, predictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	if prediction == nil {
		return nil, ErrPredictionNotFound
	}
	if !prediction.HasOption(correctOptionID) {
		return nil, ValidationError("option %q is not one of the prediction's options", correctOptionID)
	}

	previous, err := uow.ResultRepository().Get(ctx, predictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction result: %w", err)
	}

	now := s.clock.now()
	result := &models.Result{
		PredictionID:    predictionID,
		CorrectOptionID: correctOptionID,
		RevealedBy:      actor.UserID,
		RevealedAt:      now,
		CreatedAt:       now,
	}
	if err := uow.ResultRepository().Upsert(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to store prediction result: %w", err)
	}

	if prediction.Status != models.PredictionStatusRevealed {
		if err := uow.PredictionRepository().SetStatus(ctx, predictionID, models.PredictionStatusRevealed); err != nil {
			return nil, fmt.Errorf("failed to set prediction status: %w", err)
		}
		prediction.Status = models.PredictionStatusRevealed
		prediction.UpdatedAt = now
	}

	bets, err := uow.BetRepository().ListByPrediction(ctx, predictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}

	recomputed, err := recomputeUsers(ctx, uow, betUserIDs(bets), now)
	if err != nil {
		return nil, err
	}

	outcome := &models.RevealOutcome{
		Prediction: prediction,
		Result:     result,
		Correction: previous != nil,
		Statistics: recomputed.Statistics,
		Orphaned:   recomputed.Orphaned,
	}
	if previous != nil {
		outcome.PreviousOptionID = previous.CorrectOptionID
	}

	uow.EventBus().Publish(events.PredictionRevealedEvent{
		PredictionID:     predictionID,
		Title:            prediction.Title,
		CorrectOptionID:  correctOptionID,
		CorrectOption:    optionText(prediction, correctOptionID),
		PreviousOptionID: outcome.PreviousOptionID,
		Correction:       outcome.Correction,
		RevealedBy:       actor.UserID,
		SettledUsers:     len(recomputed.Statistics),
		OrphanedBets:     len(recomputed.Orphaned),
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	fields := log.Fields{
		"predictionID":    predictionID,
		"correctOptionID": correctOptionID,
		"correction":      outcome.Correction,
		"settledUsers":    len(recomputed.Statistics),
		"changedUsers":    len(recomputed.Changed),
		"orphanedBets":    len(recomputed.Orphaned),
	}
	if outcome.Correction {
		fields["previousOptionID"] = outcome.PreviousOptionID
	}
	log.WithFields(fields).Info("Prediction revealed")

	return outcome, nil
}

// RecomputeUser rebuilds one user's statistics from their settled history
func (s *settlementService) RecomputeUser(ctx context.Context, actor Actor, userID string) (*models.UserStatistics, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ValidationError("user id is required")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	recomputed, err := recomputeUsers(ctx, uow, []string{userID}, s.clock.now())
	if err != nil {
		return nil, err
	}

	if len(recomputed.Changed) > 0 {
		uow.EventBus().Publish(events.StatisticsRecomputedEvent{
			UserIDs: recomputed.Changed,
			Reason:  "manual",
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return recomputed.Statistics[0], nil
}

// RecomputeAll rebuilds statistics for every user who has a bet or a
// statistics row. Rows left over from deleted predictions are reset.
func (s *settlementService) RecomputeAll(ctx context.Context, actor Actor) (int, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bettors, err := uow.BetRepository().ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list bettors: %w", err)
	}
	settled, err := uow.UserStatisticsRepository().ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users with statistics: %w", err)
	}

	recomputed, err := recomputeUsers(ctx, uow, append(bettors, settled...), s.clock.now())
	if err != nil {
		return 0, err
	}

	if len(recomputed.Changed) > 0 {
		uow.EventBus().Publish(events.StatisticsRecomputedEvent{
			UserIDs: recomputed.Changed,
			Reason:  "manual",
		})
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"users":   len(recomputed.Statistics),
		"changed": len(recomputed.Changed),
		"actor":   actor.UserID,
	}).Info("Recomputed all user statistics")

	return len(recomputed.Changed), nil
}

// GetUserStatistics returns a user's statistics, or the defaults if never settled
func (s *settlementService) GetUserStatistics(ctx context.Context, userID string) (*models.UserStatistics, error) {
	if userID == "" {
		return nil, ValidationError("user id is required")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stats, err := uow.UserStatisticsRepository().Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user statistics: %w", err)
	}
	if stats == nil {
		return models.NewUserStatistics(userID), nil
	}

	return stats, nil
}

func optionText(prediction *models.Prediction, optionID string) string {
	for _, opt := range prediction.Options {
		if opt.ID == optionID {
			return opt.Text
		}
	}
	return ""
}
