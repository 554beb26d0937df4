package service

import (
	"context"
	"fmt"
	"time"

	"predictor/events"
	"predictor/models"

	log "github.com/sirupsen/logrus"
)

// betService implements the BetService interface
type betService struct {
	uowFactory UnitOfWorkFactory
	clock      Clock
}

// NewBetService creates a new bet service
func NewBetService(uowFactory UnitOfWorkFactory, clock Clock) BetService {
	return &betService{
		uowFactory: uowFactory,
		clock:      clock,
	}
}

// PlaceOrUpdateBet places the caller's bet or replaces their existing one.
// Every check runs before the write, under a shared lock on the prediction
// row that a concurrent status change or reveal has to wait for.
func (s *betService) PlaceOrUpdateBet(ctx context.Context, actor Actor, predictionID int64, optionID string, points int64) (*models.Bet, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	prediction, err := uow.PredictionRepository().GetByIDForShare(ctx, predictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	if prediction == nil {
		return nil, ErrPredictionNotFound
	}

	now := s.clock.now()
	if err := checkBettingWindow(prediction, now); err != nil {
		return nil, err
	}

	if !prediction.HasOption(optionID) {
		return nil, ValidationError("option %q is not one of the prediction's options", optionID)
	}
	if points <= 0 {
		return nil, ValidationError("points must be positive")
	}

	// The balance check is advisory: open bets are not reserved against it
	stats, err := uow.UserStatisticsRepository().Get(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user statistics: %w", err)
	}
	balance := models.DefaultBalance
	if stats != nil {
		balance = stats.TotalPoints
	}
	if points > balance {
		return nil, ErrInsufficientPoints
	}

	bet := &models.Bet{
		PredictionID: predictionID,
		UserID:       actor.UserID,
		OptionID:     optionID,
		Points:       points,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	replaced, err := uow.BetRepository().Upsert(ctx, bet)
	if err != nil {
		return nil, fmt.Errorf("failed to store bet: %w", err)
	}

	uow.EventBus().Publish(events.BetPlacedEvent{
		PredictionID: predictionID,
		UserID:       actor.UserID,
		OptionID:     optionID,
		Points:       points,
		Replaced:     replaced,
	})

	if err := resettleIfRevealed(ctx, uow, predictionID, actor.UserID, now); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"predictionID": predictionID,
		"userID":       actor.UserID,
		"optionID":     optionID,
		"points":       points,
		"replaced":     replaced,
	}).Info("Bet placed")

	return bet, nil
}

// WithdrawBet removes the caller's bet while the prediction is open. Withdrawing
// a bet that does not exist succeeds.
func (s *betService) WithdrawBet(ctx context.Context, actor Actor, predictionID int64) error {
	if err := requireUser(actor); err != nil {
		return err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	prediction, err := uow.PredictionRepository().GetByIDForShare(ctx, predictionID)
	if err != nil {
		return fmt.Errorf("failed to get prediction: %w", err)
	}
	if prediction == nil {
		return ErrPredictionNotFound
	}
	if !prediction.IsOpen() {
		return ErrBettingClosed
	}

	deleted, err := uow.BetRepository().Delete(ctx, predictionID, actor.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete bet: %w", err)
	}
	if deleted {
		uow.EventBus().Publish(events.BetWithdrawnEvent{
			PredictionID: predictionID,
			UserID:       actor.UserID,
		})
		if err := resettleIfRevealed(ctx, uow, predictionID, actor.UserID, s.clock.now()); err != nil {
			return err
		}
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if deleted {
		log.WithFields(log.Fields{
			"predictionID": predictionID,
			"userID":       actor.UserID,
		}).Info("Bet withdrawn")
	}

	return nil
}

// GetBet returns a user's bet, flagged when its option has been removed
func (s *betService) GetBet(ctx context.Context, predictionID int64, userID string) (*models.Bet, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	prediction, err := uow.PredictionRepository().GetByID(ctx, predictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	if prediction == nil {
		return nil, ErrPredictionNotFound
	}

	bet, err := uow.BetRepository().Get(ctx, predictionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, ErrBetNotFound
	}
	bet.Orphaned = !prediction.HasOption(bet.OptionID)

	return bet, nil
}

// resettleIfRevealed replays the user's statistics when the prediction was
// revealed before being reopened, since its result still counts as settled
func resettleIfRevealed(ctx context.Context, uow UnitOfWork, predictionID int64, userID string, now time.Time) error {
	result, err := uow.ResultRepository().Get(ctx, predictionID)
	if err != nil {
		return fmt.Errorf("failed to get prediction result: %w", err)
	}
	if result == nil {
		return nil
	}

	recomputed, err := recomputeUsers(ctx, uow, []string{userID}, now)
	if err != nil {
		return err
	}
	if len(recomputed.Changed) > 0 {
		uow.EventBus().Publish(events.StatisticsRecomputedEvent{
			UserIDs: recomputed.Changed,
			Reason:  "bet_changed",
		})
	}
	return nil
}

// checkBettingWindow rejects bets on predictions that are not accepting them
func checkBettingWindow(prediction *models.Prediction, now time.Time) error {
	if !prediction.IsOpen() {
		return ErrBettingClosed
	}
	if prediction.BettingNotYetOpen(now) {
		return ErrBettingNotYetOpen
	}
	if prediction.DeadlinePassed(now) {
		return ErrDeadlinePassed
	}
	return nil
}
