package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"predictor/events"
	"predictor/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// predictionService implements the PredictionService interface
type predictionService struct {
	uowFactory UnitOfWorkFactory
	clock      Clock
}

// NewPredictionService creates a new prediction service
func NewPredictionService(uowFactory UnitOfWorkFactory, clock Clock) PredictionService {
	return &predictionService{
		uowFactory: uowFactory,
		clock:      clock,
	}
}

// Create registers a new open prediction
func (s *predictionService) Create(ctx context.Context, actor Actor, input CreatePredictionInput) (*models.Prediction, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	prediction := &models.Prediction{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Options:     normalizeOptions(input.Options),
		Category:    strings.TrimSpace(input.Category),
		Status:      models.PredictionStatusOpen,
		OpensAt:     input.OpensAt,
		Deadline:    input.Deadline,
		RevealAt:    input.RevealAt,
		PointsPool:  input.PointsPool,
		CreatorID:   actor.UserID,
	}
	if err := validatePrediction(prediction); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.PredictionRepository().Create(ctx, prediction); err != nil {
		return nil, fmt.Errorf("failed to create prediction: %w", err)
	}

	uow.EventBus().Publish(events.PredictionCreatedEvent{
		PredictionID: prediction.ID,
		Title:        prediction.Title,
		Category:     prediction.Category,
		CreatorID:    prediction.CreatorID,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"predictionID": prediction.ID,
		"creatorID":    prediction.CreatorID,
		"options":      len(prediction.Options),
	}).Info("Prediction created")

	return prediction, nil
}

// Update applies a partial update. Replacing the options leaves bets on removed
// options in place; the settlement replay skips and reports them.
func (s *predictionService) Update(ctx context.Context, actor Actor, id int64, patch models.PredictionPatch) (*models.Prediction, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	current, err := uow.PredictionRepository().GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	if current == nil {
		return nil, ErrPredictionNotFound
	}

	updated := applyPatch(current, patch)
	if err := validatePrediction(updated); err != nil {
		return nil, err
	}
	optionsChanged := patch.Options != nil && !sameOptions(current.Options, updated.Options)

	var result *models.Result
	if optionsChanged {
		result, err = uow.ResultRepository().Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get prediction result: %w", err)
		}
		if result != nil && !updated.HasOption(result.CorrectOptionID) {
			return nil, ConflictError("cannot remove the revealed correct option %q", result.CorrectOptionID)
		}
	}

	updated.UpdatedAt = s.clock.now()
	if err := uow.PredictionRepository().Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update prediction: %w", err)
	}

	var orphanedUsers []string
	if optionsChanged {
		bets, err := uow.BetRepository().ListByPrediction(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list bets: %w", err)
		}
		for _, bet := range bets {
			if !updated.HasOption(bet.OptionID) {
				orphanedUsers = append(orphanedUsers, bet.UserID)
			}
		}

		// Settled outcomes depend on the option set; keep statistics a faithful replay
		if result != nil && len(bets) > 0 {
			recomputed, err := recomputeUsers(ctx, uow, betUserIDs(bets), s.clock.now())
			if err != nil {
				return nil, err
			}
			if len(recomputed.Changed) > 0 {
				uow.EventBus().Publish(events.StatisticsRecomputedEvent{
					UserIDs: recomputed.Changed,
					Reason:  "prediction_updated",
				})
			}
		}
	}

	uow.EventBus().Publish(events.PredictionUpdatedEvent{
		PredictionID:   id,
		OptionsChanged: optionsChanged,
		OrphanedUsers:  orphanedUsers,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if len(orphanedUsers) > 0 {
		log.WithFields(log.Fields{
			"predictionID":  id,
			"orphanedUsers": orphanedUsers,
		}).Warn("Prediction options changed; some bets no longer reference a valid option")
	}

	return updated, nil
}

// SetStatus moves a prediction to any lifecycle status. Transitions are not
// restricted; a closed or revealed prediction can be reopened.
func (s *predictionService) SetStatus(ctx context.Context, actor Actor, id int64, status string) (*models.Prediction, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	newStatus := models.PredictionStatus(strings.ToLower(strings.TrimSpace(status)))
	if !newStatus.Valid() {
		return nil, ValidationError("unknown status %q", status)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	prediction, err := uow.PredictionRepository().GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	if prediction == nil {
		return nil, ErrPredictionNotFound
	}

	oldStatus := prediction.Status
	if oldStatus != newStatus {
		if err := uow.PredictionRepository().SetStatus(ctx, id, newStatus); err != nil {
			return nil, fmt.Errorf("failed to set prediction status: %w", err)
		}
		prediction.Status = newStatus
		prediction.UpdatedAt = s.clock.now()

		uow.EventBus().Publish(events.PredictionStatusChangedEvent{
			PredictionID: id,
			OldStatus:    string(oldStatus),
			NewStatus:    string(newStatus),
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"predictionID": id,
		"oldStatus":    oldStatus,
		"newStatus":    newStatus,
		"actor":        actor.UserID,
	}).Info("Prediction status set")

	return prediction, nil
}

// Delete removes a prediction. Bets and the result go with it, so users who
// were settled on it are recomputed in the same transaction.
func (s *predictionService) Delete(ctx context.Context, actor Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	prediction, err := uow.PredictionRepository().GetByIDForUpdate(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get prediction: %w", err)
	}
	if prediction == nil {
		return ErrPredictionNotFound
	}

	result, err := uow.ResultRepository().Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get prediction result: %w", err)
	}

	bets, err := uow.BetRepository().ListByPrediction(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list bets: %w", err)
	}

	if err := uow.PredictionRepository().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete prediction: %w", err)
	}

	var affected []string
	if result != nil && len(bets) > 0 {
		affected = uniqueSorted(betUserIDs(bets))
		recomputed, err := recomputeUsers(ctx, uow, affected, s.clock.now())
		if err != nil {
			return err
		}
		if len(recomputed.Changed) > 0 {
			uow.EventBus().Publish(events.StatisticsRecomputedEvent{
				UserIDs: recomputed.Changed,
				Reason:  "prediction_deleted",
			})
		}
	}

	uow.EventBus().Publish(events.PredictionDeletedEvent{
		PredictionID:  id,
		AffectedUsers: affected,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"predictionID":  id,
		"bets":          len(bets),
		"wasRevealed":   result != nil,
		"affectedUsers": len(affected),
	}).Info("Prediction deleted")

	return nil
}

// Get returns a prediction enriched for the viewer
func (s *predictionService) Get(ctx context.Context, id int64, viewerID string) (*models.PredictionView, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	prediction, err := uow.PredictionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	if prediction == nil {
		return nil, ErrPredictionNotFound
	}

	views, err := buildViews(ctx, uow, []*models.Prediction{prediction}, viewerID)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// List returns predictions matching the filter enriched for the viewer
func (s *predictionService) List(ctx context.Context, filter models.PredictionFilter, viewerID string) ([]*models.PredictionView, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, ValidationError("unknown status %q", *filter.Status)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	predictions, err := uow.PredictionRepository().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	if len(predictions) == 0 {
		return []*models.PredictionView{}, nil
	}

	return buildViews(ctx, uow, predictions, viewerID)
}

// CloseExpired closes every open prediction whose deadline has passed
func (s *predictionService) CloseExpired(ctx context.Context, now time.Time) (int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	expired, err := uow.PredictionRepository().GetExpiredOpen(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to get expired predictions: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	for _, prediction := range expired {
		if err := uow.PredictionRepository().SetStatus(ctx, prediction.ID, models.PredictionStatusClosed); err != nil {
			return 0, fmt.Errorf("failed to close prediction %d: %w", prediction.ID, err)
		}
		uow.EventBus().Publish(events.PredictionStatusChangedEvent{
			PredictionID: prediction.ID,
			OldStatus:    string(models.PredictionStatusOpen),
			NewStatus:    string(models.PredictionStatusClosed),
			Automatic:    true,
		})
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithField("count", len(expired)).Info("Closed predictions past their deadline")
	return len(expired), nil
}

// buildViews attaches the viewer's bet, the result, and per-option tallies
func buildViews(ctx context.Context, uow UnitOfWork, predictions []*models.Prediction, viewerID string) ([]*models.PredictionView, error) {
	ids := make([]int64, len(predictions))
	for i, p := range predictions {
		ids[i] = p.ID
	}

	tallies, err := uow.BetRepository().GetTallies(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet tallies: %w", err)
	}

	results, err := uow.ResultRepository().GetByPredictionIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}

	userBets := map[int64]*models.Bet{}
	if viewerID != "" {
		userBets, err = uow.BetRepository().GetForUser(ctx, viewerID, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to get viewer bets: %w", err)
		}
	}

	views := make([]*models.PredictionView, 0, len(predictions))
	for _, p := range predictions {
		view := &models.PredictionView{
			Prediction: p,
			Result:     results[p.ID],
		}

		byOption := make(map[string]*models.OptionTally)
		for _, tally := range tallies[p.ID] {
			byOption[tally.OptionID] = tally
			view.TotalBets += tally.BetCount
		}
		view.Tallies = make([]*models.OptionTally, 0, len(p.Options))
		for _, opt := range p.Options {
			tally, ok := byOption[opt.ID]
			if !ok {
				tally = &models.OptionTally{OptionID: opt.ID}
			}
			view.Tallies = append(view.Tallies, tally)
		}

		if bet, ok := userBets[p.ID]; ok {
			bet.Orphaned = !p.HasOption(bet.OptionID)
			view.UserBet = bet
		}

		views = append(views, view)
	}

	return views, nil
}

func normalizeOptions(options []models.PredictionOption) []models.PredictionOption {
	if options == nil {
		return nil
	}
	out := make([]models.PredictionOption, len(options))
	for i, opt := range options {
		out[i] = models.PredictionOption{
			ID:   strings.TrimSpace(opt.ID),
			Text: strings.TrimSpace(opt.Text),
		}
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
	}
	return out
}

func validatePrediction(p *models.Prediction) error {
	if p.Title == "" {
		return ValidationError("title is required")
	}
	if len(p.Options) < 2 {
		return ValidationError("at least two options are required")
	}
	seen := make(map[string]struct{}, len(p.Options))
	for _, opt := range p.Options {
		if opt.Text == "" {
			return ValidationError("option text must not be empty")
		}
		if _, dup := seen[opt.ID]; dup {
			return ValidationError("duplicate option id %q", opt.ID)
		}
		seen[opt.ID] = struct{}{}
	}
	if p.OpensAt != nil && p.Deadline != nil && p.OpensAt.After(*p.Deadline) {
		return ValidationError("opens_at must not be after deadline")
	}
	if p.PointsPool < 0 {
		return ValidationError("points pool must not be negative")
	}
	return nil
}

func applyPatch(current *models.Prediction, patch models.PredictionPatch) *models.Prediction {
	updated := *current
	updated.Options = append([]models.PredictionOption(nil), current.Options...)

	if patch.Title != nil {
		updated.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		updated.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Options != nil {
		updated.Options = normalizeOptions(patch.Options)
	}
	if patch.Category != nil {
		updated.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.PointsPool != nil {
		updated.PointsPool = *patch.PointsPool
	}

	updated.OpensAt = patchTime(updated.OpensAt, patch.OpensAt, patch.ClearOpensAt)
	updated.Deadline = patchTime(updated.Deadline, patch.Deadline, patch.ClearDeadline)
	updated.RevealAt = patchTime(updated.RevealAt, patch.RevealAt, patch.ClearRevealAt)

	return &updated
}

func patchTime(current, replacement *time.Time, unset bool) *time.Time {
	if unset {
		return nil
	}
	if replacement != nil {
		return replacement
	}
	return current
}

func sameOptions(a, b []models.PredictionOption) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
