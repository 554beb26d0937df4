package api

import (
	"context"
	"time"

	"predictor/models"
	"predictor/service"

	"github.com/stretchr/testify/mock"
)

type mockPredictionService struct {
	mock.Mock
}

func (m *mockPredictionService) Create(ctx context.Context, actor service.Actor, input service.CreatePredictionInput) (*models.Prediction, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prediction), args.Error(1)
}

func (m *mockPredictionService) Update(ctx context.Context, actor service.Actor, id int64, patch models.PredictionPatch) (*models.Prediction, error) {
	args := m.Called(ctx, actor, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prediction), args.Error(1)
}

func (m *mockPredictionService) SetStatus(ctx context.Context, actor service.Actor, id int64, status string) (*models.Prediction, error) {
	args := m.Called(ctx, actor, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prediction), args.Error(1)
}

func (m *mockPredictionService) Delete(ctx context.Context, actor service.Actor, id int64) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

func (m *mockPredictionService) Get(ctx context.Context, id int64, viewerID string) (*models.PredictionView, error) {
	args := m.Called(ctx, id, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PredictionView), args.Error(1)
}

func (m *mockPredictionService) List(ctx context.Context, filter models.PredictionFilter, viewerID string) ([]*models.PredictionView, error) {
	args := m.Called(ctx, filter, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PredictionView), args.Error(1)
}

func (m *mockPredictionService) CloseExpired(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type mockBetService struct {
	mock.Mock
}

func (m *mockBetService) PlaceOrUpdateBet(ctx context.Context, actor service.Actor, predictionID int64, optionID string, points int64) (*models.Bet, error) {
	args := m.Called(ctx, actor, predictionID, optionID, points)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bet), args.Error(1)
}

func (m *mockBetService) WithdrawBet(ctx context.Context, actor service.Actor, predictionID int64) error {
	args := m.Called(ctx, actor, predictionID)
	return args.Error(0)
}

func (m *mockBetService) GetBet(ctx context.Context, predictionID int64, userID string) (*models.Bet, error) {
	args := m.Called(ctx, predictionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bet), args.Error(1)
}

type mockSettlementService struct {
	mock.Mock
}

func (m *mockSettlementService) Reveal(ctx context.Context, actor service.Actor, predictionID int64, correctOptionID string) (*models.RevealOutcome, error) {
	args := m.Called(ctx, actor, predictionID, correctOptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RevealOutcome), args.Error(1)
}

func (m *mockSettlementService) RecomputeUser(ctx context.Context, actor service.Actor, userID string) (*models.UserStatistics, error) {
	args := m.Called(ctx, actor, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserStatistics), args.Error(1)
}

func (m *mockSettlementService) RecomputeAll(ctx context.Context, actor service.Actor) (int, error) {
	args := m.Called(ctx, actor)
	return args.Int(0), args.Error(1)
}

func (m *mockSettlementService) GetUserStatistics(ctx context.Context, userID string) (*models.UserStatistics, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserStatistics), args.Error(1)
}

type mockLeaderboardService struct {
	mock.Mock
}

func (m *mockLeaderboardService) List(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LeaderboardEntry), args.Error(1)
}

type mockHealthChecker struct {
	mock.Mock
}

func (m *mockHealthChecker) Healthy(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
