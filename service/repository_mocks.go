package service

import (
	"context"
	"sync"
	"time"

	"predictor/events"
	"predictor/models"

	"github.com/stretchr/testify/mock"
)

// MockPredictionRepository is a mock implementation of PredictionRepository
type MockPredictionRepository struct {
	mock.Mock
}

func (m *MockPredictionRepository) Create(ctx context.Context, prediction *models.Prediction) error {
	args := m.Called(ctx, prediction)
	return args.Error(0)
}

func (m *MockPredictionRepository) GetByID(ctx context.Context, id int64) (*models.Prediction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prediction), args.Error(1)
}

func (m *MockPredictionRepository) GetByIDForShare(ctx context.Context, id int64) (*models.Prediction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prediction), args.Error(1)
}

func (m *MockPredictionRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Prediction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prediction), args.Error(1)
}

func (m *MockPredictionRepository) List(ctx context.Context, filter models.PredictionFilter) ([]*models.Prediction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Prediction), args.Error(1)
}

func (m *MockPredictionRepository) Update(ctx context.Context, prediction *models.Prediction) error {
	args := m.Called(ctx, prediction)
	return args.Error(0)
}

func (m *MockPredictionRepository) SetStatus(ctx context.Context, id int64, status models.PredictionStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockPredictionRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPredictionRepository) GetExpiredOpen(ctx context.Context, now time.Time) ([]*models.Prediction, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Prediction), args.Error(1)
}

// MockBetRepository is a mock implementation of BetRepository
type MockBetRepository struct {
	mock.Mock
}

func (m *MockBetRepository) Upsert(ctx context.Context, bet *models.Bet) (bool, error) {
	args := m.Called(ctx, bet)
	return args.Bool(0), args.Error(1)
}

func (m *MockBetRepository) Get(ctx context.Context, predictionID int64, userID string) (*models.Bet, error) {
	args := m.Called(ctx, predictionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bet), args.Error(1)
}

func (m *MockBetRepository) Delete(ctx context.Context, predictionID int64, userID string) (bool, error) {
	args := m.Called(ctx, predictionID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBetRepository) ListByPrediction(ctx context.Context, predictionID int64) ([]*models.Bet, error) {
	args := m.Called(ctx, predictionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

func (m *MockBetRepository) GetForUser(ctx context.Context, userID string, predictionIDs []int64) (map[int64]*models.Bet, error) {
	args := m.Called(ctx, userID, predictionIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]*models.Bet), args.Error(1)
}

func (m *MockBetRepository) GetTallies(ctx context.Context, predictionIDs []int64) (map[int64][]*models.OptionTally, error) {
	args := m.Called(ctx, predictionIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64][]*models.OptionTally), args.Error(1)
}

func (m *MockBetRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockResultRepository is a mock implementation of ResultRepository
type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) Get(ctx context.Context, predictionID int64) (*models.Result, error) {
	args := m.Called(ctx, predictionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Result), args.Error(1)
}

func (m *MockResultRepository) GetByPredictionIDs(ctx context.Context, predictionIDs []int64) (map[int64]*models.Result, error) {
	args := m.Called(ctx, predictionIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]*models.Result), args.Error(1)
}

func (m *MockResultRepository) Upsert(ctx context.Context, result *models.Result) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

// MockUserStatisticsRepository is a mock implementation of UserStatisticsRepository
type MockUserStatisticsRepository struct {
	mock.Mock
}

func (m *MockUserStatisticsRepository) Get(ctx context.Context, userID string) (*models.UserStatistics, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserStatistics), args.Error(1)
}

func (m *MockUserStatisticsRepository) Upsert(ctx context.Context, stats *models.UserStatistics) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

func (m *MockUserStatisticsRepository) ListSettled(ctx context.Context) ([]*models.UserStatistics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserStatistics), args.Error(1)
}

func (m *MockUserStatisticsRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockUserStatisticsRepository) LockUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserStatisticsRepository) GetSettledHistory(ctx context.Context, userID string) ([]*models.SettledBet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SettledBet), args.Error(1)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns every event published so far
func (m *MockEventPublisher) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Event, len(m.events))
	copy(out, m.events)
	return out
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository getters
// return the configured mocks without recording calls.
type MockUnitOfWork struct {
	mock.Mock
	predictionRepo PredictionRepository
	betRepo        BetRepository
	resultRepo     ResultRepository
	statsRepo      UserStatisticsRepository
	eventBus       EventPublisher
}

// SetRepositories configures the repositories the unit of work hands out
func (m *MockUnitOfWork) SetRepositories(predictionRepo PredictionRepository, betRepo BetRepository, resultRepo ResultRepository, statsRepo UserStatisticsRepository, eventBus EventPublisher) {
	m.predictionRepo = predictionRepo
	m.betRepo = betRepo
	m.resultRepo = resultRepo
	m.statsRepo = statsRepo
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) PredictionRepository() PredictionRepository {
	return m.predictionRepo
}

func (m *MockUnitOfWork) BetRepository() BetRepository {
	return m.betRepo
}

func (m *MockUnitOfWork) ResultRepository() ResultRepository {
	return m.resultRepo
}

func (m *MockUnitOfWork) UserStatisticsRepository() UserStatisticsRepository {
	return m.statsRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
