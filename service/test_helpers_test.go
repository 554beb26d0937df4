package service

import (
	"testing"
	"time"

	"predictor/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return testNow
}

var (
	adminActor = Actor{UserID: "admin-1", IsAdmin: true}
	userActor  = Actor{UserID: "user-u"}
)

// testMocks bundles every mock a service needs
type testMocks struct {
	Factory        *MockUnitOfWorkFactory
	UoW            *MockUnitOfWork
	PredictionRepo *MockPredictionRepository
	BetRepo        *MockBetRepository
	ResultRepo     *MockResultRepository
	StatsRepo      *MockUserStatisticsRepository
	Events         *MockEventPublisher
}

func newTestMocks() *testMocks {
	m := &testMocks{
		Factory:        new(MockUnitOfWorkFactory),
		UoW:            new(MockUnitOfWork),
		PredictionRepo: new(MockPredictionRepository),
		BetRepo:        new(MockBetRepository),
		ResultRepo:     new(MockResultRepository),
		StatsRepo:      new(MockUserStatisticsRepository),
		Events:         new(MockEventPublisher),
	}
	m.UoW.SetRepositories(m.PredictionRepo, m.BetRepo, m.ResultRepo, m.StatsRepo, m.Events)
	m.Factory.On("Create").Return(m.UoW)
	return m
}

// setupBasicTransactionMocks expects a transaction that may or may not commit
func setupBasicTransactionMocks(mockUoW *MockUnitOfWork) {
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Commit").Return(nil).Maybe()
	mockUoW.On("Rollback").Return(nil)
}

func assertAllMockExpectations(t *testing.T, mocks ...interface{}) {
	for _, m := range mocks {
		if mockObj, ok := m.(interface{ AssertExpectations(mock.TestingT) bool }); ok {
			mockObj.AssertExpectations(t)
		}
	}
}

func (m *testMocks) assertAll(t *testing.T) {
	assertAllMockExpectations(t, m.UoW, m.PredictionRepo, m.BetRepo, m.ResultRepo, m.StatsRepo)
}

func (m *testMocks) assertCommitted(t *testing.T) {
	m.UoW.AssertCalled(t, "Commit")
}

func (m *testMocks) assertNotCommitted(t *testing.T) {
	m.UoW.AssertNotCalled(t, "Commit")
	assert.Empty(t, m.Events.Events())
}

func createTestPrediction(id int64, status models.PredictionStatus, optionIDs ...string) *models.Prediction {
	if len(optionIDs) == 0 {
		optionIDs = []string{"a", "b"}
	}
	options := make([]models.PredictionOption, len(optionIDs))
	for i, optID := range optionIDs {
		options[i] = models.PredictionOption{ID: optID, Text: "Option " + optID}
	}
	return &models.Prediction{
		ID:        id,
		Title:     "Will it rain?",
		Options:   options,
		Status:    status,
		CreatorID: "admin-1",
		CreatedAt: testNow.Add(-24 * time.Hour),
		UpdatedAt: testNow.Add(-24 * time.Hour),
	}
}

func createTestBet(predictionID int64, userID, optionID string, points int64) *models.Bet {
	return &models.Bet{
		PredictionID: predictionID,
		UserID:       userID,
		OptionID:     optionID,
		Points:       points,
		CreatedAt:    testNow.Add(-time.Hour),
		UpdatedAt:    testNow.Add(-time.Hour),
	}
}

func createSettledBet(bet *models.Bet, prediction *models.Prediction, correctOptionID string, revealedAt time.Time) *models.SettledBet {
	return &models.SettledBet{
		Bet:             bet,
		PredictionID:    prediction.ID,
		Options:         prediction.Options,
		CorrectOptionID: correctOptionID,
		FirstRevealedAt: revealedAt,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func stringPtr(s string) *string {
	return &s
}
