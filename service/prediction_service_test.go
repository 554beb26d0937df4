package service

import (
	"context"
	"testing"
	"time"

	"predictor/events"
	"predictor/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPredictionService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates open prediction with generated option ids", func(t *testing.T) {
		mocks := newTestMocks()
		setupBasicTransactionMocks(mocks.UoW)
		service := NewPredictionService(mocks.Factory, fixedClock)

		mocks.PredictionRepo.On("Create", ctx, mock.AnythingOfType("*models.Prediction")).Return(nil).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Prediction).ID = 7
		})

		prediction, err := service.Create(ctx, adminActor, CreatePredictionInput{
			Title:    "  Who wins the final?  ",
			Options:  []models.PredictionOption{{ID: "home", Text: "Home"}, {Text: "Away"}},
			Category: "sports",
			Deadline: timePtr(testNow.Add(48 * time.Hour)),
		})

		require.NoError(t, err)
		assert.Equal(t, int64(7), prediction.ID)
		assert.Equal(t, "Who wins the final?", prediction.Title)
		assert.Equal(t, models.PredictionStatusOpen, prediction.Status)
		assert.Equal(t, "admin-1", prediction.CreatorID)
		assert.Equal(t, "home", prediction.Options[0].ID)
		assert.NotEmpty(t, prediction.Options[1].ID)
		mocks.assertCommitted(t)

		published := mocks.Events.Events()
		require.Len(t, published, 1)
		assert.Equal(t, int64(7), published[0].(events.PredictionCreatedEvent).PredictionID)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name  string
			input CreatePredictionInput
		}{
			{"missing title", CreatePredictionInput{Options: []models.PredictionOption{{Text: "A"}, {Text: "B"}}}},
			{"one option", CreatePredictionInput{Title: "T", Options: []models.PredictionOption{{Text: "A"}}}},
			{"empty option text", CreatePredictionInput{Title: "T", Options: []models.PredictionOption{{Text: "A"}, {Text: " "}}}},
			{"duplicate ids", CreatePredictionInput{Title: "T", Options: []models.PredictionOption{{ID: "x", Text: "A"}, {ID: "x", Text: "B"}}}},
			{"window inverted", CreatePredictionInput{
				Title:    "T",
				Options:  []models.PredictionOption{{Text: "A"}, {Text: "B"}},
				OpensAt:  timePtr(testNow.Add(time.Hour)),
				Deadline: timePtr(testNow),
			}},
			{"negative pool", CreatePredictionInput{Title: "T", Options: []models.PredictionOption{{Text: "A"}, {Text: "B"}}, PointsPool: -1}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mocks := newTestMocks()
				service := NewPredictionService(mocks.Factory, fixedClock)

				_, err := service.Create(ctx, adminActor, tt.input)

				assert.Equal(t, KindValidation, KindOf(err))
				mocks.Factory.AssertNotCalled(t, "Create")
			})
		}
	})

	t.Run("requires admin", func(t *testing.T) {
		mocks := newTestMocks()
		service := NewPredictionService(mocks.Factory, fixedClock)

		_, err := service.Create(ctx, userActor, CreatePredictionInput{Title: "T"})

		assert.ErrorIs(t, err, ErrAdminRequired)
	})
}

func TestPredictionService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("title only leaves bets alone", func(t *testing.T) {
		mocks := newTestMocks()
		setupBasicTransactionMocks(mocks.UoW)
		service := NewPredictionService(mocks.Factory, fixedClock)

		mocks.PredictionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(createTestPrediction(1, models.PredictionStatusOpen), nil)
		mocks.PredictionRepo.On("Update", ctx, mock.MatchedBy(func(p *models.Prediction) bool {
			return p.Title == "Renamed" && p.UpdatedAt.Equal(testNow)
		})).Return(nil)

		updated, err := service.Update(ctx, adminActor, 1, models.PredictionPatch{Title: stringPtr("Renamed")})

		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Title)
		mocks.BetRepo.AssertNotCalled(t, "ListByPrediction", mock.Anything, mock.Anything)
		mocks.assertCommitted(t)
	})

	t.Run("option change reports orphaned bets", func(t *testing.T) {
		mocks := newTestMocks()
		setupBasicTransactionMocks(mocks.UoW)
		service := NewPredictionService(mocks.Factory, fixedClock)

		mocks.PredictionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(createTestPrediction(1, models.PredictionStatusOpen, "a", "b"), nil)
		mocks.ResultRepo.On("Get", ctx, int64(1)).Return(nil, nil)
		mocks.PredictionRepo.On("Update", ctx, mock.Anything).Return(nil)
		mocks.BetRepo.On("ListByPrediction", ctx, int64(1)).Return([]*models.Bet{
			createTestBet(1, "user-u", "a", 10),
			createTestBet(1, "user-v", "b", 10),
		}, nil)

		_, err := service.Update(ctx, adminActor, 1, models.PredictionPatch{
			Options: []models.PredictionOption{{ID: "a", Text: "A"}, {ID: "c", Text: "C"}},
		})

		require.NoError(t, err)
		published := mocks.Events.Events()
		require.Len(t, published, 1)
		updated := published[0].(events.PredictionUpdatedEvent)
		assert.True(t, updated.OptionsChanged)
		assert.Equal(t, []string{"user-v"}, updated.OrphanedUsers)
		mocks.StatsRepo.AssertNotCalled(t, "LockUser", mock.Anything, mock.Anything)
	})

	t.Run("option change on revealed prediction recomputes bettors", func(t *testing.T) {
		mocks := newTestMocks()
		setupBasicTransactionMocks(mocks.UoW)
		service := NewPredictionService(mocks.Factory, fixedClock)

		prediction := createTestPrediction(1, models.PredictionStatusRevealed, "a", "b")
		mocks.PredictionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(prediction, nil)
		mocks.ResultRepo.On("Get", ctx, int64(1)).Return(&models.Result{PredictionID: 1, CorrectOptionID: "a"}, nil)
		mocks.PredictionRepo.On("Update", ctx, mock.Anything).Return(nil)
		orphan := createTestBet(1, "user-v", "b", 50)
		mocks.BetRepo.On("ListByPrediction", ctx, int64(1)).Return([]*models.Bet{orphan}, nil)

		updatedPrediction := createTestPrediction(1, models.PredictionStatusRevealed, "a", "c")
		mocks.StatsRepo.On("LockUser", ctx, "user-v").Return(nil)
		mocks.StatsRepo.On("GetSettledHistory", ctx, "user-v").Return([]*models.SettledBet{
			createSettledBet(orphan, updatedPrediction, "a", testNow),
		}, nil)
		mocks.StatsRepo.On("Get", ctx, "user-v").Return(&models.UserStatistics{UserID: "user-v", TotalPoints: 950, PointsLost: 50, TotalCount: 1}, nil)
		mocks.StatsRepo.On("Upsert", ctx, mock.MatchedBy(func(s *models.UserStatistics) bool {
			return s.UserID == "user-v" && s.TotalPoints == 1000 && s.TotalCount == 0
		})).Return(nil)

		_, err := service.Update(ctx, adminActor, 1, models.PredictionPatch{
			Options: []models.PredictionOption{{ID: "a", Text: "A"}, {ID: "c", Text: "C"}},
		})

		require.NoError(t, err)
		mocks.assertAll(t)
		mocks.assertCommitted(t)
	})

	t.Run("cannot remove revealed correct option", func(t *testing.T) {
		mocks := newTestMocks()
		setupBasicTransactionMocks(mocks.UoW)
		service := NewPredictionService(mocks.Factory, fixedClock)

		mocks.PredictionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(createTestPrediction(1, models.PredictionStatusRevealed, "a", "b"), nil)
		mocks.ResultRepo.On("Get", ctx, int64(1)).Return(&models.Result{PredictionID: 1, CorrectOptionID: "a"}, nil)

		_, err := service.Update(ctx, adminActor, 1, models.PredictionPatch{
			Options: []models.PredictionOption{{ID: "b", Text: "B"}, {ID: "c", Text: "C"}},
		})

		assert.Equal(t, KindConflict, KindOf(err))
		mocks.PredictionRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		mocks.assertNotCommitted(t)
	})

	t.Run("clearing the deadline", func(t *testing.T) {
		mocks := newTestMocks()
		setupBasicTransactionMocks(mocks.UoW)
		service := NewPredictionService(mocks.Factory, fixedClock)

		prediction := createTestPrediction(1, models.PredictionStatusOpen)
		prediction.Deadline = timePtr(testNow.Add(time.Hour))
		mocks.PredictionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(prediction, nil)
		mocks.PredictionRepo.On("Update", ctx, mock.MatchedBy(func(p *models.Prediction) bool {
			return p.Deadline == nil
		})).Return(nil)

		updated, err := service.Update(ctx, adminActor, 1, models.PredictionPatch{ClearDeadline: true})

		require.NoError(t, err)
		assert.Nil(t, updated.Deadline)
	})
}

func TestPredictionService_SetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("reopen revealed prediction", func(t *testing.T) {
		mocks := newTestMocks()
		setupBasicTransactionMocks(mocks.UoW)
		service := NewPredictionService(mocks.Factory, fixedClock)

		mocks.PredictionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(createTestPrediction(1, models.PredictionStatusRevealed), nil)
		mocks.PredictionRepo.On("SetStatus", ctx, int64(1), models.PredictionStatusOpen).Return(nil)

		prediction, err := service.SetStatus(ctx, adminActor, 1, "open")

		require.NoError(t, err)
		assert.Equal(t, models.PredictionStatusOpen, prediction.Status)
		assert.Equal(t, []events.Event{events.PredictionStatusChangedEvent{
			PredictionID: 1, OldStatus: "revealed", NewStatus: "open",
		}}, mocks.Events.Events())
	})

	t.Run("unknown status", func(t *testing.T) {
		mocks := newTestMocks()
		service := NewPredictionService(mocks.Factory, fixedClock)

		_, err := service.SetStatus(ctx, adminActor, 1, "archived")

		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("same status is a quiet success", func(t *testing.T) {
		mocks := newTestMocks()
		setupBasicTransactionMocks(mocks.UoW)
		service := NewPredictionService(mocks.Factory, fixedClock)

		mocks.PredictionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(createTestPrediction(1, models.PredictionStatusClosed), nil)

		_, err := service.SetStatus(ctx, adminActor, 1, "closed")

		require.NoError(t, err)
		assert.Empty(t, mocks.Events.Events())
		mocks.PredictionRepo.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPredictionService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("revealed prediction recomputes former bettors", func(t *testing.T) {
		mocks := newTestMocks()
		setupBasicTransactionMocks(mocks.UoW)
		service := NewPredictionService(mocks.Factory, fixedClock)

		mocks.PredictionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(createTestPrediction(1, models.PredictionStatusRevealed), nil)
		mocks.ResultRepo.On("Get", ctx, int64(1)).Return(&models.Result{PredictionID: 1, CorrectOptionID: "a"}, nil)
		mocks.BetRepo.On("ListByPrediction", ctx, int64(1)).Return([]*models.Bet{createTestBet(1, "user-u", "a", 100)}, nil)
		mocks.PredictionRepo.On("Delete", ctx, int64(1)).Return(nil)
		mocks.StatsRepo.On("LockUser", ctx, "user-u").Return(nil)
		mocks.StatsRepo.On("GetSettledHistory", ctx, "user-u").Return([]*models.SettledBet{}, nil)
		mocks.StatsRepo.On("Get", ctx, "user-u").Return(&models.UserStatistics{UserID: "user-u", TotalPoints: 1100, TotalCount: 1, CorrectCount: 1}, nil)
		mocks.StatsRepo.On("Upsert", ctx, mock.MatchedBy(func(s *models.UserStatistics) bool {
			return s.TotalPoints == 1000 && s.TotalCount == 0
		})).Return(nil)

		err := service.Delete(ctx, adminActor, 1)

		require.NoError(t, err)
		mocks.assertAll(t)
		published := mocks.Events.Events()
		require.Len(t, published, 2)
		assert.Equal(t, events.PredictionDeletedEvent{PredictionID: 1, AffectedUsers: []string{"user-u"}}, published[1])
	})

	t.Run("open prediction skips recompute", func(t *testing.T) {
		mocks := newTestMocks()
		setupBasicTransactionMocks(mocks.UoW)
		service := NewPredictionService(mocks.Factory, fixedClock)

		mocks.PredictionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(createTestPrediction(1, models.PredictionStatusOpen), nil)
		mocks.ResultRepo.On("Get", ctx, int64(1)).Return(nil, nil)
		mocks.BetRepo.On("ListByPrediction", ctx, int64(1)).Return([]*models.Bet{createTestBet(1, "user-u", "a", 100)}, nil)
		mocks.PredictionRepo.On("Delete", ctx, int64(1)).Return(nil)

		err := service.Delete(ctx, adminActor, 1)

		require.NoError(t, err)
		mocks.StatsRepo.AssertNotCalled(t, "LockUser", mock.Anything, mock.Anything)
	})

	t.Run("missing prediction", func(t *testing.T) {
		mocks := newTestMocks()
		setupBasicTransactionMocks(mocks.UoW)
		service := NewPredictionService(mocks.Factory, fixedClock)

		mocks.PredictionRepo.On("GetByIDForUpdate", ctx, int64(1)).Return(nil, nil)

		err := service.Delete(ctx, adminActor, 1)

		assert.ErrorIs(t, err, ErrPredictionNotFound)
	})
}

func TestPredictionService_Get(t *testing.T) {
	ctx := context.Background()
	mocks := newTestMocks()
	setupBasicTransactionMocks(mocks.UoW)
	service := NewPredictionService(mocks.Factory, fixedClock)

	prediction := createTestPrediction(1, models.PredictionStatusOpen, "a", "b")
	mocks.PredictionRepo.On("GetByID", ctx, int64(1)).Return(prediction, nil)
	mocks.BetRepo.On("GetTallies", ctx, []int64{1}).Return(map[int64][]*models.OptionTally{
		1: {
			{OptionID: "b", BetCount: 2, TotalPoints: 300},
			{OptionID: "gone", BetCount: 1, TotalPoints: 50},
		},
	}, nil)
	mocks.ResultRepo.On("GetByPredictionIDs", ctx, []int64{1}).Return(map[int64]*models.Result{}, nil)
	mocks.BetRepo.On("GetForUser", ctx, "user-u", []int64{1}).Return(map[int64]*models.Bet{
		1: createTestBet(1, "user-u", "b", 100),
	}, nil)

	view, err := service.Get(ctx, 1, "user-u")

	require.NoError(t, err)
	require.Len(t, view.Tallies, 2)
	assert.Equal(t, "a", view.Tallies[0].OptionID)
	assert.Zero(t, view.Tallies[0].BetCount)
	assert.Equal(t, int64(300), view.Tallies[1].TotalPoints)
	assert.Equal(t, 3, view.TotalBets)
	require.NotNil(t, view.UserBet)
	assert.False(t, view.UserBet.Orphaned)
	assert.Nil(t, view.Result)
	mocks.UoW.AssertNotCalled(t, "Commit")
}

func TestPredictionService_List_AnonymousViewer(t *testing.T) {
	ctx := context.Background()
	mocks := newTestMocks()
	setupBasicTransactionMocks(mocks.UoW)
	service := NewPredictionService(mocks.Factory, fixedClock)

	status := models.PredictionStatusOpen
	filter := models.PredictionFilter{Status: &status, Category: "sports"}
	mocks.PredictionRepo.On("List", ctx, filter).Return([]*models.Prediction{createTestPrediction(3, status)}, nil)
	mocks.BetRepo.On("GetTallies", ctx, []int64{3}).Return(map[int64][]*models.OptionTally{}, nil)
	mocks.ResultRepo.On("GetByPredictionIDs", ctx, []int64{3}).Return(map[int64]*models.Result{}, nil)

	views, err := service.List(ctx, filter, "")

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Nil(t, views[0].UserBet)
	mocks.BetRepo.AssertNotCalled(t, "GetForUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestPredictionService_CloseExpired(t *testing.T) {
	ctx := context.Background()
	mocks := newTestMocks()
	setupBasicTransactionMocks(mocks.UoW)
	service := NewPredictionService(mocks.Factory, fixedClock)

	mocks.PredictionRepo.On("GetExpiredOpen", ctx, testNow).Return([]*models.Prediction{
		createTestPrediction(1, models.PredictionStatusOpen),
		createTestPrediction(2, models.PredictionStatusOpen),
	}, nil)
	mocks.PredictionRepo.On("SetStatus", ctx, mock.Anything, models.PredictionStatusClosed).Return(nil)

	closed, err := service.CloseExpired(ctx, testNow)

	require.NoError(t, err)
	assert.Equal(t, 2, closed)
	mocks.PredictionRepo.AssertNumberOfCalls(t, "SetStatus", 2)
	for _, e := range mocks.Events.Events() {
		assert.True(t, e.(events.PredictionStatusChangedEvent).Automatic)
	}
	mocks.assertCommitted(t)
}
