package testutil

import (
	"time"

	"predictor/models"
)

// CreateTestPrediction creates an open prediction with two options, "yes" and "no"
func CreateTestPrediction(title string) *models.Prediction {
	return &models.Prediction{
		Title:       title,
		Description: "test prediction",
		Options: []models.PredictionOption{
			{ID: "yes", Text: "Yes"},
			{ID: "no", Text: "No"},
		},
		Category:  "general",
		Status:    models.PredictionStatusOpen,
		CreatorID: "admin-1",
	}
}

// CreateTestPredictionWithWindow creates an open prediction with a betting window
func CreateTestPredictionWithWindow(title string, opensAt, deadline time.Time) *models.Prediction {
	p := CreateTestPrediction(title)
	p.OpensAt = &opensAt
	p.Deadline = &deadline
	return p
}

// CreateTestBet creates a bet placed now
func CreateTestBet(predictionID int64, userID, optionID string, points int64) *models.Bet {
	return &models.Bet{
		PredictionID: predictionID,
		UserID:       userID,
		OptionID:     optionID,
		Points:       points,
		UpdatedAt:    time.Now().UTC(),
	}
}

// CreateTestResult creates a result revealed now by admin-1
func CreateTestResult(predictionID int64, correctOptionID string) *models.Result {
	return &models.Result{
		PredictionID:    predictionID,
		CorrectOptionID: correctOptionID,
		RevealedBy:      "admin-1",
		RevealedAt:      time.Now().UTC(),
	}
}
