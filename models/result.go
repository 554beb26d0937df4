package models

import "time"

// Result represents the revealed outcome of a prediction
type Result struct {
	PredictionID    int64     `db:"prediction_id" json:"predictionId"`
	CorrectOptionID string    `db:"correct_option_id" json:"correctOptionId"`
	RevealedBy      string    `db:"revealed_by" json:"revealedBy"`
	RevealedAt      time.Time `db:"revealed_at" json:"revealedAt"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"` // first reveal, never overwritten
}

// RevealOutcome represents the outcome of a reveal or correction
type RevealOutcome struct {
	Prediction       *Prediction
	Result           *Result
	Correction       bool
	PreviousOptionID string
	Statistics       []*UserStatistics
	Orphaned         []*Bet
}
