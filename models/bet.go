package models

import "time"

// Bet represents one user's current wager on one prediction
type Bet struct {
	PredictionID int64     `db:"prediction_id" json:"predictionId"`
	UserID       string    `db:"user_id" json:"userId"`
	OptionID     string    `db:"option_id" json:"optionId"`
	Points       int64     `db:"points" json:"points"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`

	// Orphaned is set when OptionID no longer exists on the prediction
	Orphaned bool `db:"-" json:"orphaned,omitempty"`
}

// SettledBet pairs a user's bet with the prediction options and result it settles against
type SettledBet struct {
	Bet             *Bet
	PredictionID    int64
	Options         []PredictionOption
	CorrectOptionID string
	FirstRevealedAt time.Time
}

// IsOrphaned checks if the bet's option was removed from the prediction
func (s *SettledBet) IsOrphaned() bool {
	for _, opt := range s.Options {
		if opt.ID == s.Bet.OptionID {
			return false
		}
	}
	return true
}

// Won checks if the bet picked the correct option
func (s *SettledBet) Won() bool {
	return s.Bet.OptionID == s.CorrectOptionID
}
