package models

import (
	"time"
)

// PredictionStatus represents the lifecycle state of a prediction
type PredictionStatus string

const (
	PredictionStatusOpen     PredictionStatus = "open"
	PredictionStatusClosed   PredictionStatus = "closed"
	PredictionStatusRevealed PredictionStatus = "revealed"
)

// Valid reports whether s is one of the known statuses
func (s PredictionStatus) Valid() bool {
	switch s {
	case PredictionStatusOpen, PredictionStatusClosed, PredictionStatusRevealed:
		return true
	}
	return false
}

// PredictionOption is one selectable outcome of a prediction
type PredictionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Prediction represents a wagerable proposition
type Prediction struct {
	ID          int64              `db:"id" json:"id"`
	Title       string             `db:"title" json:"title"`
	Description string             `db:"description" json:"description"`
	Options     []PredictionOption `db:"options" json:"options"`
	Category    string             `db:"category" json:"category"`
	Status      PredictionStatus   `db:"status" json:"status"`
	OpensAt     *time.Time         `db:"opens_at" json:"opensAt,omitempty"`
	Deadline    *time.Time         `db:"deadline" json:"deadline,omitempty"`
	RevealAt    *time.Time         `db:"reveal_at" json:"revealAt,omitempty"`
	PointsPool  int64              `db:"points_pool" json:"pointsPool"`
	CreatorID   string             `db:"creator_id" json:"creatorId"`
	CreatedAt   time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updatedAt"`
}

// IsOpen checks if the prediction is in the open state
func (p *Prediction) IsOpen() bool {
	return p.Status == PredictionStatusOpen
}

// HasOption checks if optionID is one of the prediction's current options
func (p *Prediction) HasOption(optionID string) bool {
	for _, opt := range p.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// BettingNotYetOpen checks if now is before the betting-open time, when one is set
func (p *Prediction) BettingNotYetOpen(now time.Time) bool {
	return p.OpensAt != nil && now.Before(*p.OpensAt)
}

// DeadlinePassed checks if now is after the betting deadline, when one is set
func (p *Prediction) DeadlinePassed(now time.Time) bool {
	return p.Deadline != nil && now.After(*p.Deadline)
}

// PredictionPatch carries the fields of a partial update; nil fields are left untouched
type PredictionPatch struct {
	Title       *string
	Description *string
	Options     []PredictionOption
	Category    *string
	OpensAt     *time.Time
	Deadline    *time.Time
	RevealAt    *time.Time
	PointsPool  *int64

	// Clear flags remove an optional time window bound
	ClearOpensAt  bool
	ClearDeadline bool
	ClearRevealAt bool
}

// PredictionFilter narrows a prediction listing
type PredictionFilter struct {
	Status   *PredictionStatus
	Category string
}

// OptionTally aggregates the bets placed on one option
type OptionTally struct {
	OptionID    string `json:"optionId"`
	BetCount    int    `json:"betCount"`
	TotalPoints int64  `json:"totalPoints"`
}

// PredictionView is a prediction enriched for a particular viewer
type PredictionView struct {
	Prediction *Prediction    `json:"prediction"`
	UserBet    *Bet           `json:"userBet,omitempty"`
	Result     *Result        `json:"result,omitempty"`
	Tallies    []*OptionTally `json:"tallies"`
	TotalBets  int            `json:"totalBets"`
}
