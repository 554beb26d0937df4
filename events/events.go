package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypePredictionCreated       EventType = "prediction_created"
	EventTypePredictionUpdated       EventType = "prediction_updated"
	EventTypePredictionDeleted       EventType = "prediction_deleted"
	EventTypePredictionStatusChanged EventType = "prediction_status_changed"
	EventTypeBetPlaced               EventType = "bet_placed"
	EventTypeBetWithdrawn            EventType = "bet_withdrawn"
	EventTypePredictionRevealed      EventType = "prediction_revealed"
	EventTypeStatisticsRecomputed    EventType = "statistics_recomputed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// PredictionCreatedEvent represents a newly created prediction
type PredictionCreatedEvent struct {
	PredictionID int64  `json:"predictionId"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	CreatorID    string `json:"creatorId"`
}

func (e PredictionCreatedEvent) Type() EventType {
	return EventTypePredictionCreated
}

// PredictionUpdatedEvent represents a partial update of a prediction
type PredictionUpdatedEvent struct {
	PredictionID   int64    `json:"predictionId"`
	OptionsChanged bool     `json:"optionsChanged"`
	OrphanedUsers  []string `json:"orphanedUsers,omitempty"`
}

func (e PredictionUpdatedEvent) Type() EventType {
	return EventTypePredictionUpdated
}

// PredictionDeletedEvent represents a deleted prediction and its cascaded rows
type PredictionDeletedEvent struct {
	PredictionID  int64    `json:"predictionId"`
	AffectedUsers []string `json:"affectedUsers,omitempty"`
}

func (e PredictionDeletedEvent) Type() EventType {
	return EventTypePredictionDeleted
}

// PredictionStatusChangedEvent represents a prediction lifecycle transition
type PredictionStatusChangedEvent struct {
	PredictionID int64  `json:"predictionId"`
	OldStatus    string `json:"oldStatus"`
	NewStatus    string `json:"newStatus"`
	Automatic    bool   `json:"automatic"`
}

func (e PredictionStatusChangedEvent) Type() EventType {
	return EventTypePredictionStatusChanged
}

// BetPlacedEvent represents a bet that was placed or replaced
type BetPlacedEvent struct {
	PredictionID int64  `json:"predictionId"`
	UserID       string `json:"userId"`
	OptionID     string `json:"optionId"`
	Points       int64  `json:"points"`
	Replaced     bool   `json:"replaced"`
}

func (e BetPlacedEvent) Type() EventType {
	return EventTypeBetPlaced
}

// BetWithdrawnEvent represents a bet removed by its owner
type BetWithdrawnEvent struct {
	PredictionID int64  `json:"predictionId"`
	UserID       string `json:"userId"`
}

func (e BetWithdrawnEvent) Type() EventType {
	return EventTypeBetWithdrawn
}

// PredictionRevealedEvent represents a reveal or a correction of a prediction result
type PredictionRevealedEvent struct {
	PredictionID     int64  `json:"predictionId"`
	Title            string `json:"title"`
	CorrectOptionID  string `json:"correctOptionId"`
	CorrectOption    string `json:"correctOption"`
	PreviousOptionID string `json:"previousOptionId,omitempty"`
	Correction       bool   `json:"correction"`
	RevealedBy       string `json:"revealedBy"`
	SettledUsers     int    `json:"settledUsers"`
	OrphanedBets     int    `json:"orphanedBets"`
}

func (e PredictionRevealedEvent) Type() EventType {
	return EventTypePredictionRevealed
}

// StatisticsRecomputedEvent represents a full replay of one or more users' statistics
type StatisticsRecomputedEvent struct {
	UserIDs []string `json:"userIds"`
	Reason  string   `json:"reason"`
}

func (e StatisticsRecomputedEvent) Type() EventType {
	return EventTypeStatisticsRecomputed
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes() {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// AllEventTypes lists every event type the service emits
func AllEventTypes() []EventType {
	return []EventType{
		EventTypePredictionCreated,
		EventTypePredictionUpdated,
		EventTypePredictionDeleted,
		EventTypePredictionStatusChanged,
		EventTypeBetPlaced,
		EventTypeBetWithdrawn,
		EventTypePredictionRevealed,
		EventTypeStatisticsRecomputed,
	}
}

// A transactional event bus for holding pending events coupled to the Unit of Work.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Pending returns the events queued since the last flush or discard
func (b *TransactionalBus) Pending() []Event {
	return b.pending
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Events outlive the request; detach them from its context
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
