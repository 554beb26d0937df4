package infrastructure

import (
	"fmt"

	"predictor/events"
)

// DomainEventStream is the JetStream stream every domain event is stored in
const DomainEventStream = "prediction_events"

var subjectsByType = map[events.EventType]string{
	events.EventTypePredictionCreated:       "predictions.created",
	events.EventTypePredictionUpdated:       "predictions.updated",
	events.EventTypePredictionDeleted:       "predictions.deleted",
	events.EventTypePredictionStatusChanged: "predictions.status_changed",
	events.EventTypePredictionRevealed:      "predictions.revealed",
	events.EventTypeBetPlaced:               "bets.placed",
	events.EventTypeBetWithdrawn:            "bets.withdrawn",
	events.EventTypeStatisticsRecomputed:    "statistics.recomputed",
}

// SubjectFor maps a domain event type to its NATS subject
func SubjectFor(eventType events.EventType) string {
	if subject, ok := subjectsByType[eventType]; ok {
		return subject
	}
	return fmt.Sprintf("unknown.%s", eventType)
}

// AllSubjects returns the subject of every known event type
func AllSubjects() []string {
	subjects := make([]string, 0, len(subjectsByType))
	for _, eventType := range events.AllEventTypes() {
		subjects = append(subjects, SubjectFor(eventType))
	}
	return subjects
}
