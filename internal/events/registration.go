// Package events defines the registration event payloads published through the outbox.
package events

import "time"

// Event type identifiers recorded in the outbox and sent as Kafka headers.
const (
	TypeParticipantAdded   = "registration.added"
	TypeParticipantRemoved = "registration.removed"
)

// ParticipantAdded is emitted after a student joins an activity roster.
type ParticipantAdded struct {
	EventID          string    `json:"event_id"`
	ActivityName     string    `json:"activity_name"`
	Email            string    `json:"email"`
	ParticipantCount int       `json:"participant_count"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// ParticipantRemoved is emitted after a student leaves an activity roster.
type ParticipantRemoved struct {
	EventID          string    `json:"event_id"`
	ActivityName     string    `json:"activity_name"`
	Email            string    `json:"email"`
	ParticipantCount int       `json:"participant_count"`
	OccurredAt       time.Time `json:"occurred_at"`
}
