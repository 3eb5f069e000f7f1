package contracts

import "time"

const (
	EventParticipantCreated    = "created"
	EventParticipantRenamed    = "renamed"
	EventParticipantCheckedIn  = "checked_in"
	EventParticipantCheckedOut = "checked_out"
	EventParticipantDeleted    = "deleted"
)

// ParticipantEvent is published by the authority after each committed
// mutation and consumed by consoles for live refresh.
type ParticipantEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name,omitempty"`
	CheckedIn     bool      `json:"checked_in"`
	ListNumber    *int      `json:"list_number,omitempty"`
	ActorSubject  string    `json:"actor_subject,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
