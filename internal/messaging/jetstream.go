package messaging

import (
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	EventsStream = "ROSTER_EVENTS"

	// EventSubjects matches every roster event subject.
	EventSubjects = "roster.event.>"
	eventPrefix   = "roster.event.participant."
)

// EventSubject is the subject a participant event of eventType is
// published on.
func EventSubject(eventType string) string {
	return eventPrefix + eventType
}

// EnsureStreams creates (or validates) the ROSTER_EVENTS stream on
// roster.event.>.
func EnsureStreams(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(EventsStream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return err
		}
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:      EventsStream,
			Subjects:  []string{EventSubjects},
			Retention: nats.LimitsPolicy,
			Storage:   nats.FileStorage,
			Replicas:  1,
			MaxAge:    7 * 24 * time.Hour,
		}); err != nil {
			return err
		}
	}
	return nil
}
