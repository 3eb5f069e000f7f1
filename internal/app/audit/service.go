// Package audit keeps a durable trail of participant events published by
// the authority.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/eventdesk/roster/internal/contracts"
	"github.com/eventdesk/roster/internal/platform/metrics"
)

var ErrInvalidEventPayload = errors.New("invalid event payload")
var ErrUnsupportedEventType = errors.New("unsupported event type")

const defaultRecentLimit = 50

// Entry is one recorded event with its stream position.
type Entry struct {
	contracts.ParticipantEvent
	StreamSeq uint64 `json:"stream_seq"`
}

type Repository interface {
	InsertEvent(ctx context.Context, event contracts.ParticipantEvent, streamSeq uint64) error
	Recent(ctx context.Context, participantID string, limit int) ([]Entry, error)
}

type Service struct {
	Repository Repository
}

func NewService(repository Repository) *Service {
	return &Service{Repository: repository}
}

// Handle records one event payload. Redelivered events are stored once.
func (s *Service) Handle(ctx context.Context, payload []byte, streamSeq uint64) error {
	var event contracts.ParticipantEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		metrics.AuditEvents.WithLabelValues("unknown", "invalid").Inc()
		return ErrInvalidEventPayload
	}
	if strings.TrimSpace(event.EventID) == "" || strings.TrimSpace(event.ParticipantID) == "" {
		metrics.AuditEvents.WithLabelValues("unknown", "invalid").Inc()
		return ErrInvalidEventPayload
	}
	if !knownEventType(event.EventType) {
		metrics.AuditEvents.WithLabelValues("unknown", "unsupported").Inc()
		return ErrUnsupportedEventType
	}
	if err := s.Repository.InsertEvent(ctx, event, streamSeq); err != nil {
		metrics.AuditEvents.WithLabelValues(event.EventType, "error").Inc()
		return err
	}
	metrics.AuditEvents.WithLabelValues(event.EventType, "ok").Inc()
	return nil
}

// Recent returns the newest entries first. An empty participantID covers
// every participant.
func (s *Service) Recent(ctx context.Context, participantID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultRecentLimit
	}
	return s.Repository.Recent(ctx, strings.TrimSpace(participantID), limit)
}

func knownEventType(t string) bool {
	switch t {
	case contracts.EventParticipantCreated,
		contracts.EventParticipantRenamed,
		contracts.EventParticipantCheckedIn,
		contracts.EventParticipantCheckedOut,
		contracts.EventParticipantDeleted:
		return true
	}
	return false
}
