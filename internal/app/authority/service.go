// Package authority is the development roster authority: the system of
// record the console talks to over HTTP.
package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nats-io/nuid"

	"github.com/eventdesk/roster/internal/contracts"
	"github.com/eventdesk/roster/internal/messaging"
	"github.com/eventdesk/roster/internal/platform/metrics"
	"github.com/eventdesk/roster/internal/roster"
)

const maxNameLength = 120

var (
	ErrNameRequired     = errors.New("name is required")
	ErrNameTooLong      = fmt.Errorf("name exceeds %d characters", maxNameLength)
	ErrNothingToUpdate  = errors.New("nothing to update")
	ErrNotFound         = errors.New("participant not found")
	ErrBadgeUnavailable = errors.New("badge could not be generated")
)

type PublishFunc func(subject string, payload []byte) error

// Renderer turns a participant into a printable document.
type Renderer interface {
	Render(p roster.Participant) ([]byte, error)
}

type Service struct {
	Repo     Repository
	Renderer Renderer
	Publish  PublishFunc
	Now      func() time.Time
	NewID    func() string
	Logger   *slog.Logger
}

func NewService(repo Repository, renderer Renderer, publish PublishFunc) *Service {
	return &Service{
		Repo:     repo,
		Renderer: renderer,
		Publish:  publish,
		Now:      func() time.Time { return time.Now().UTC() },
		NewID:    nuid.Next,
		Logger:   slog.Default(),
	}
}

// Actor identifies the caller, taken from the bearer token subject.
type Actor struct {
	Subject string
}

// NormalizeName trims and collapses inner whitespace.
func NormalizeName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return "", ErrNameRequired
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

func (s *Service) Create(ctx context.Context, actor Actor, draft roster.Draft) (roster.Participant, error) {
	name, err := NormalizeName(draft.Name)
	if err != nil {
		return roster.Participant{}, err
	}
	p := roster.Participant{ID: s.NewID(), Name: name}
	if err := s.Repo.Insert(ctx, p); err != nil {
		return roster.Participant{}, err
	}
	s.emit(actor, contracts.EventParticipantCreated, p)
	return p, nil
}

func (s *Service) List(ctx context.Context) (roster.Listing, error) {
	entries, err := s.Repo.List(ctx)
	if err != nil {
		return roster.Listing{}, err
	}
	stats := roster.Summarize(entries)
	return roster.Listing{
		Participants: entries,
		CheckedIn:    stats.CheckedIn,
		NotCheckedIn: stats.NotCheckedIn,
	}, nil
}

// Update applies patch. Checking in stamps checkedInAt and draws the next
// queue number; checking out clears both.
func (s *Service) Update(ctx context.Context, actor Actor, id string, patch roster.Patch) (roster.Participant, error) {
	if patch.Empty() {
		return roster.Participant{}, ErrNothingToUpdate
	}
	var name string
	if patch.Name != nil {
		normalized, err := NormalizeName(*patch.Name)
		if err != nil {
			return roster.Participant{}, err
		}
		name = normalized
	}

	var events []string
	updated, err := s.Repo.Update(ctx, id, func(p *roster.Participant, next NextNumber) error {
		events = events[:0]
		if patch.Name != nil && name != p.Name {
			p.Name = name
			events = append(events, contracts.EventParticipantRenamed)
		}
		if patch.CheckedIn == nil || *patch.CheckedIn == p.CheckedIn {
			return nil
		}
		if *patch.CheckedIn {
			n, err := next()
			if err != nil {
				return fmt.Errorf("draw queue number: %w", err)
			}
			now := s.Now()
			p.CheckedIn = true
			p.CheckedInAt = &now
			p.ListNumber = &n
			events = append(events, contracts.EventParticipantCheckedIn)
			return nil
		}
		p.CheckedIn = false
		p.CheckedInAt = nil
		p.ListNumber = nil
		events = append(events, contracts.EventParticipantCheckedOut)
		return nil
	})
	if err != nil {
		return roster.Participant{}, err
	}
	for _, eventType := range events {
		s.emit(actor, eventType, updated)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	p, err := s.Repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.emit(actor, contracts.EventParticipantDeleted, p)
	return nil
}

// Badge renders the participant's badge and the filename to offer it under.
func (s *Service) Badge(ctx context.Context, id string) ([]byte, string, error) {
	p, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.Renderer.Render(p)
	if err != nil {
		s.logger().Error("render badge", "participant_id", id, "err", err)
		return nil, "", ErrBadgeUnavailable
	}
	return data, BadgeFilename(p), nil
}

// BadgeFilename is "<name>.pdf" with path separators removed.
func BadgeFilename(p roster.Participant) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"':
			return '_'
		}
		return r
	}, p.Name)
	if strings.TrimSpace(name) == "" {
		name = p.ID
	}
	return name + ".pdf"
}

// emit publishes after the mutation is committed. A failed publish is
// logged; the mutation stands.
func (s *Service) emit(actor Actor, eventType string, p roster.Participant) {
	if s.Publish == nil {
		return
	}
	evt := contracts.ParticipantEvent{
		EventID:       s.NewID(),
		EventType:     eventType,
		ParticipantID: p.ID,
		Name:          p.Name,
		CheckedIn:     p.CheckedIn,
		ListNumber:    p.ListNumber,
		ActorSubject:  actor.Subject,
		OccurredAt:    s.Now(),
	}
	payload, err := json.Marshal(evt)
	if err == nil {
		err = s.Publish(messaging.EventSubject(eventType), payload)
	}
	if err != nil {
		metrics.AuthorityEvents.WithLabelValues(eventType, "error").Inc()
		s.logger().Warn("publish participant event", "event_type", eventType, "participant_id", p.ID, "err", err)
		return
	}
	metrics.AuthorityEvents.WithLabelValues(eventType, "ok").Inc()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
