package roster

import (
	"context"
	"time"
)

// Participant is the authority's canonical representation of one registered
// individual. CheckedInAt and ListNumber are assigned by the authority on
// check-in and are never set locally.
type Participant struct {
	ID          string     `json:"_id"`
	Name        string     `json:"name"`
	CheckedIn   bool       `json:"checkedIn"`
	CheckedInAt *time.Time `json:"checkedInAt,omitempty"`
	ListNumber  *int       `json:"listNumber,omitempty"`
}

// QueueNumber reports the human-facing queue number. It is only meaningful
// while the participant is checked in.
func (p Participant) QueueNumber() (int, bool) {
	if !p.CheckedIn || p.ListNumber == nil {
		return 0, false
	}
	return *p.ListNumber, true
}

type Draft struct {
	Name string `json:"name"`
}

// Patch carries the fields an admin may change. Nil fields are not sent.
type Patch struct {
	Name      *string `json:"name,omitempty"`
	CheckedIn *bool   `json:"checkedIn,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.CheckedIn == nil
}

// Listing is the full roster as returned by the authority, with the
// aggregate counters it computed alongside.
type Listing struct {
	Participants []Participant `json:"participantsList"`
	CheckedIn    int           `json:"checkedInParticipants"`
	NotCheckedIn int           `json:"notCheckedInParticipants"`
}

// Artifact is an opaque generated document. Disposition is the raw
// Content-Disposition value the filename hint is extracted from.
type Artifact struct {
	Data        []byte
	Disposition string
	ContentType string
}

type Stats struct {
	Total        int `json:"total"`
	CheckedIn    int `json:"checkedIn"`
	NotCheckedIn int `json:"notCheckedIn"`
}

// Summarize counts a collection using the same rule as the status filter:
// anything not explicitly checked in is not checked in.
func Summarize(entries []Participant) Stats {
	stats := Stats{Total: len(entries)}
	for _, p := range entries {
		if p.CheckedIn {
			stats.CheckedIn++
		} else {
			stats.NotCheckedIn++
		}
	}
	return stats
}

// Remote is the request/response boundary to the roster authority.
type Remote interface {
	Create(ctx context.Context, draft Draft) (Participant, error)
	List(ctx context.Context) (Listing, error)
	Update(ctx context.Context, id string, patch Patch) (Participant, error)
	Remove(ctx context.Context, id string) error
	FetchArtifact(ctx context.Context, id string) (Artifact, error)
}
