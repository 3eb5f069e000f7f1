package console

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/eventdesk/roster/internal/roster"
	"github.com/eventdesk/roster/internal/roster/view"
)

type fakeRemote struct {
	mu        sync.Mutex
	entries   []roster.Participant
	nextID    int
	listErr   error
	createErr error
	removeErr error
	artifact  roster.Artifact
	fetchErr  error
	fetchGate chan struct{}
	loads     int
}

func (f *fakeRemote) Create(_ context.Context, d roster.Draft) (roster.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return roster.Participant{}, f.createErr
	}
	f.nextID++
	p := roster.Participant{ID: fmt.Sprintf("p%d", f.nextID), Name: d.Name}
	f.entries = append(f.entries, p)
	return p, nil
}

func (f *fakeRemote) List(context.Context) (roster.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.listErr != nil {
		return roster.Listing{}, f.listErr
	}
	stats := roster.Summarize(f.entries)
	return roster.Listing{
		Participants: append([]roster.Participant(nil), f.entries...),
		CheckedIn:    stats.CheckedIn,
		NotCheckedIn: stats.NotCheckedIn,
	}, nil
}

func (f *fakeRemote) Update(_ context.Context, id string, patch roster.Patch) (roster.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.entries {
		if p.ID != id {
			continue
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.CheckedIn != nil && *patch.CheckedIn != p.CheckedIn {
			p.CheckedIn = *patch.CheckedIn
			if p.CheckedIn {
				at := time.Date(2026, 3, 1, 5, 4, 0, 0, time.UTC)
				n := i + 1
				p.CheckedInAt, p.ListNumber = &at, &n
			} else {
				p.CheckedInAt, p.ListNumber = nil, nil
			}
		}
		f.entries[i] = p
		return p, nil
	}
	return roster.Participant{}, &roster.RemoteError{Op: roster.OpUpdate, Status: 404, Message: "Participant not found"}
}

func (f *fakeRemote) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	for i, p := range f.entries {
		if p.ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return &roster.RemoteError{Op: roster.OpRemove, Status: 404, Message: "Participant not found"}
}

func (f *fakeRemote) FetchArtifact(context.Context, string) (roster.Artifact, error) {
	if f.fetchGate != nil {
		<-f.fetchGate
	}
	return f.artifact, f.fetchErr
}

func newTestController(remote *fakeRemote) *Controller {
	store := roster.NewStore(remote)
	store.Logger = slog.New(slog.DiscardHandler)
	dubai, err := time.LoadLocation("Asia/Dubai")
	if err != nil {
		dubai = time.FixedZone("GST", 4*60*60)
	}
	c := NewController(store, remote, view.NewProjector(language.English), dubai)
	c.Logger = slog.New(slog.DiscardHandler)
	c.Downloads.Logger = c.Logger
	return c
}

type discardSink struct{}

func (discardSink) Deliver([]byte, string) error { return nil }

func stateOf(filter, order string) view.State {
	return view.State{Filter: view.ParseFilter(filter), Order: view.ParseOrder(order)}
}

func (f *fakeRemote) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}
