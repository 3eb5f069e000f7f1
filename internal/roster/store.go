package roster

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Snapshot is one immutable view of the store. Observers must not modify
// Participants; every mutation publishes a new slice.
type Snapshot struct {
	Participants []Participant
	Stats        Stats
	Version      uint64
}

// Store mirrors the authority's roster in memory. The collection only ever
// changes after the authority confirms an operation.
type Store struct {
	Remote Remote
	Logger *slog.Logger

	mu           sync.RWMutex
	participants []Participant
	stats        Stats
	version      uint64
	loaded       bool
	closed       bool

	observersMu sync.Mutex
	observers   map[int]*observer
	nextObsID   int
}

// observer delivers snapshots to fn in increasing version order. A snapshot
// that loses the race to a newer one is skipped.
type observer struct {
	mu   sync.Mutex
	last uint64
	fn   func(Snapshot)
}

func (o *observer) deliver(snap Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if snap.Version <= o.last {
		return
	}
	o.last = snap.Version
	o.fn(snap)
}

func NewStore(remote Remote) *Store {
	return &Store{
		Remote:    remote,
		Logger:    slog.Default(),
		observers: map[int]*observer{},
	}
}

// Subscribe registers fn to receive snapshots published after a successful
// load or mutation. Versions reach fn strictly increasing; fn must not call
// back into the store's mutators.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	if s.observers == nil {
		s.observers = map[int]*observer{}
	}
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = &observer{fn: fn}
	return func() {
		s.observersMu.Lock()
		delete(s.observers, id)
		s.observersMu.Unlock()
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Participants: slices.Clone(s.participants),
		Stats:        s.stats,
		Version:      s.version,
	}
}

// Loaded reports whether at least one Load has succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) Get(id string) (Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := indexOf(s.participants, id)
	if idx < 0 {
		return Participant{}, false
	}
	return s.participants[idx], true
}

// Load replaces the collection and counters with the authority's listing.
// On failure the previous contents are kept.
func (s *Store) Load(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	listing, err := s.Remote.List(ctx)
	if err != nil {
		err = normalize(OpList, err)
		s.logger().Warn("roster load failed", "error", err)
		return err
	}

	participants := make([]Participant, 0, len(listing.Participants))
	participants = append(participants, listing.Participants...)

	snap, _, err := s.commit(func() bool {
		s.participants = participants
		s.stats = Stats{
			Total:        len(participants),
			CheckedIn:    listing.CheckedIn,
			NotCheckedIn: listing.NotCheckedIn,
		}
		s.loaded = true
		return true
	})
	if err != nil {
		return err
	}
	s.logger().Info("roster loaded", "participants", len(participants), "version", snap.Version)
	s.publish(snap)
	return nil
}

// Create validates the draft locally, then appends the participant the
// authority returns.
func (s *Store) Create(ctx context.Context, draft Draft) (Participant, error) {
	if err := s.checkOpen(); err != nil {
		return Participant{}, err
	}
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return Participant{}, &ValidationError{Field: "name", Message: "Name is required!"}
	}

	created, err := s.Remote.Create(ctx, Draft{Name: name})
	if err != nil {
		err = normalize(OpCreate, err)
		s.logger().Warn("participant create failed", "error", err)
		return Participant{}, err
	}
	if created.ID == "" {
		err := &FetchError{Op: OpCreate, Err: errMissingID}
		s.logger().Warn("participant create failed", "error", err)
		return Participant{}, err
	}

	snap, _, err := s.commit(func() bool {
		next := make([]Participant, 0, len(s.participants)+1)
		next = append(next, s.participants...)
		s.participants = append(next, created)
		s.stats = Summarize(s.participants)
		return true
	})
	if err != nil {
		return Participant{}, err
	}
	s.logger().Info("participant created", "participant_id", created.ID, "version", snap.Version)
	s.publish(snap)
	return created, nil
}

// Update sends patch to the authority and replaces the local entry with the
// authority's echo.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (Participant, error) {
	if err := s.checkOpen(); err != nil {
		return Participant{}, err
	}
	if _, ok := s.Get(id); !ok {
		return Participant{}, &NotFoundError{ID: id}
	}
	if patch.Empty() {
		return Participant{}, &ValidationError{Message: "Nothing to update"}
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Participant{}, &ValidationError{Field: "name", Message: "Name is required!"}
		}
		patch.Name = &name
	}

	updated, err := s.Remote.Update(ctx, id, patch)
	if err != nil {
		err = normalize(OpUpdate, err)
		s.logger().Warn("participant update failed", "participant_id", id, "error", err)
		return Participant{}, err
	}
	if updated.ID == "" {
		err := &FetchError{Op: OpUpdate, Err: errMissingID}
		s.logger().Warn("participant update failed", "participant_id", id, "error", err)
		return Participant{}, err
	}

	snap, applied, err := s.commit(func() bool {
		idx := indexOf(s.participants, id)
		if idx < 0 {
			return false
		}
		next := slices.Clone(s.participants)
		next[idx] = updated
		s.participants = next
		s.stats = Summarize(next)
		return true
	})
	if err != nil {
		return Participant{}, err
	}
	if !applied {
		// Removed while the update was in flight.
		err := &NotFoundError{ID: id}
		s.logger().Warn("participant update dropped", "participant_id", id, "error", err)
		return Participant{}, err
	}
	s.logger().Info("participant updated", "participant_id", id, "version", snap.Version)
	s.publish(snap)
	return updated, nil
}

// Remove deletes id at the authority, then drops it locally.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, ok := s.Get(id); !ok {
		return &NotFoundError{ID: id}
	}

	if err := s.Remote.Remove(ctx, id); err != nil {
		err = normalize(OpRemove, err)
		s.logger().Warn("participant delete failed", "participant_id", id, "error", err)
		return err
	}

	snap, removed, err := s.commit(func() bool {
		idx := indexOf(s.participants, id)
		if idx < 0 {
			return false
		}
		s.participants = slices.Delete(slices.Clone(s.participants), idx, idx+1)
		s.stats = Summarize(s.participants)
		return true
	})
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	s.logger().Info("participant deleted", "participant_id", id, "version", snap.Version)
	s.publish(snap)
	return nil
}

// Close tears the store down. Later calls fail with ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.participants = nil
	s.stats = Stats{}
	s.mu.Unlock()

	s.observersMu.Lock()
	s.observers = map[int]*observer{}
	s.observersMu.Unlock()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// commit applies fn under the write lock and bumps the version when fn
// reports a change.
func (s *Store) commit(fn func() bool) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, false, ErrClosed
	}
	if !fn() {
		return Snapshot{}, false, nil
	}
	s.version++
	return s.snapshotLocked(), true, nil
}

func (s *Store) publish(snap Snapshot) {
	s.observersMu.Lock()
	obs := make([]*observer, 0, len(s.observers))
	for _, o := range s.observers {
		obs = append(obs, o)
	}
	s.observersMu.Unlock()

	for _, o := range obs {
		o.deliver(snap)
	}
}

func (s *Store) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func indexOf(entries []Participant, id string) int {
	return slices.IndexFunc(entries, func(p Participant) bool { return p.ID == id })
}
