// Package console is the server-rendered admin dashboard. It owns one
// roster store and renders projections of its snapshots.
package console

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/eventdesk/roster/internal/badge"
	"github.com/eventdesk/roster/internal/delivery"
	"github.com/eventdesk/roster/internal/platform/metrics"
	"github.com/eventdesk/roster/internal/roster"
	"github.com/eventdesk/roster/internal/roster/view"
	"github.com/eventdesk/roster/internal/tasks"
)

const createGuardKey = "\x00create"

var ErrBusy = errors.New("operation already in progress")

type Controller struct {
	Store     *roster.Store
	Projector view.Projector
	Downloads *badge.Downloader
	Guard     *tasks.Tracker
	Notices   *Notices
	Location  *time.Location
	Logger    *slog.Logger
}

// NewController wires a controller around store. Download failures are
// reported through the controller's notices.
func NewController(store *roster.Store, source badge.Source, projector view.Projector, loc *time.Location) *Controller {
	if loc == nil {
		loc = time.UTC
	}
	c := &Controller{
		Store:     store,
		Projector: projector,
		Guard:     tasks.New("console_mutations"),
		Notices:   &Notices{},
		Location:  loc,
		Logger:    slog.Default(),
	}
	c.Downloads = &badge.Downloader{
		Source:  source,
		Tracker: tasks.New("badge_downloads"),
		OnError: func(_ string, err error) {
			c.Notices.Error(roster.Message(roster.OpFetchArtifact, err))
		},
		Logger: c.Logger,
	}
	c.Downloads.Tracker.Observe(func(id string, active bool) {
		c.Logger.Debug("badge download", "participant_id", id, "active", active)
	})
	store.Subscribe(recordRosterSize)
	return c
}

func recordRosterSize(snap roster.Snapshot) {
	metrics.RosterParticipants.WithLabelValues("checked_in").Set(float64(snap.Stats.CheckedIn))
	metrics.RosterParticipants.WithLabelValues("not_checked_in").Set(float64(snap.Stats.NotCheckedIn))
}

type Row struct {
	No         int
	ID         string
	Name       string
	CheckedIn  bool
	Queue      string
	Time       string
	Generating bool
}

type PageData struct {
	State   view.State
	Stats   roster.Stats
	Rows    []Row
	Notices []Notice
	Loaded  bool
	Busy    map[string]bool
}

// Page projects the current snapshot for state and drains pending notices.
func (c *Controller) Page(state view.State) PageData {
	snap := c.Store.Snapshot()
	projected := c.Projector.Project(snap.Participants, state)

	rows := make([]Row, 0, len(projected))
	for i, p := range projected {
		rows = append(rows, Row{
			No:         i + 1,
			ID:         p.ID,
			Name:       p.Name,
			CheckedIn:  p.CheckedIn,
			Queue:      queueLabel(p),
			Time:       c.checkInLabel(p),
			Generating: c.Downloads.Tracker.IsActive(p.ID),
		})
	}
	busy := map[string]bool{}
	for _, id := range c.Guard.Active() {
		busy[id] = true
	}
	return PageData{
		State:   state,
		Stats:   snap.Stats,
		Rows:    rows,
		Notices: c.Notices.Drain(),
		Loaded:  c.Store.Loaded(),
		Busy:    busy,
	}
}

func queueLabel(p roster.Participant) string {
	if n, ok := p.QueueNumber(); ok {
		return strconv.Itoa(n)
	}
	return "—"
}

func (c *Controller) checkInLabel(p roster.Participant) string {
	if p.CheckedInAt == nil {
		return "—"
	}
	return p.CheckedInAt.In(c.Location).Format("03:04 PM")
}

// Refresh reloads the roster from the authority.
func (c *Controller) Refresh(ctx context.Context) error {
	err := c.Store.Load(ctx)
	c.record(roster.OpList, err)
	if err != nil {
		c.Notices.Error(roster.Message(roster.OpList, err))
	}
	return err
}

func (c *Controller) Create(ctx context.Context, name string) error {
	if !c.Guard.TryBegin(createGuardKey) {
		return c.busy()
	}
	defer c.Guard.End(createGuardKey)

	_, err := c.Store.Create(ctx, roster.Draft{Name: name})
	return c.report(roster.OpCreate, err, "Participant created successfully")
}

// Update applies the edit form. status is "In" or "Out"; anything else
// leaves the check-in state alone.
func (c *Controller) Update(ctx context.Context, id, name, status string) error {
	if !c.Guard.TryBegin(id) {
		return c.busy()
	}
	defer c.Guard.End(id)

	patch := roster.Patch{Name: &name}
	switch strings.TrimSpace(status) {
	case "In":
		checked := true
		patch.CheckedIn = &checked
	case "Out":
		checked := false
		patch.CheckedIn = &checked
	}
	_, err := c.Store.Update(ctx, id, patch)
	return c.report(roster.OpUpdate, err, "Participant updated successfully")
}

func (c *Controller) Delete(ctx context.Context, id string) error {
	if !c.Guard.TryBegin(id) {
		return c.busy()
	}
	defer c.Guard.End(id)

	err := c.Store.Remove(ctx, id)
	return c.report(roster.OpRemove, err, "Participant deleted successfully")
}

// Download fetches the badge for id into sink. Failures are already in the
// notice queue when it returns.
func (c *Controller) Download(ctx context.Context, id string, sink delivery.Sink) error {
	_, err := c.Downloads.Download(ctx, id, sink)
	c.record(roster.OpFetchArtifact, err)
	return err
}

func (c *Controller) report(op roster.Op, err error, success string) error {
	c.record(op, err)
	if err != nil {
		c.Notices.Error(roster.Message(op, err))
		return err
	}
	c.Notices.Success(success)
	return nil
}

func (c *Controller) busy() error {
	c.Notices.Error("Please wait for the previous request to finish")
	return ErrBusy
}

func (c *Controller) record(op roster.Op, err error) {
	outcome := "ok"
	var validation *roster.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &validation):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	metrics.StoreMutations.WithLabelValues(string(op), outcome).Inc()
}
