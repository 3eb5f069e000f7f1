package console

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/eventdesk/roster/internal/contracts"
)

const DefaultRefreshDebounce = 75 * time.Millisecond

// Reloader is the part of the store live refresh drives.
type Reloader interface {
	Load(ctx context.Context) error
}

// LiveRefresh reloads the roster after authority events. Bursts of events
// within Debounce collapse into one reload.
type LiveRefresh struct {
	Store    Reloader
	Debounce time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func NewLiveRefresh(store Reloader) *LiveRefresh {
	return &LiveRefresh{
		Store:    store,
		Debounce: DefaultRefreshDebounce,
		Timeout:  10 * time.Second,
		Logger:   slog.Default(),
	}
}

// HandleEvent is the subscription callback for roster.event.> messages.
func (l *LiveRefresh) HandleEvent(data []byte) {
	var evt contracts.ParticipantEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		l.Logger.Warn("ignore malformed participant event", "err", err)
		return
	}
	l.Logger.Debug("participant event", "event_type", evt.EventType, "participant_id", evt.ParticipantID)
	l.schedule()
}

func (l *LiveRefresh) schedule() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	if l.timer != nil {
		l.timer.Reset(l.Debounce)
		return
	}
	l.timer = time.AfterFunc(l.Debounce, l.reload)
}

func (l *LiveRefresh) reload() {
	l.mu.Lock()
	l.timer = nil
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.Timeout)
	defer cancel()
	if err := l.Store.Load(ctx); err != nil {
		l.Logger.Warn("live refresh failed", "err", err)
	}
}

// Stop cancels any pending reload. Later events are ignored.
func (l *LiveRefresh) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}
