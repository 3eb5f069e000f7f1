// Package tasks tracks which entities have an asynchronous operation in
// flight, so each entity's pending state is independent of the others.
package tasks

import (
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eventdesk/roster/internal/platform/metrics"
)

type Tracker struct {
	mu        sync.Mutex
	active    map[string]bool
	observers []func(id string, active bool)
	gauge     prometheus.Gauge
}

// New returns a tracker reported under name in the tasks_in_flight gauge.
func New(name string) *Tracker {
	return &Tracker{
		active: map[string]bool{},
		gauge:  metrics.TasksInFlight.WithLabelValues(name),
	}
}

// Observe registers fn to be called synchronously after every change, so an
// observer sees Begin before the caller's next statement runs.
func (t *Tracker) Observe(fn func(id string, active bool)) {
	t.mu.Lock()
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}

// Begin marks id as in flight. Marking an already active id is a no-op.
func (t *Tracker) Begin(id string) {
	t.set(id, true)
}

// TryBegin marks id and reports true only when it was not already active.
func (t *Tracker) TryBegin(id string) bool {
	return t.set(id, true)
}

// End clears id. Ending an id that was never begun is a no-op.
func (t *Tracker) End(id string) {
	t.set(id, false)
}

func (t *Tracker) IsActive(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[id]
}

// Active returns the in-flight ids in sorted order.
func (t *Tracker) Active() []string {
	t.mu.Lock()
	out := make([]string, 0, len(t.active))
	for id := range t.active {
		out = append(out, id)
	}
	t.mu.Unlock()
	slices.Sort(out)
	return out
}

func (t *Tracker) set(id string, active bool) bool {
	t.mu.Lock()
	if t.active == nil {
		t.active = map[string]bool{}
	}
	if t.active[id] == active {
		t.mu.Unlock()
		return false
	}
	if active {
		t.active[id] = true
	} else {
		delete(t.active, id)
	}
	count := len(t.active)
	observers := slices.Clone(t.observers)
	t.mu.Unlock()

	if t.gauge != nil {
		t.gauge.Set(float64(count))
	}
	for _, fn := range observers {
		fn(id, active)
	}
	return true
}
