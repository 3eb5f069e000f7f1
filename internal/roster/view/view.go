// Package view derives the presented participant sequence from a roster
// snapshot. Nothing here writes back to the store.
package view

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/eventdesk/roster/internal/roster"
)

type Filter string

const (
	FilterAll          Filter = "all"
	FilterCheckedIn    Filter = "checkedIn"
	FilterNotCheckedIn Filter = "notCheckedIn"
)

type Order string

const (
	OrderOldest   Order = "oldest"
	OrderNewest   Order = "newest"
	OrderNameAsc  Order = "name_asc"
	OrderNameDesc Order = "name_desc"
)

// State is the ephemeral, UI-local selection. It is never persisted.
type State struct {
	Filter Filter
	Order  Order
}

func DefaultState() State {
	return State{Filter: FilterAll, Order: OrderOldest}
}

func ParseFilter(raw string) Filter {
	switch Filter(strings.TrimSpace(raw)) {
	case FilterCheckedIn:
		return FilterCheckedIn
	case FilterNotCheckedIn:
		return FilterNotCheckedIn
	default:
		return FilterAll
	}
}

func ParseOrder(raw string) Order {
	switch Order(strings.TrimSpace(raw)) {
	case OrderNewest:
		return OrderNewest
	case OrderNameAsc:
		return OrderNameAsc
	case OrderNameDesc:
		return OrderNameDesc
	default:
		return OrderOldest
	}
}

var epoch = time.Unix(0, 0).UTC()

// Projector filters and orders participants. Name ordering uses the
// collation rules of Locale.
type Projector struct {
	Locale language.Tag
}

func NewProjector(locale language.Tag) Projector {
	return Projector{Locale: locale}
}

// Project returns a fresh slice; entries is never modified.
func (p Projector) Project(entries []roster.Participant, state State) []roster.Participant {
	out := make([]roster.Participant, 0, len(entries))
	for _, entry := range entries {
		if keep(entry, state.Filter) {
			out = append(out, entry)
		}
	}
	slices.SortStableFunc(out, p.comparator(state.Order))
	return out
}

func keep(entry roster.Participant, filter Filter) bool {
	switch filter {
	case FilterCheckedIn:
		return entry.CheckedIn
	case FilterNotCheckedIn:
		return !entry.CheckedIn
	default:
		return true
	}
}

func (p Projector) comparator(order Order) func(a, b roster.Participant) int {
	switch order {
	case OrderNewest:
		return func(a, b roster.Participant) int { return compareCheckIn(a, b, true) }
	case OrderNameAsc, OrderNameDesc:
		// Collators keep internal buffers; one per projection.
		c := collate.New(p.Locale)
		desc := order == OrderNameDesc
		return func(a, b roster.Participant) int {
			if desc {
				return c.CompareString(b.Name, a.Name)
			}
			return c.CompareString(a.Name, b.Name)
		}
	default:
		return func(a, b roster.Participant) int { return compareCheckIn(a, b, false) }
	}
}

// compareCheckIn puts every not-checked-in entry after the checked-in ones
// regardless of direction.
func compareCheckIn(a, b roster.Participant, desc bool) int {
	switch {
	case !a.CheckedIn && !b.CheckedIn:
		return 0
	case !a.CheckedIn:
		return 1
	case !b.CheckedIn:
		return -1
	}
	cmp := checkInTime(a).Compare(checkInTime(b))
	if desc {
		return -cmp
	}
	return cmp
}

func checkInTime(p roster.Participant) time.Time {
	if p.CheckedInAt == nil {
		return epoch
	}
	return *p.CheckedInAt
}
