// Package prep drives the kitchen preparation status of cart items.
//
// Statuses move forward only: pending and waiting share the lowest rank,
// then preparing, pick_up and done. Transitions into preparing, pick_up or
// done are mirrored to the backend and committed only after it confirms;
// pending and waiting are front-of-house bookkeeping and commit locally.
package prep

import (
	"github.com/kiwari-pos/cashier/internal/enum"
	"github.com/kiwari-pos/cashier/internal/item"
)

type transition struct {
	rank     int
	next     string
	syncable bool
}

var transitions = map[string]transition{
	enum.PrepStatusPending:   {rank: 0, next: enum.PrepStatusWaiting},
	enum.PrepStatusWaiting:   {rank: 0, next: enum.PrepStatusPreparing},
	enum.PrepStatusPreparing: {rank: 1, next: enum.PrepStatusPickUp, syncable: true},
	enum.PrepStatusPickUp:    {rank: 2, next: enum.PrepStatusDone, syncable: true},
	enum.PrepStatusDone:      {rank: 3, syncable: true},
}

// Statuses lists every status in workflow order.
var Statuses = []string{
	enum.PrepStatusPending,
	enum.PrepStatusWaiting,
	enum.PrepStatusPreparing,
	enum.PrepStatusPickUp,
	enum.PrepStatusDone,
}

// IsValid reports whether s is a known status.
func IsValid(s string) bool {
	_, ok := transitions[s]
	return ok
}

// Rank returns the position of s in the workflow.
func Rank(s string) (int, bool) {
	t, ok := transitions[s]
	return t.rank, ok
}

// Next returns the status following s; empty for done.
func Next(s string) (string, bool) {
	t, ok := transitions[s]
	return t.next, ok
}

// IsSyncable reports whether entering s must be confirmed by the backend.
func IsSyncable(s string) bool {
	return transitions[s].syncable
}

// Targets returns the statuses a bulk action may offer for the selection:
// those at or after the lowest-ranked selected item. An empty selection
// offers everything.
func Targets(selected []item.LineItem) []string {
	minRank := -1
	for _, li := range selected {
		r, ok := Rank(li.Status)
		if !ok {
			continue
		}
		if minRank < 0 || r < minRank {
			minRank = r
		}
	}

	out := make([]string, 0, len(Statuses))
	for _, s := range Statuses {
		if r, _ := Rank(s); r >= minRank {
			out = append(out, s)
		}
	}
	return out
}
