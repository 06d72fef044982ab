// Package projection builds local read models from cached snapshots.
// Handles ordering, deduplication, and visibility filtering.
// Does not fetch or interact with UI directly.
package projection

import (
	"sort"

	"booking-sync/domain"
)

// Timeline renders the message list of a chat the way the UI consumes
// it: creation-time order with identity tie-break, duplicates removed,
// staff-only messages hidden from regular viewers.
type Timeline struct {
	ViewerIsStaff bool
}

func (t Timeline) Render(messages []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		if m.Private && !t.ViewerIsStaff {
			continue
		}
		if _, ok := seen[m.ID.String()]; ok {
			continue
		}
		seen[m.ID.String()] = struct{}{}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return domain.Less(out[i], out[j])
	})
	return out
}

// Unread recomputes the unread notification count on every call. It is
// deliberately not kept as separate mutable state, which would drift.
func Unread(notifications []domain.Notification) int {
	count := 0
	for _, n := range notifications {
		if !n.Read {
			count++
		}
	}
	return count
}
